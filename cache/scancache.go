package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/metrics"
)

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Warmed  uint64  `json:"warmed"`
	HitRate float64 `json:"hit_rate"`
}

// ScanCache stores full scan results keyed by subject address, with hit/miss
// accounting and warm-up support. All operations are fail-soft; a broken
// backing store makes the pipeline slower, never incorrect.
type ScanCache struct {
	store  Store
	ttl    time.Duration
	m      *metrics.Metrics
	logger zerolog.Logger

	hits   uint64
	misses uint64
	warmed uint64
}

// NewScanCache creates a ScanCache on the given store.
func NewScanCache(store Store, ttl time.Duration, m *metrics.Metrics) (*ScanCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	return &ScanCache{
		store:  store,
		ttl:    ttl,
		m:      m,
		logger: log.Logger.With().Str("module", "scan_cache").Logger(),
	}, nil
}

// Get returns the live cached result for the address, or nil on a miss.
func (c *ScanCache) Get(address string) (*common.ScanResult, bool) {
	buf, ok := c.store.Get(ScanKey(address))
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		c.m.GetCounter(metrics.CacheMiss).Inc()
		return nil, false
	}
	var result common.ScanResult
	if err := json.Unmarshal(buf, &result); err != nil {
		c.logger.Err(err).Str("address", address).Msg("fail to decode cached scan result")
		atomic.AddUint64(&c.misses, 1)
		c.m.GetCounter(metrics.CacheMiss).Inc()
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	c.m.GetCounter(metrics.CacheHit).Inc()
	return &result, true
}

// Set stores the result under the address. Returns false when the backing
// store rejected the write.
func (c *ScanCache) Set(address string, result *common.ScanResult) bool {
	buf, err := json.Marshal(result)
	if err != nil {
		c.logger.Err(err).Str("address", address).Msg("fail to encode scan result")
		return false
	}
	return c.store.Set(ScanKey(address), buf, c.ttl)
}

// Exists returns true when a live entry is present for the address.
func (c *ScanCache) Exists(address string) bool {
	return c.store.Exists(ScanKey(address))
}

// Delete removes the entry for the address.
func (c *ScanCache) Delete(address string) bool {
	return c.store.Delete(ScanKey(address))
}

// GetOrSet returns the cached result for the address, running factory and
// caching its output on a miss. A factory error is returned as is; a failed
// cache write is not an error.
func (c *ScanCache) GetOrSet(address string, factory func() (*common.ScanResult, error)) (*common.ScanResult, error) {
	if result, ok := c.Get(address); ok {
		return result, nil
	}
	result, err := factory()
	if err != nil {
		return nil, err
	}
	if !c.Set(address, result) {
		c.logger.Warn().Str("address", address).Msg("fail to cache scan result")
	}
	return result, nil
}

// Warmup pre-populates entries for addresses that are not already cached by
// running the given scan function. Successful warm-ups are counted apart
// from organic hits. Individual scan failures do not stop the run; they are
// aggregated into the returned error.
func (c *ScanCache) Warmup(ctx context.Context, addresses []string, scan func(ctx context.Context, address string) (*common.ScanResult, error)) (int, error) {
	var errs *multierror.Error
	count := 0
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if c.Exists(address) {
			continue
		}
		result, err := scan(ctx, address)
		if err != nil {
			c.logger.Err(err).Str("address", address).Msg("fail to warm up address")
			errs = multierror.Append(errs, fmt.Errorf("fail to warm up %s: %w", address, err))
			continue
		}
		if !c.Set(address, result) {
			continue
		}
		count++
		atomic.AddUint64(&c.warmed, 1)
		c.m.GetCounter(metrics.CacheWarmup).Inc()
	}
	return count, errs.ErrorOrNil()
}

// Stats returns the running counters and the derived hit rate percentage.
func (c *ScanCache) Stats() Stats {
	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	stats := Stats{
		Hits:   hits,
		Misses: misses,
		Warmed: atomic.LoadUint64(&c.warmed),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total) * 100
	}
	return stats
}
