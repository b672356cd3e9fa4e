// Package scanner drives the scan pipeline: balance discovery across all
// configured chains, security enrichment, classification and summary
// aggregation, fronted by the TTL result cache.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/classifier"
	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/config"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/scanner/chainclients"
	"gitlab.com/walletsweep/sweepnode/security"
)

// Enricher produces the normalized security assessment for one token.
// A nil result with a nil error means the provider does not know the token.
type Enricher interface {
	FetchTokenSecurity(ctx context.Context, chain common.Chain, tokenAddress string) (*security.Assessment, error)
}

// ScanOptions tunes one scan invocation.
type ScanOptions struct {
	// Chains restricts the scan to a subset of configured chains. Empty
	// means every configured chain.
	Chains []common.Chain
	// SkipCache forces a fresh scan and suppresses the cache write.
	SkipCache bool
	// Progress, when set, is invoked on every chain status transition.
	Progress func(common.ChainScanStatus)
}

// Scanner is the scan orchestrator. All collaborators are injected so tests
// can substitute fakes per chain.
type Scanner struct {
	registry *common.Registry
	fetchers map[common.Chain]chainclients.BalanceFetcher
	enricher Enricher
	cache    *cache.ScanCache
	cfg      config.Scanner
	m        *metrics.Metrics
	logger   zerolog.Logger
	flight   singleflight.Group
}

// NewScanner creates a Scanner over the given balance fetchers. Every fetcher
// chain must be present in the registry.
func NewScanner(registry *common.Registry, fetchers []chainclients.BalanceFetcher, enricher Enricher, scanCache *cache.ScanCache, cfg config.Scanner, m *metrics.Metrics) (*Scanner, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry is nil")
	}
	if enricher == nil {
		return nil, fmt.Errorf("enricher is nil")
	}
	if scanCache == nil {
		return nil, fmt.Errorf("scan cache is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	if cfg.ChainBatchSize <= 0 || cfg.EnrichBatchSize <= 0 {
		return nil, fmt.Errorf("invalid scanner config: batch sizes must be positive")
	}
	byChain := make(map[common.Chain]chainclients.BalanceFetcher, len(fetchers))
	for _, fetcher := range fetchers {
		if _, err := registry.Get(fetcher.Chain()); err != nil {
			return nil, fmt.Errorf("fetcher for unregistered chain: %w", err)
		}
		if _, ok := byChain[fetcher.Chain()]; ok {
			return nil, fmt.Errorf("duplicate fetcher for chain %s", fetcher.Chain())
		}
		byChain[fetcher.Chain()] = fetcher
	}
	return &Scanner{
		registry: registry,
		fetchers: byChain,
		enricher: enricher,
		cache:    scanCache,
		cfg:      cfg,
		m:        m,
		logger:   log.Logger.With().Str("module", "scanner").Logger(),
	}, nil
}

// Scan discovers, enriches and classifies every holding of the address. A
// result is always produced when the address is valid for at least one
// configured chain family; individual chain failures degrade to an error
// status on that chain.
func (s *Scanner) Scan(ctx context.Context, address string, opts ScanOptions) (*common.ScanResult, error) {
	address = common.NormalizeAddress(address)

	descs, err := s.resolveChains(opts.Chains)
	if err != nil {
		return nil, err
	}
	if !s.addressScannable(address, descs) {
		return nil, fmt.Errorf("%w: address %s is not valid for any configured chain family", common.ErrValidationFailure, address)
	}

	s.m.GetCounter(metrics.ScanTotal).Inc()
	if !opts.SkipCache {
		if cached, ok := s.cache.Get(address); ok {
			s.m.GetCounter(metrics.ScanCacheServed).Inc()
			cached.FromCache = true
			return cached, nil
		}
	}

	// concurrent scans of the same subject share one pipeline run; the
	// joined caller receives the shared result without progress callbacks
	value, err, _ := s.flight.Do(flightKey(address, descs, opts.SkipCache), func() (interface{}, error) {
		return s.runScan(ctx, address, descs, opts), nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*common.ScanResult), nil
}

func (s *Scanner) runScan(ctx context.Context, address string, descs []common.ChainDescriptor, opts ScanOptions) *common.ScanResult {
	start := time.Now()
	tokens, statuses := s.fetchAll(ctx, address, descs, opts.Progress)
	s.enrich(ctx, tokens)
	for i := range tokens {
		classifier.Apply(&tokens[i])
	}
	sortTokens(tokens)

	result := &common.ScanResult{
		Address:   address,
		ScannedAt: time.Now().UTC(),
		Chains:    statuses,
		Tokens:    tokens,
		Summary:   common.NewScanSummary(tokens),
	}
	s.m.GetGauge(metrics.ScanDuration).Set(time.Since(start).Seconds())
	s.m.GetGauge(metrics.TokensDiscovered).Set(float64(len(tokens)))

	// partial results are returned but never cached, a failed chain should
	// be retried on the next request instead of shadowed for a full TTL
	if !opts.SkipCache && allComplete(statuses) {
		s.cache.Set(address, result)
	}
	return result
}

func flightKey(address string, descs []common.ChainDescriptor, skipCache bool) string {
	chains := make([]string, len(descs))
	for i, desc := range descs {
		chains[i] = string(desc.Chain)
	}
	sort.Strings(chains)
	return fmt.Sprintf("%s|%s|%t", address, strings.Join(chains, ","), skipCache)
}

// resolveChains maps the requested chains to descriptors with fetchers,
// defaulting to every chain that has one.
func (s *Scanner) resolveChains(requested []common.Chain) ([]common.ChainDescriptor, error) {
	if len(requested) == 0 {
		var descs []common.ChainDescriptor
		for _, desc := range s.registry.All() {
			if _, ok := s.fetchers[desc.Chain]; ok {
				descs = append(descs, desc)
			}
		}
		if len(descs) == 0 {
			return nil, fmt.Errorf("no chains configured with balance fetchers")
		}
		return descs, nil
	}
	descs := make([]common.ChainDescriptor, 0, len(requested))
	for _, chain := range requested {
		desc, err := s.registry.Get(chain)
		if err != nil {
			return nil, err
		}
		if _, ok := s.fetchers[chain]; !ok {
			return nil, fmt.Errorf("%w: no balance fetcher for %s", common.ErrUnsupportedChain, chain)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func (s *Scanner) addressScannable(address string, descs []common.ChainDescriptor) bool {
	for _, desc := range descs {
		if desc.Family.ValidAddress(address) {
			return true
		}
	}
	return false
}

// fetchAll runs balance discovery chain batch by chain batch, chains within
// a batch concurrently. Chains whose family cannot hold the address resolve
// to an error status without a fetch.
func (s *Scanner) fetchAll(ctx context.Context, address string, descs []common.ChainDescriptor, progress func(common.ChainScanStatus)) ([]common.Token, []common.ChainScanStatus) {
	statuses := make([]common.ChainScanStatus, len(descs))
	for i, desc := range descs {
		statuses[i] = common.ChainScanStatus{Chain: desc.Chain, Status: common.ScanPending}
	}

	var (
		mu     sync.Mutex
		tokens []common.Token
	)
	update := func(i int, mutate func(*common.ChainScanStatus)) {
		mu.Lock()
		mutate(&statuses[i])
		snapshot := statuses[i]
		mu.Unlock()
		if progress != nil {
			progress(snapshot)
		}
	}

	for offset := 0; offset < len(descs); offset += s.cfg.ChainBatchSize {
		end := offset + s.cfg.ChainBatchSize
		if end > len(descs) {
			end = len(descs)
		}
		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			i := i
			desc := descs[i]
			if !desc.Family.ValidAddress(address) {
				update(i, func(st *common.ChainScanStatus) {
					st.Status = common.ScanError
					st.Error = fmt.Sprintf("address is not valid for %s family", desc.Family)
				})
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				update(i, func(st *common.ChainScanStatus) {
					st.Status = common.ScanScanning
					st.Progress = 50
				})
				found, err := s.fetchChain(ctx, desc.Chain, address)
				if err != nil {
					s.m.GetCounterVec(metrics.ChainFetchError).WithLabelValues(string(desc.Chain)).Inc()
					s.logger.Error().Err(err).Str("chain", string(desc.Chain)).Msg("fail to fetch balances")
					update(i, func(st *common.ChainScanStatus) {
						st.Status = common.ScanError
						st.Error = err.Error()
					})
					return
				}
				mu.Lock()
				tokens = append(tokens, found...)
				mu.Unlock()
				update(i, func(st *common.ChainScanStatus) {
					st.Status = common.ScanComplete
					st.TokensFound = len(found)
					st.Progress = 100
				})
			}()
		}
		wg.Wait()
	}
	return tokens, statuses
}

// fetchChain fetches one chain's balances, retrying transport class failures
// with exponential backoff. Validation class failures are permanent.
func (s *Scanner) fetchChain(ctx context.Context, chain common.Chain, address string) ([]common.Token, error) {
	fetcher := s.fetchers[chain]
	var tokens []common.Token
	operation := func() error {
		var err error
		tokens, err = fetcher.FetchBalances(ctx, address)
		if err != nil && !common.IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.cfg.FetchRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return tokens, nil
}

// enrich overwrites placeholder risk data with provider assessments, in
// bounded batches with a pause between batches to respect provider rate
// limits. A token whose enrichment fails keeps its placeholder and is
// classified from what is known.
func (s *Scanner) enrich(ctx context.Context, tokens []common.Token) {
	var pending []int
	for i := range tokens {
		if tokens[i].IsNative() {
			// natives have no contract to assess
			continue
		}
		pending = append(pending, i)
	}

	for offset := 0; offset < len(pending); offset += s.cfg.EnrichBatchSize {
		end := offset + s.cfg.EnrichBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		if offset > 0 && s.cfg.EnrichBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.EnrichBatchDelay):
			}
		}
		var group errgroup.Group
		for _, idx := range pending[offset:end] {
			token := &tokens[idx]
			group.Go(func() error {
				assessment, err := s.enricher.FetchTokenSecurity(ctx, token.Chain, token.Address)
				if err != nil {
					s.m.GetCounter(metrics.EnrichFailure).Inc()
					s.logger.Warn().Err(err).Str("token", token.Key()).Msg("fail to enrich token, keeping placeholder")
					return nil
				}
				if assessment == nil {
					// unknown to the provider, placeholder stands
					return nil
				}
				token.RiskScore = assessment.Score
				token.IsHoneypot = assessment.Honeypot
				token.IsRugpull = assessment.Rugpull
				token.Verified = assessment.Verified
				token.Holders = assessment.HolderCount
				if assessment.Liquidity > 0 {
					token.Liquidity = assessment.Liquidity
				}
				return nil
			})
		}
		_ = group.Wait()
	}
}

// sortTokens orders by value descending with the token key as tiebreak, so
// identical holdings always serialize identically.
func sortTokens(tokens []common.Token) {
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Value != tokens[j].Value {
			return tokens[i].Value > tokens[j].Value
		}
		return tokens[i].Key() < tokens[j].Key()
	})
}

func allComplete(statuses []common.ChainScanStatus) bool {
	for _, st := range statuses {
		if st.Status != common.ScanComplete {
			return false
		}
	}
	return true
}
