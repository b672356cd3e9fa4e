package cache

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"gitlab.com/walletsweep/sweepnode/common"
)

// Store is the key-value cache boundary. Implementations are fail-soft: a
// backing store error degrades to a miss on Get and a false return on
// Set/Delete, never an error that unwinds the pipeline.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) bool
	Exists(key string) bool
	Delete(key string) bool
}

// MemoryStore is an in-process Store backed by an expiring map.
type MemoryStore struct {
	inner *gocache.Cache
}

// NewMemoryStore creates a MemoryStore whose entries default to the given TTL.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		inner: gocache.New(defaultTTL, defaultTTL),
	}
}

// Get returns the stored value, or a miss once the entry expired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	value, ok := s.inner.Get(key)
	if !ok {
		return nil, false
	}
	buf, ok := value.([]byte)
	return buf, ok
}

// Set stores the value under key for the given TTL. A zero TTL applies the
// store default.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) bool {
	s.inner.Set(key, value, ttl)
	return true
}

// Exists returns true when a live entry is present.
func (s *MemoryStore) Exists(key string) bool {
	_, ok := s.inner.Get(key)
	return ok
}

// Delete removes the entry.
func (s *MemoryStore) Delete(key string) bool {
	s.inner.Delete(key)
	return true
}

// ScanKey builds the cache key for a subject address. Addresses are
// lowercased so case-variant inputs hit the same entry.
func ScanKey(address string) string {
	return fmt.Sprintf("scan:%s", common.NormalizeAddress(address))
}

// PriceKey builds the auxiliary price sub-cache key.
func PriceKey(chain common.Chain, symbol string) string {
	return fmt.Sprintf("price:%s:%s", chain, strings.ToLower(symbol))
}

// RiskKey builds the auxiliary per-token risk sub-cache key.
func RiskKey(chainID, address string) string {
	return fmt.Sprintf("risk:%s:%s", chainID, common.NormalizeAddress(address))
}
