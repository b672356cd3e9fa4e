package common

import (
	"context"
	"errors"
	"net"
	"net/url"
)

var (
	// ErrChainUnavailable indicates the chain RPC endpoint could not be
	// reached after the fetcher's own internal retry.
	ErrChainUnavailable = errors.New("chain unavailable")
	// ErrUnsupportedChain indicates a chain that is not part of the registry
	// or has no mapping for the requested operation. Never retried.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrEnrichment indicates the token security service failed after retry
	// exhaustion.
	ErrEnrichment = errors.New("enrichment failed")
	// ErrCacheUnavailable indicates the cache backing store failed. Callers
	// degrade to pass-through behaviour instead of propagating it.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrValidationFailure indicates a batch action contained ineligible tokens.
	ErrValidationFailure = errors.New("batch validation failed")
	// ErrExecutionFailure indicates a bundle submission error.
	ErrExecutionFailure = errors.New("batch execution failed")
)

// IsRetryableError reports whether err is a transport/timeout/network-class
// failure worth retrying. Configuration and validation errors are not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnsupportedChain) {
		return false
	}
	if errors.Is(err, ErrChainUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
