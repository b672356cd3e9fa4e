package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/config"
	"gitlab.com/walletsweep/sweepnode/metrics"
)

// Client queries the token security service and normalizes its flag soup
// into an Assessment. Lookups are retried with linear backoff and memoized in the
// per-token risk sub-cache.
type Client struct {
	http     *retryablehttp.Client
	baseURL  string
	chainIDs map[common.Chain]string
	store    cache.Store
	riskTTL  time.Duration
	m        *metrics.Metrics
	logger   zerolog.Logger
}

// NewClient creates a security client for the chains in the registry.
func NewClient(cfg config.Security, registry *common.Registry, store cache.Store, riskTTL time.Duration, m *metrics.Metrics) (*Client, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("fail to parse security base url: %w", err)
	}

	chainIDs := make(map[common.Chain]string)
	for _, d := range registry.All() {
		switch d.Family {
		case common.EVMFamily:
			chainIDs[d.Chain] = d.ChainID
		case common.SolanaFamily:
			// the provider keys all solana clusters under one id
			chainIDs[d.Chain] = "solana"
		}
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.Retries
	client.HTTPClient.Timeout = cfg.Timeout
	// linear backoff, attempt x 1s
	client.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		return time.Duration(attemptNum+1) * time.Second
	}
	// retry any transport error or non-2xx response
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode < 200 || resp.StatusCode >= 300, nil
	}
	c := &Client{
		http:     client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		chainIDs: chainIDs,
		store:    store,
		riskTTL:  riskTTL,
		m:        m,
		logger:   log.Logger.With().Str("module", "security_client").Logger(),
	}
	client.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		if attempt > 0 {
			c.m.GetCounter(metrics.EnrichRetry).Inc()
		}
	}
	return c, nil
}

// FetchTokenSecurity returns the normalized assessment for one token, or nil
// when the provider does not know the token. The caller keeps placeholder
// risk data on error; the scan never fails on enrichment.
func (c *Client) FetchTokenSecurity(ctx context.Context, chain common.Chain, tokenAddress string) (*Assessment, error) {
	chainID, ok := c.chainIDs[chain]
	if !ok {
		return nil, fmt.Errorf("%w: no security mapping for %s", common.ErrUnsupportedChain, chain)
	}

	cacheKey := cache.RiskKey(chainID, tokenAddress)
	if buf, ok := c.store.Get(cacheKey); ok {
		var cached Assessment
		if err := json.Unmarshal(buf, &cached); err == nil {
			return &cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/token_security/%s?contract_addresses=%s",
		c.baseURL, chainID, url.QueryEscape(tokenAddress))
	req, err := retryablehttp.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to create security request: %w", err)
	}
	req = req.WithContext(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrEnrichment, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Err(err).Msg("fail to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: fail to read response: %s", common.ErrEnrichment, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: fail to decode response: %s", common.ErrEnrichment, err)
	}
	if env.Code != 1 {
		return nil, fmt.Errorf("%w: provider code %d: %s", common.ErrEnrichment, env.Code, env.Message)
	}

	// the result map is keyed by lowercased contract address; a missing key
	// means the provider does not know this token
	data, ok := env.Result[common.NormalizeAddress(tokenAddress)]
	if !ok {
		return nil, nil
	}

	result := NewAssessment(tokenAddress, chain, data)
	if buf, err := json.Marshal(result); err == nil {
		c.store.Set(cacheKey, buf, c.riskTTL)
	}
	return result, nil
}
