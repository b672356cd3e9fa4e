package security

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "gopkg.in/check.v1"

	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/config"
	"gitlab.com/walletsweep/sweepnode/metrics"
)

type ClientSuite struct{}

var _ = Suite(&ClientSuite{})

func testRegistry(c *C) *common.Registry {
	registry, err := common.NewRegistry([]common.ChainDescriptor{
		{
			Chain:          common.ETHChain,
			ChainID:        "1",
			Name:           "Ethereum",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Family:         common.EVMFamily,
			RPCHost:        "http://localhost:8545",
			IsReference:    true,
		},
	})
	c.Assert(err, IsNil)
	return registry
}

func newTestClient(c *C, serverURL string) *Client {
	cfg := config.Security{
		BaseURL: serverURL,
		Retries: 2,
		Timeout: 2 * time.Second,
	}
	client, err := NewClient(cfg, testRegistry(c), cache.NewMemoryStore(time.Minute), time.Minute, metrics.NewMetrics())
	c.Assert(err, IsNil)
	return client
}

func securityPayload(address string, data TokenSecurityData) []byte {
	buf, _ := json.Marshal(envelope{
		Code:   1,
		Result: map[string]TokenSecurityData{address: data},
	})
	return buf
}

func (s *ClientSuite) TestFetchTokenSecurity(c *C) {
	address := "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce"
	data := TokenSecurityData{
		IsHoneypot:   "0",
		IsOpenSource: "0",
		IsMintable:   "1",
		IsInDex:      "1",
		HolderCount:  "900",
	}
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		c.Check(r.URL.Path, Equals, "/token_security/1")
		c.Check(r.URL.Query().Get("contract_addresses"), Equals, address)
		_, err := w.Write(securityPayload(address, data))
		c.Assert(err, IsNil)
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	result, err := client.FetchTokenSecurity(context.Background(), common.ETHChain, address)
	c.Assert(err, IsNil)
	c.Assert(result, NotNil)
	c.Check(result.Score, Equals, 35)
	c.Check(result.Level, Equals, RiskWarning)
	c.Check(result.HolderCount, Equals, int64(900))

	// second fetch is served by the risk sub-cache
	_, err = client.FetchTokenSecurity(context.Background(), common.ETHChain, address)
	c.Assert(err, IsNil)
	c.Check(atomic.LoadInt32(&requests), Equals, int32(1))
}

func (s *ClientSuite) TestUnknownTokenIsNil(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := json.Marshal(envelope{Code: 1, Result: map[string]TokenSecurityData{}})
		_, _ = w.Write(buf)
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	result, err := client.FetchTokenSecurity(context.Background(), common.ETHChain, "0x0000000000000000000000000000000000000001")
	c.Assert(err, IsNil)
	c.Check(result, IsNil)
}

func (s *ClientSuite) TestRetryOnServerError(c *C) {
	address := "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce"
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(securityPayload(address, TokenSecurityData{IsOpenSource: "1", IsInDex: "1"}))
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	result, err := client.FetchTokenSecurity(context.Background(), common.ETHChain, address)
	c.Assert(err, IsNil)
	c.Assert(result, NotNil)
	c.Check(result.Score, Equals, 0)
	c.Check(atomic.LoadInt32(&requests), Equals, int32(2))
}

func (s *ClientSuite) TestRetryExhaustion(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	_, err := client.FetchTokenSecurity(context.Background(), common.ETHChain, "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce")
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrEnrichment), Equals, true)
}

func (s *ClientSuite) TestProviderErrorCode(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := json.Marshal(envelope{Code: 4029, Message: "rate limited"})
		_, _ = w.Write(buf)
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	_, err := client.FetchTokenSecurity(context.Background(), common.ETHChain, "0x95ad61b0a150d79219dcf64e1e6cc01f0b64c4ce")
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrEnrichment), Equals, true)
}

func (s *ClientSuite) TestUnsupportedChain(c *C) {
	client := newTestClient(c, "http://localhost:1")
	_, err := client.FetchTokenSecurity(context.Background(), common.Chain("DOGE"), "0xabc")
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrUnsupportedChain), Equals, true)
}
