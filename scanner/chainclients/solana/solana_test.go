package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "gopkg.in/check.v1"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/pricing"
)

func TestPackage(t *testing.T) { TestingT(t) }

type SolanaSuite struct{}

var _ = Suite(&SolanaSuite{})

const (
	testOwner   = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	usdcMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	unknownMint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

type fakeRPC struct {
	lamports uint64
	accounts []fakeAccount
	fail     bool
}

type fakeAccount struct {
	mint     string
	amount   string
	decimals int
}

func (f *fakeRPC) handler(c *C) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		var req rpcRequest
		c.Assert(json.NewDecoder(r.Body).Decode(&req), IsNil)

		var result interface{}
		switch req.Method {
		case "getBalance":
			c.Check(req.Params[0], Equals, testOwner)
			result = map[string]interface{}{"value": f.lamports}
		case "getTokenAccountsByOwner":
			c.Check(req.Params[0], Equals, testOwner)
			filter, ok := req.Params[1].(map[string]interface{})
			c.Assert(ok, Equals, true)
			c.Check(filter["programId"], Equals, TokenProgramID)
			value := make([]interface{}, 0, len(f.accounts))
			for _, account := range f.accounts {
				value = append(value, map[string]interface{}{
					"account": map[string]interface{}{
						"data": map[string]interface{}{
							"parsed": map[string]interface{}{
								"info": map[string]interface{}{
									"mint": account.mint,
									"tokenAmount": map[string]interface{}{
										"amount":   account.amount,
										"decimals": account.decimals,
									},
								},
							},
						},
					},
				})
			}
			result = map[string]interface{}{"value": value}
		default:
			c.Errorf("unexpected rpc method %s", req.Method)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
		c.Assert(err, IsNil)
	}
}

func testDescriptor(rpcHost string) common.ChainDescriptor {
	return common.ChainDescriptor{
		Chain:          common.SOLChain,
		ChainID:        "mainnet-beta",
		Name:           "Solana",
		NativeSymbol:   "SOL",
		NativeDecimals: 9,
		Family:         common.SolanaFamily,
		RPCHost:        rpcHost,
	}
}

func newTestClient(c *C, rpcHost string) *Client {
	client, err := NewClient(testDescriptor(rpcHost), pricing.NewStaticOracle(nil), metrics.NewMetrics())
	c.Assert(err, IsNil)
	return client
}

func (s *SolanaSuite) TestFetchBalances(c *C) {
	fake := &fakeRPC{
		lamports: 2_000_000_000, // 2 SOL
		accounts: []fakeAccount{
			{mint: usdcMint, amount: "5000000", decimals: 6},
			{mint: unknownMint, amount: "1000", decimals: 3},
			{mint: usdcMint, amount: "0", decimals: 6}, // empty account dropped
		},
	}
	server := httptest.NewServer(fake.handler(c))
	defer server.Close()

	client := newTestClient(c, server.URL)
	tokens, err := client.FetchBalances(context.Background(), testOwner)
	c.Assert(err, IsNil)
	c.Assert(tokens, HasLen, 3)

	native := tokens[0]
	c.Check(native.IsNative(), Equals, true)
	c.Check(native.Symbol, Equals, "SOL")
	c.Check(native.Balance, Equals, 2.0)
	c.Check(native.Value, Equals, 304.0)
	c.Check(native.Verified, Equals, true)

	usdc := tokens[1]
	c.Check(usdc.Address, Equals, usdcMint)
	c.Check(usdc.Symbol, Equals, "USDC")
	c.Check(usdc.Name, Equals, "USD Coin")
	c.Check(usdc.Decimals, Equals, 6)
	c.Check(usdc.Balance, Equals, 5.0)
	c.Check(usdc.Value, Equals, 5.0)
	c.Check(usdc.RawBalance, Equals, "5000000")

	unknown := tokens[2]
	c.Check(unknown.Symbol, Equals, "7xKX..gAsU")
	c.Check(unknown.Name, Equals, unknownMint)
	c.Check(unknown.Balance, Equals, 1.0)
	// unpriceable tokens stay in, valued at zero
	c.Check(unknown.Value, Equals, 0.0)
}

func (s *SolanaSuite) TestZeroNativeBalance(c *C) {
	fake := &fakeRPC{lamports: 0, accounts: []fakeAccount{{mint: usdcMint, amount: "1000000", decimals: 6}}}
	server := httptest.NewServer(fake.handler(c))
	defer server.Close()

	client := newTestClient(c, server.URL)
	tokens, err := client.FetchBalances(context.Background(), testOwner)
	c.Assert(err, IsNil)
	c.Assert(tokens, HasLen, 1)
	c.Check(tokens[0].Symbol, Equals, "USDC")
}

func (s *SolanaSuite) TestChainUnavailable(c *C) {
	fake := &fakeRPC{fail: true}
	server := httptest.NewServer(fake.handler(c))
	defer server.Close()

	client := newTestClient(c, server.URL)
	_, err := client.FetchBalances(context.Background(), testOwner)
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrChainUnavailable), Equals, true)
}

func (s *SolanaSuite) TestRPCError(c *C) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"node is behind"}}`)
	}))
	defer server.Close()

	client := newTestClient(c, server.URL)
	_, err := client.FetchBalances(context.Background(), testOwner)
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrChainUnavailable), Equals, true)
}

func (s *SolanaSuite) TestInvalidAddress(c *C) {
	client := newTestClient(c, "http://localhost:1")
	_, err := client.FetchBalances(context.Background(), "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1")
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrChainUnavailable), Equals, false)
}

func (s *SolanaSuite) TestWrongFamily(c *C) {
	desc := testDescriptor("http://localhost:1")
	desc.Family = common.EVMFamily
	_, err := NewClient(desc, pricing.NewStaticOracle(nil), metrics.NewMetrics())
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, common.ErrUnsupportedChain), Equals, true)
}
