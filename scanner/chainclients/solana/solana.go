// Package solana implements the balance fetcher for Solana. The native
// balance comes from getBalance and fungible holdings from one
// getTokenAccountsByOwner call against the SPL token program, so the whole
// chain is covered in two round trips.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/common/tokenlist"
	"gitlab.com/walletsweep/sweepnode/constants"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/pricing"
)

const (
	// TokenProgramID is the SPL token program owning all fungible accounts.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

	lamportsPerSOL = 9 // decimals

	defaultTimeout = 30 * time.Second
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type getBalanceResult struct {
	Value uint64 `json:"value"`
}

type tokenAccountsResult struct {
	Value []struct {
		Account struct {
			Data struct {
				Parsed struct {
					Info struct {
						Mint        string `json:"mint"`
						TokenAmount struct {
							Amount   string `json:"amount"`
							Decimals int    `json:"decimals"`
						} `json:"tokenAmount"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// Client is the balance fetcher for the Solana chain.
type Client struct {
	desc      common.ChainDescriptor
	client    *http.Client
	oracle    pricing.Oracle
	whitelist []tokenlist.ERC20Token
	m         *metrics.Metrics
	logger    zerolog.Logger
	requestID atomic.Uint64
}

// NewClient creates a Solana balance fetcher for the given chain descriptor.
func NewClient(desc common.ChainDescriptor, oracle pricing.Oracle, m *metrics.Metrics) (*Client, error) {
	if desc.Family != common.SolanaFamily {
		return nil, fmt.Errorf("%w: %s is not a solana chain", common.ErrUnsupportedChain, desc.Chain)
	}
	if oracle == nil {
		return nil, fmt.Errorf("price oracle is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	return &Client{
		desc:      desc,
		client:    &http.Client{Timeout: defaultTimeout},
		oracle:    oracle,
		whitelist: tokenlist.GetTokenList(desc.Chain).Tokens,
		m:         m,
		logger:    log.Logger.With().Str("module", "balance_fetcher").Str("chain", string(desc.Chain)).Logger(),
	}, nil
}

// Chain returns the chain this client serves.
func (c *Client) Chain() common.Chain {
	return c.desc.Chain
}

// FetchBalances returns the native SOL balance plus all non-zero SPL token
// balances held by the address.
func (c *Client) FetchBalances(ctx context.Context, address string) ([]common.Token, error) {
	if !common.IsValidSolanaAddress(address) {
		return nil, fmt.Errorf("invalid solana address: %s", address)
	}

	var tokens []common.Token

	var balance getBalanceResult
	if err := c.call(ctx, "getBalance", []interface{}{address}, &balance); err != nil {
		return nil, fmt.Errorf("%w: fail to fetch %s native balance: %s", common.ErrChainUnavailable, c.desc.Chain, err)
	}
	if balance.Value > 0 {
		token, err := c.makeToken(ctx, common.NativeTokenAddress, c.desc.NativeSymbol, c.desc.Name, lamportsPerSOL, new(big.Int).SetUint64(balance.Value))
		if err != nil {
			return nil, err
		}
		token.Verified = true
		token.Liquidity = constants.NativeAssetLiquidity
		token.Holders = constants.NativeAssetHolders
		tokens = append(tokens, token)
	}

	var accounts tokenAccountsResult
	params := []interface{}{
		address,
		map[string]interface{}{"programId": TokenProgramID},
		map[string]interface{}{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &accounts); err != nil {
		return nil, fmt.Errorf("%w: fail to fetch %s token accounts: %s", common.ErrChainUnavailable, c.desc.Chain, err)
	}

	for _, account := range accounts.Value {
		info := account.Account.Data.Parsed.Info
		raw, ok := new(big.Int).SetString(info.TokenAmount.Amount, 10)
		if !ok {
			c.logger.Debug().Str("mint", info.Mint).Str("amount", info.TokenAmount.Amount).Msg("fail to parse token amount, skip")
			continue
		}
		if raw.Sign() == 0 {
			continue
		}
		symbol, name := c.mintIdentity(info.Mint)
		token, err := c.makeToken(ctx, info.Mint, symbol, name, info.TokenAmount.Decimals, raw)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// mintIdentity resolves symbol and name for a mint, falling back to a
// truncated mint address for tokens outside the whitelist.
func (c *Client) mintIdentity(mint string) (string, string) {
	if entry, ok := tokenlist.Lookup(c.desc.Chain, mint); ok {
		return entry.Symbol, entry.Name
	}
	short := mint
	if len(mint) > 8 {
		short = mint[:4] + ".." + mint[len(mint)-4:]
	}
	return short, mint
}

func (c *Client) makeToken(ctx context.Context, address, symbol, name string, decimals int, raw *big.Int) (common.Token, error) {
	balance := humanBalance(raw, decimals)
	price, err := c.oracle.Price(ctx, c.desc.Chain, symbol)
	if err != nil {
		return common.Token{}, fmt.Errorf("fail to price %s: %w", symbol, err)
	}
	return common.Token{
		Address:        address,
		Symbol:         symbol,
		Name:           name,
		Decimals:       decimals,
		RawBalance:     raw.String(),
		Balance:        balance,
		Price:          price,
		Value:          balance * price,
		Chain:          c.desc.Chain,
		Category:       common.CategoryDust,
		AllowedActions: common.AllowedActions(common.CategoryDust),
	}, nil
}

// call performs one JSON-RPC 2.0 round trip against the configured endpoint.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("fail to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.RPCHost, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fail to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fail to send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fail to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("fail to unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("fail to unmarshal result: %w", err)
		}
	}
	return nil
}

func humanBalance(raw *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(raw)
	f.Quo(f, big.NewFloat(math.Pow10(decimals)))
	out, _ := f.Float64()
	return out
}
