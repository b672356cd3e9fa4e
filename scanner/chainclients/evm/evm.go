// Package evm implements the balance fetcher for EVM style chains. Balances
// of statically known tokens are read in one aggregated multicall when the
// chain has a multicall contract configured, with a sequential per-token
// fallback otherwise.
package evm

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	_ "embed"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/common/tokenlist"
	"gitlab.com/walletsweep/sweepnode/constants"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/pricing"
)

//go:embed abi/erc20.json
var erc20ContractABI string

//go:embed abi/multicall3.json
var multicallContractABI string

//go:embed abi/router.json
var routerContractABI string

var (
	erc20ABI     *abi.ABI
	multicallABI *abi.ABI
	routerABI    *abi.ABI
)

func init() {
	var err error
	erc20ABI, multicallABI, routerABI, err = getContractABIs()
	if err != nil {
		panic(fmt.Sprintf("fail to parse contract abi: %s", err))
	}
}

func getContractABIs() (*abi.ABI, *abi.ABI, *abi.ABI, error) {
	erc20, err := abi.JSON(strings.NewReader(erc20ContractABI))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fail to parse erc20 abi: %w", err)
	}
	multicall, err := abi.JSON(strings.NewReader(multicallContractABI))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fail to parse multicall abi: %w", err)
	}
	router, err := abi.JSON(strings.NewReader(routerContractABI))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fail to parse router abi: %w", err)
	}
	return &erc20, &multicall, &router, nil
}

// multicall3Call is one entry of an aggregate3 request.
type multicall3Call struct {
	Target       ecommon.Address `abi:"target"`
	AllowFailure bool            `abi:"allowFailure"`
	CallData     []byte          `abi:"callData"`
}

// multicall3Result is one entry of an aggregate3 response.
type multicall3Result struct {
	Success    bool   `abi:"success"`
	ReturnData []byte `abi:"returnData"`
}

// Client is the balance fetcher for one EVM chain.
type Client struct {
	desc      common.ChainDescriptor
	client    *ethclient.Client
	oracle    pricing.Oracle
	whitelist []tokenlist.ERC20Token
	m         *metrics.Metrics
	logger    zerolog.Logger
}

// NewClient creates an EVM balance fetcher for the given chain descriptor.
func NewClient(desc common.ChainDescriptor, oracle pricing.Oracle, m *metrics.Metrics) (*Client, error) {
	if desc.Family != common.EVMFamily {
		return nil, fmt.Errorf("%w: %s is not an evm chain", common.ErrUnsupportedChain, desc.Chain)
	}
	if oracle == nil {
		return nil, fmt.Errorf("price oracle is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	client, err := ethclient.Dial(desc.RPCHost)
	if err != nil {
		return nil, fmt.Errorf("fail to dial %s rpc: %w", desc.Chain, err)
	}
	return &Client{
		desc:      desc,
		client:    client,
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

// FetchBalances returns the native balance plus all non-zero whitelist token
// balances held by the address.
func (c *Client) FetchBalances(ctx context.Context, address string) ([]common.Token, error) {
	if !common.IsValidEVMAddress(address) {
		return nil, fmt.Errorf("invalid evm address: %s", address)
	}
	owner := ecommon.HexToAddress(address)

	var tokens []common.Token

	// native balance is always attempted first; an unreachable endpoint
	// fails the whole chain here rather than per token
	nativeBalance, err := c.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fail to fetch %s native balance: %s", common.ErrChainUnavailable, c.desc.Chain, err)
	}
	if nativeBalance.Sign() > 0 {
		token, err := c.makeToken(ctx, common.NativeTokenAddress, c.desc.NativeSymbol, c.desc.Name, c.desc.NativeDecimals, nativeBalance)
		if err != nil {
			return nil, err
		}
		// native assets have no contract to audit, they carry fixed deep
		// liquidity metadata through classification
		token.Verified = true
		token.Liquidity = constants.NativeAssetLiquidity
		token.Holders = constants.NativeAssetHolders
		tokens = append(tokens, token)
	}

	balances := c.tokenBalances(ctx, owner)
	for _, entry := range c.whitelist {
		raw, ok := balances[common.NormalizeAddress(entry.Address)]
		if !ok || raw.Sign() == 0 {
			continue
		}
		symbol, name, decimals, err := c.tokenMeta(ctx, entry)
		if err != nil {
			// metadata failures skip the token, never the chain
			c.logger.Debug().Err(err).Str("token", entry.Symbol).Msg("fail to fetch token metadata, skip")
			continue
		}
		token, err := c.makeToken(ctx, entry.Address, symbol, name, decimals, raw)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// tokenBalances reads all whitelist balances, via one aggregated multicall
// when available and falling back to sequential balanceOf calls.
func (c *Client) tokenBalances(ctx context.Context, owner ecommon.Address) map[string]*big.Int {
	if c.desc.HasMulticall() {
		balances, err := c.multicallBalances(ctx, owner)
		if err == nil {
			return balances
		}
		c.logger.Warn().Err(err).Msg("multicall failed, falling back to sequential balanceOf")
	}
	return c.sequentialBalances(ctx, owner)
}

func (c *Client) multicallBalances(ctx context.Context, owner ecommon.Address) (map[string]*big.Int, error) {
	calls := make([]multicall3Call, 0, len(c.whitelist))
	for _, entry := range c.whitelist {
		callData, err := erc20ABI.Pack("balanceOf", owner)
		if err != nil {
			return nil, fmt.Errorf("fail to pack balanceOf: %w", err)
		}
		calls = append(calls, multicall3Call{
			Target:       ecommon.HexToAddress(entry.Address),
			AllowFailure: true,
			CallData:     callData,
		})
	}
	if len(calls) == 0 {
		return map[string]*big.Int{}, nil
	}

	input, err := multicallABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("fail to pack aggregate3: %w", err)
	}
	multicallAddr := ecommon.HexToAddress(c.desc.MulticallAddress)
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &multicallAddr, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to call multicall: %w", err)
	}
	unpacked, err := multicallABI.Unpack("aggregate3", raw)
	if err != nil {
		return nil, fmt.Errorf("fail to unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 output length: %d", len(unpacked))
	}
	results := *abi.ConvertType(unpacked[0], new([]multicall3Result)).(*[]multicall3Result)
	if len(results) != len(c.whitelist) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(c.whitelist))
	}

	balances := make(map[string]*big.Int, len(results))
	for i, result := range results {
		if !result.Success {
			continue
		}
		balance, err := unpackBalance(result.ReturnData)
		if err != nil {
			c.logger.Debug().Err(err).Str("token", c.whitelist[i].Symbol).Msg("fail to decode balance, skip")
			continue
		}
		balances[common.NormalizeAddress(c.whitelist[i].Address)] = balance
	}
	return balances, nil
}

func (c *Client) sequentialBalances(ctx context.Context, owner ecommon.Address) map[string]*big.Int {
	balances := make(map[string]*big.Int, len(c.whitelist))
	for _, entry := range c.whitelist {
		balance, err := c.balanceOf(ctx, ecommon.HexToAddress(entry.Address), owner)
		if err != nil {
			c.logger.Debug().Err(err).Str("token", entry.Symbol).Msg("fail to fetch balance, skip")
			continue
		}
		balances[common.NormalizeAddress(entry.Address)] = balance
	}
	return balances
}

func (c *Client) balanceOf(ctx context.Context, token, owner ecommon.Address) (*big.Int, error) {
	input, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("fail to pack balanceOf: %w", err)
	}
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to call balanceOf: %w", err)
	}
	return unpackBalance(raw)
}

// Allowance returns the ERC-20 allowance granted by owner to spender.
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	tokenAddr := ecommon.HexToAddress(token)
	input, err := erc20ABI.Pack("allowance", ecommon.HexToAddress(owner), ecommon.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("fail to pack allowance: %w", err)
	}
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fail to call allowance: %s", common.ErrChainUnavailable, err)
	}
	return unpackBalance(raw)
}

// tokenMeta fetches symbol/name/decimals from the contract for a token with
// a non-zero balance. The on-chain values are authoritative over the
// whitelist entry; a metadata error is returned so the caller can skip the
// token without failing the chain.
func (c *Client) tokenMeta(ctx context.Context, entry tokenlist.ERC20Token) (string, string, int, error) {
	token := ecommon.HexToAddress(entry.Address)

	symbol, err := c.callString(ctx, token, "symbol")
	if err != nil {
		return "", "", 0, fmt.Errorf("fail to fetch symbol: %w", err)
	}
	name, err := c.callString(ctx, token, "name")
	if err != nil {
		return "", "", 0, fmt.Errorf("fail to fetch name: %w", err)
	}
	input, err := erc20ABI.Pack("decimals")
	if err != nil {
		return "", "", 0, fmt.Errorf("fail to pack decimals: %w", err)
	}
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return "", "", 0, fmt.Errorf("fail to call decimals: %w", err)
	}
	unpacked, err := erc20ABI.Unpack("decimals", raw)
	if err != nil || len(unpacked) != 1 {
		return "", "", 0, fmt.Errorf("fail to unpack decimals: %w", err)
	}
	decimals, ok := unpacked[0].(uint8)
	if !ok {
		return "", "", 0, fmt.Errorf("unexpected decimals type %T", unpacked[0])
	}
	return symbol, name, int(decimals), nil
}

func (c *Client) callString(ctx context.Context, token ecommon.Address, method string) (string, error) {
	input, err := erc20ABI.Pack(method)
	if err != nil {
		return "", fmt.Errorf("fail to pack %s: %w", method, err)
	}
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return "", fmt.Errorf("fail to call %s: %w", method, err)
	}
	unpacked, err := erc20ABI.Unpack(method, raw)
	if err != nil || len(unpacked) != 1 {
		return "", fmt.Errorf("fail to unpack %s: %w", method, err)
	}
	value, ok := unpacked[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %T", method, unpacked[0])
	}
	return value, nil
}

// makeToken builds the placeholder-classified token for a raw balance.
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

func unpackBalance(data []byte) (*big.Int, error) {
	unpacked, err := erc20ABI.Unpack("balanceOf", data)
	if err != nil {
		return nil, fmt.Errorf("fail to unpack balanceOf: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output length: %d", len(unpacked))
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type %T", unpacked[0])
	}
	return balance, nil
}

func humanBalance(raw *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(raw)
	f.Quo(f, big.NewFloat(math.Pow10(decimals)))
	out, _ := f.Float64()
	return out
}

// PackApprove packs an ERC-20 approve call.
func PackApprove(spender string, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", ecommon.HexToAddress(spender), amount)
}

// PackTransfer packs an ERC-20 transfer call.
func PackTransfer(to string, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("transfer", ecommon.HexToAddress(to), amount)
}

// PackSwap packs a router swapExactTokensForTokens call.
func PackSwap(amountIn, amountOutMin *big.Int, path []string, to string, deadline *big.Int) ([]byte, error) {
	addrs := make([]ecommon.Address, len(path))
	for i, hop := range path {
		addrs[i] = ecommon.HexToAddress(hop)
	}
	return routerABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, addrs, ecommon.HexToAddress(to), deadline)
}
