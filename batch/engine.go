package batch

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/common/tokenlist"
	"gitlab.com/walletsweep/sweepnode/config"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/scanner/chainclients/evm"
)

// burnAddress receives burned tokens. The conventional dead address is used
// because many contracts refuse transfers to the zero address.
const burnAddress = "0x000000000000000000000000000000000000dEaD"

// swapSlippage is the tolerated loss between quoted and executed swap value.
const swapSlippage = 0.01

// swapDeadline bounds how long a submitted swap stays executable.
const swapDeadline = 15 * time.Minute

// AllowanceReader reads the ERC-20 allowance an owner granted a spender.
// The EVM balance fetcher satisfies this.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
}

// Engine executes validated batch actions. On-chain actions are assembled
// into one sponsored bundle per chain; HIDE never leaves the process.
type Engine struct {
	registry *common.Registry
	bundler  Bundler
	readers  map[common.Chain]AllowanceReader
	hidden   *HiddenRepo
	history  *History
	cfg      config.Batch
	m        *metrics.Metrics
	logger   zerolog.Logger
}

// NewEngine creates the batch engine. The readers map may omit chains, the
// engine then emits an approve unconditionally for swaps on those chains.
func NewEngine(registry *common.Registry, bundler Bundler, readers map[common.Chain]AllowanceReader, cfg config.Batch, m *metrics.Metrics) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("chain registry is nil")
	}
	if bundler == nil {
		return nil, fmt.Errorf("bundler is nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics manager is nil")
	}
	hidden, err := NewHiddenRepo(cfg.HiddenSetPath)
	if err != nil {
		return nil, fmt.Errorf("fail to load hidden set: %w", err)
	}
	return &Engine{
		registry: registry,
		bundler:  bundler,
		readers:  readers,
		hidden:   hidden,
		history:  NewHistory(cfg.HistoryLimit),
		cfg:      cfg,
		m:        m,
		logger:   log.Logger.With().Str("module", "batch").Logger(),
	}, nil
}

// Hidden exposes the hidden token set.
func (e *Engine) Hidden() *HiddenRepo {
	return e.hidden
}

// History exposes the execution history.
func (e *Engine) History() *History {
	return e.history
}

// Execute validates the candidates and applies the action to every eligible
// token. The returned result is also recorded in history, including
// failures.
func (e *Engine) Execute(ctx context.Context, owner string, tokens []common.Token, action common.Action) (common.BatchActionResult, error) {
	result, err := e.execute(ctx, owner, tokens, action)
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	e.m.GetCounterVec(metrics.BatchExecution).WithLabelValues(string(action), outcome).Inc()
	e.history.Record(owner, action, result)
	return result, err
}

func (e *Engine) execute(ctx context.Context, owner string, tokens []common.Token, action common.Action) (common.BatchActionResult, error) {
	report, err := Validate(tokens, action)
	if err != nil {
		return common.BatchActionResult{Error: err.Error()}, err
	}
	if len(report.Eligible) == 0 {
		err := fmt.Errorf("%w: no eligible tokens for %s", common.ErrValidationFailure, action)
		return common.BatchActionResult{Error: err.Error()}, err
	}
	if len(report.Rejected) > 0 {
		// never act on a partially invalid batch, the caller must resubmit
		// with only the eligible subset
		reasons := make([]string, 0, len(report.Rejected))
		for _, rejected := range report.Rejected {
			reasons = append(reasons, fmt.Sprintf("%s: %s", rejected.Token.Key(), rejected.Reason))
		}
		err := fmt.Errorf("%w: %d ineligible tokens: %s", common.ErrValidationFailure, len(report.Rejected), strings.Join(reasons, "; "))
		return common.BatchActionResult{Error: err.Error()}, err
	}

	switch action {
	case common.ActionHold:
		// an explicit decision to keep, nothing to submit
		return common.BatchActionResult{Success: true, TokensProcessed: len(report.Eligible)}, nil
	case common.ActionHide:
		if err := e.hidden.Hide(report.Eligible...); err != nil {
			return common.BatchActionResult{Error: err.Error()}, fmt.Errorf("%w: %s", common.ErrExecutionFailure, err)
		}
		return common.BatchActionResult{Success: true, TokensProcessed: len(report.Eligible)}, nil
	case common.ActionSwap, common.ActionBurn:
		return e.submit(ctx, owner, report.Eligible, action)
	default:
		err := fmt.Errorf("%w: unknown action %s", common.ErrValidationFailure, action)
		return common.BatchActionResult{Error: err.Error()}, err
	}
}

// submit assembles and submits one sponsored bundle per chain.
func (e *Engine) submit(ctx context.Context, owner string, tokens []common.Token, action common.Action) (common.BatchActionResult, error) {
	byChain := make(map[common.Chain][]common.Token)
	var chains []common.Chain
	for _, token := range tokens {
		if _, ok := byChain[token.Chain]; !ok {
			chains = append(chains, token.Chain)
		}
		byChain[token.Chain] = append(byChain[token.Chain], token)
	}

	var result common.BatchActionResult
	var txRefs, failures []string
	for _, chain := range chains {
		desc, err := e.registry.Get(chain)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if desc.Family != common.EVMFamily {
			// only EVM chains have sponsored execution today
			e.logger.Warn().Str("chain", string(chain)).Msgf("no %s support for %s family, skipping", action, desc.Family)
			failures = append(failures, fmt.Sprintf("%s: no %s support for %s family", chain, action, desc.Family))
			continue
		}
		calls, processed, value, err := e.assembleCalls(ctx, owner, desc, byChain[chain], action)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		receipt, err := e.bundler.SubmitBundle(ctx, calls)
		if err != nil {
			e.logger.Error().Err(err).Str("chain", string(chain)).Msg("fail to submit bundle")
			failures = append(failures, err.Error())
			continue
		}
		txRefs = append(txRefs, receipt.TxRef)
		result.TokensProcessed += processed
		result.ValueRecovered += value
		result.GasUsed += receipt.GasUsed
	}

	result.TxRef = strings.Join(txRefs, ",")
	result.Success = result.TokensProcessed > 0 && len(failures) == 0
	if len(failures) > 0 {
		result.Error = strings.Join(failures, "; ")
	}
	if result.TokensProcessed == 0 {
		err := fmt.Errorf("%w: %s", common.ErrExecutionFailure, result.Error)
		return result, err
	}
	return result, nil
}

// assembleCalls builds the bundle calls for one chain's tokens. Swapped
// tokens contribute their value as recovered, burns recover nothing.
func (e *Engine) assembleCalls(ctx context.Context, owner string, desc common.ChainDescriptor, tokens []common.Token, action common.Action) ([]Call, int, float64, error) {
	router := e.cfg.Routers[string(desc.Chain)]
	if action == common.ActionSwap && router == "" {
		return nil, 0, 0, fmt.Errorf("%w: no swap router configured for %s", common.ErrValidationFailure, desc.Chain)
	}

	var calls []Call
	var processed int
	var value float64
	for _, token := range tokens {
		raw, ok := new(big.Int).SetString(token.RawBalance, 10)
		if !ok || raw.Sign() <= 0 {
			e.logger.Warn().Str("token", token.Key()).Str("raw", token.RawBalance).Msg("unusable raw balance, skipping token")
			continue
		}
		switch action {
		case common.ActionSwap:
			swapCalls, err := e.swapCalls(ctx, owner, desc, router, token, raw)
			if err != nil {
				return nil, 0, 0, err
			}
			calls = append(calls, swapCalls...)
			value += token.Value
		case common.ActionBurn:
			data, err := evm.PackTransfer(burnAddress, raw)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("fail to pack burn transfer: %w", err)
			}
			calls = append(calls, Call{Chain: desc.Chain, To: token.Address, Data: data})
		}
		processed++
	}
	if len(calls) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: no executable calls for %s on %s", common.ErrValidationFailure, action, desc.Chain)
	}
	return calls, processed, value, nil
}

// swapCalls emits an approve when the router's allowance does not cover the
// balance, then the swap routed into the chain's reference asset.
func (e *Engine) swapCalls(ctx context.Context, owner string, desc common.ChainDescriptor, router string, token common.Token, raw *big.Int) ([]Call, error) {
	var calls []Call

	needApprove := true
	if reader, ok := e.readers[desc.Chain]; ok {
		allowance, err := reader.Allowance(ctx, token.Address, owner, router)
		if err != nil {
			e.logger.Debug().Err(err).Str("token", token.Key()).Msg("fail to read allowance, approving unconditionally")
		} else if allowance.Cmp(raw) >= 0 {
			needApprove = false
		}
	}
	if needApprove {
		data, err := evm.PackApprove(router, raw)
		if err != nil {
			return nil, fmt.Errorf("fail to pack approve: %w", err)
		}
		calls = append(calls, Call{Chain: desc.Chain, To: token.Address, Data: data})
	}

	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := evm.PackSwap(raw, minOut(desc, token), []string{token.Address, desc.ReferenceAsset}, owner, deadline)
	if err != nil {
		return nil, fmt.Errorf("fail to pack swap: %w", err)
	}
	calls = append(calls, Call{Chain: desc.Chain, To: router, Data: data})
	return calls, nil
}

// minOut converts the token's USD value less slippage into reference asset
// units. An unknown reference asset yields zero, leaving slippage protection
// to the relay.
func minOut(desc common.ChainDescriptor, token common.Token) *big.Int {
	entry, ok := tokenlist.Lookup(desc.Chain, desc.ReferenceAsset)
	if !ok {
		return big.NewInt(0)
	}
	floor := token.Value * (1 - swapSlippage) * math.Pow10(entry.Decimals)
	out, _ := new(big.Float).SetFloat64(floor).Int(nil)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}
