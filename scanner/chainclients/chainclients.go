// Package chainclients provides the per-chain balance adapters consumed by
// the scan orchestrator.
package chainclients

import (
	"context"
	"fmt"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/metrics"
	"gitlab.com/walletsweep/sweepnode/pricing"
	"gitlab.com/walletsweep/sweepnode/scanner/chainclients/evm"
	"gitlab.com/walletsweep/sweepnode/scanner/chainclients/solana"
)

// BalanceFetcher returns the raw token balances a subject address holds on
// one chain. Every fetched token carries placeholder risk data (category
// DUST, risk score 0); enrichment and classification overwrite it later.
type BalanceFetcher interface {
	Chain() common.Chain
	FetchBalances(ctx context.Context, address string) ([]common.Token, error)
}

// NewBalanceFetcher creates the adapter for the descriptor's chain family.
func NewBalanceFetcher(desc common.ChainDescriptor, oracle pricing.Oracle, m *metrics.Metrics) (BalanceFetcher, error) {
	switch desc.Family {
	case common.EVMFamily:
		return evm.NewClient(desc, oracle, m)
	case common.SolanaFamily:
		return solana.NewClient(desc, oracle, m)
	default:
		return nil, fmt.Errorf("%w: no balance fetcher for family %s", common.ErrUnsupportedChain, desc.Family)
	}
}
