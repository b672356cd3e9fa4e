package common

import (
	"fmt"
	"strings"
)

// Chain is the short identifier of a supported network.
type Chain string

const (
	EmptyChain Chain = ""
	ETHChain   Chain = "ETH"
	BSCChain   Chain = "BSC"
	MATICChain Chain = "MATIC"
	AVAXChain  Chain = "AVAX"
	ARBChain   Chain = "ARB"
	SOLChain   Chain = "SOL"
)

// ChainFamily groups chains that share an address format and RPC dialect.
type ChainFamily string

const (
	EVMFamily    ChainFamily = "evm"
	SolanaFamily ChainFamily = "solana"
)

// NewChain parse the given input into a Chain
func NewChain(chainID string) (Chain, error) {
	chain := strings.ToUpper(chainID)
	if len(chain) < 2 {
		return EmptyChain, fmt.Errorf("chain id len is less than 2")
	}
	if len(chain) > 10 {
		return EmptyChain, fmt.Errorf("chain id len is more than 10")
	}
	return Chain(chain), nil
}

// Equals compare chain against another chain , return true when they are the same
func (c Chain) Equals(c2 Chain) bool {
	return strings.EqualFold(string(c), string(c2))
}

// IsEmpty is to determinate whether the chain is empty
func (c Chain) IsEmpty() bool {
	return strings.TrimSpace(string(c)) == ""
}

// String implement fmt.Stringer
func (c Chain) String() string {
	return strings.ToUpper(string(c))
}

// ChainDescriptor is the static description of one supported network. It is
// loaded once from configuration at process start and never mutated.
type ChainDescriptor struct {
	Chain            Chain       `json:"chain" mapstructure:"chain"`
	ChainID          string      `json:"chain_id" mapstructure:"chain_id"`
	Name             string      `json:"name" mapstructure:"name"`
	NativeSymbol     string      `json:"native_symbol" mapstructure:"native_symbol"`
	NativeDecimals   int         `json:"native_decimals" mapstructure:"native_decimals"`
	Family           ChainFamily `json:"family" mapstructure:"family"`
	RPCHost          string      `json:"rpc_host" mapstructure:"rpc_host"`
	MulticallAddress string      `json:"multicall_address" mapstructure:"multicall_address"`
	ReferenceAsset   string      `json:"reference_asset" mapstructure:"reference_asset"`
	IsReference      bool        `json:"is_reference" mapstructure:"is_reference"`
}

// HasMulticall returns true when an aggregated-read contract is configured.
func (d ChainDescriptor) HasMulticall() bool {
	return strings.TrimSpace(d.MulticallAddress) != ""
}

// Registry holds the chain table. All lookups go through it so that callers
// never carry their own copies of chain data.
type Registry struct {
	chains  []ChainDescriptor
	byChain map[Chain]ChainDescriptor
}

// NewRegistry validates the descriptor table and builds the lookup index.
func NewRegistry(descriptors []ChainDescriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("chain table is empty")
	}
	byChain := make(map[Chain]ChainDescriptor, len(descriptors))
	referenceCount := 0
	for _, d := range descriptors {
		if d.Chain.IsEmpty() {
			return nil, fmt.Errorf("chain descriptor with empty chain id")
		}
		if _, ok := byChain[d.Chain]; ok {
			return nil, fmt.Errorf("duplicated chain descriptor: %s", d.Chain)
		}
		if strings.TrimSpace(d.RPCHost) == "" {
			return nil, fmt.Errorf("chain %s has no rpc host", d.Chain)
		}
		switch d.Family {
		case EVMFamily, SolanaFamily:
		default:
			return nil, fmt.Errorf("chain %s has unknown family: %s", d.Chain, d.Family)
		}
		if d.IsReference {
			referenceCount++
		}
		byChain[d.Chain] = d
	}
	if referenceCount != 1 {
		return nil, fmt.Errorf("expect exactly one reference chain, got %d", referenceCount)
	}
	return &Registry{
		chains:  descriptors,
		byChain: byChain,
	}, nil
}

// Get returns the descriptor for the given chain.
func (r *Registry) Get(chain Chain) (ChainDescriptor, error) {
	d, ok := r.byChain[chain]
	if !ok {
		return ChainDescriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return d, nil
}

// Has returns true when the chain is part of the table.
func (r *Registry) Has(chain Chain) bool {
	_, ok := r.byChain[chain]
	return ok
}

// All returns the descriptor table in load order.
func (r *Registry) All() []ChainDescriptor {
	out := make([]ChainDescriptor, len(r.chains))
	copy(out, r.chains)
	return out
}

// Reference returns the descriptor flagged as the reference chain.
func (r *Registry) Reference() ChainDescriptor {
	for _, d := range r.chains {
		if d.IsReference {
			return d
		}
	}
	// NewRegistry guarantees one reference chain exists
	return ChainDescriptor{}
}

// Families returns the distinct address families present in the table.
func (r *Registry) Families() []ChainFamily {
	seen := make(map[ChainFamily]bool)
	var out []ChainFamily
	for _, d := range r.chains {
		if !seen[d.Family] {
			seen[d.Family] = true
			out = append(out, d.Family)
		}
	}
	return out
}
