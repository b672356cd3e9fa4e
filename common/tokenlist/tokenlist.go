package tokenlist

import (
	"encoding/json"
	"fmt"

	_ "embed"

	"gitlab.com/walletsweep/sweepnode/common"
)

// ERC20Token is a struct to represent the token
type ERC20Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// TokenList is the statically known fungible tokens of one chain.
type TokenList struct {
	Name   string       `json:"name"`
	Tokens []ERC20Token `json:"tokens"`
}

var (
	//go:embed eth_tokens.json
	ethTokenListRaw []byte
	//go:embed bsc_tokens.json
	bscTokenListRaw []byte
	//go:embed matic_tokens.json
	maticTokenListRaw []byte
	//go:embed avax_tokens.json
	avaxTokenListRaw []byte
	//go:embed arb_tokens.json
	arbTokenListRaw []byte
	//go:embed sol_tokens.json
	solTokenListRaw []byte

	tokenLists map[common.Chain]TokenList
)

func init() {
	raw := map[common.Chain][]byte{
		common.ETHChain:   ethTokenListRaw,
		common.BSCChain:   bscTokenListRaw,
		common.MATICChain: maticTokenListRaw,
		common.AVAXChain:  avaxTokenListRaw,
		common.ARBChain:   arbTokenListRaw,
		common.SOLChain:   solTokenListRaw,
	}
	tokenLists = make(map[common.Chain]TokenList, len(raw))
	for chain, buf := range raw {
		var list TokenList
		if err := json.Unmarshal(buf, &list); err != nil {
			panic(fmt.Sprintf("fail to load %s token list: %s", chain, err))
		}
		tokenLists[chain] = list
	}
}

// GetTokenList returns the embedded whitelist for the given chain. Chains
// without a list get an empty one, not an error: the native asset is always
// scannable.
func GetTokenList(chain common.Chain) TokenList {
	list, ok := tokenLists[chain]
	if !ok {
		return TokenList{Name: string(chain)}
	}
	return list
}

// Lookup returns the whitelist entry for the given contract address.
func Lookup(chain common.Chain, address string) (ERC20Token, bool) {
	normalized := common.NormalizeAddress(address)
	for _, t := range GetTokenList(chain).Tokens {
		if common.NormalizeAddress(t.Address) == normalized {
			return t, true
		}
	}
	return ERC20Token{}, false
}
