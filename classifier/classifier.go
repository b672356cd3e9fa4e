// Package classifier assigns each scanned token its remediation category and
// the set of legal actions for that category. Classification is a pure
// function of the token's value, risk score, liquidity, holder count and
// verification flag: no I/O, no side effects, deterministic and idempotent.
package classifier

import (
	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/constants"
)

// Classify returns the category and legal actions for a token.
//
// Rules are evaluated in priority order and the first match wins; the order
// is semantically load bearing:
//
//  1. RISK     riskScore >= 75
//  2. PREMIUM  value >= 10 and verified and liquidity >= 100k and
//              holders >= 500 and riskScore <= 25
//  3. DUST     0.1 <= value < 10 and riskScore <= 50
//  4. MICRO    everything else
func Classify(token common.Token) (common.Category, []common.Action) {
	category := categorize(token)
	return category, common.AllowedActions(category)
}

// Apply stamps the classification onto the token. This is the only code
// path that sets Category and AllowedActions.
func Apply(token *common.Token) {
	token.Category, token.AllowedActions = Classify(*token)
}

func categorize(token common.Token) common.Category {
	if token.RiskScore >= constants.RiskScoreFloor {
		return common.CategoryRisk
	}
	if token.Value >= constants.PremiumMinValue &&
		token.Verified &&
		token.Liquidity >= constants.PremiumMinLiquidity &&
		token.Holders >= constants.PremiumMinHolders &&
		token.RiskScore <= constants.PremiumMaxRiskScore {
		return common.CategoryPremium
	}
	if token.Value >= constants.DustMinValue &&
		token.Value < constants.DustMaxValue &&
		token.RiskScore <= constants.DustMaxRiskScore {
		return common.CategoryDust
	}
	return common.CategoryMicro
}
