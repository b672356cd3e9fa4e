package security

import (
	"strconv"
	"strings"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/constants"
)

// scoreRule is one additive scoring rule. Rules are order-independent; the
// total is the sum of the points of every rule that fires, clamped to [0,100].
type scoreRule struct {
	name        string
	description string
	points      int
	fires       func(TokenSecurityData) bool
}

var scoreRules = []scoreRule{
	{
		name:        "honeypot",
		description: "token is flagged as a honeypot and cannot be sold",
		points:      40,
		fires:       func(d TokenSecurityData) bool { return flag(d.IsHoneypot) },
	},
	{
		name:        "closed_source",
		description: "contract source is not verified",
		points:      15,
		fires:       func(d TokenSecurityData) bool { return !flag(d.IsOpenSource) },
	},
	{
		name:        "mintable",
		description: "owner can mint new supply",
		points:      20,
		fires:       func(d TokenSecurityData) bool { return flag(d.IsMintable) },
	},
	{
		name:        "owner_change_balance",
		description: "owner can directly alter holder balances",
		points:      25,
		fires:       func(d TokenSecurityData) bool { return flag(d.OwnerChangeBalance) },
	},
	{
		name:        "hidden_owner",
		description: "contract has a hidden owner mechanism",
		points:      15,
		fires:       func(d TokenSecurityData) bool { return flag(d.HiddenOwner) },
	},
	{
		name:        "self_destruct",
		description: "contract can self destruct",
		points:      30,
		fires:       func(d TokenSecurityData) bool { return flag(d.SelfDestruct) },
	},
	{
		name:        "high_tax",
		description: "combined buy and sell tax exceeds 10%",
		points:      10,
		fires: func(d TokenSecurityData) bool {
			return parseTax(d.BuyTax)+parseTax(d.SellTax) > 0.10
		},
	},
	{
		name:        "cannot_sell_all",
		description: "holders cannot sell their full balance",
		points:      20,
		fires:       func(d TokenSecurityData) bool { return flag(d.CannotSellAll) },
	},
	{
		name:        "transfer_pausable",
		description: "transfers can be paused by the owner",
		points:      10,
		fires:       func(d TokenSecurityData) bool { return flag(d.TransferPausable) },
	},
	{
		name:        "blacklist",
		description: "contract has a blacklist mechanism",
		points:      10,
		fires:       func(d TokenSecurityData) bool { return flag(d.IsBlacklisted) },
	},
	{
		name:        "not_listed",
		description: "token is not listed on any known exchange venue",
		points:      5,
		fires:       func(d TokenSecurityData) bool { return !flag(d.IsInDex) },
	},
}

// Score runs every rule over the raw provider data and returns the clamped
// total plus one finding per fired rule.
func Score(data TokenSecurityData) (int, []Finding) {
	total := 0
	var findings []Finding
	for _, rule := range scoreRules {
		if !rule.fires(data) {
			continue
		}
		total += rule.points
		findings = append(findings, Finding{
			Name:        rule.name,
			Description: rule.description,
			Severity:    severityForPoints(rule.points),
			Points:      rule.points,
		})
	}
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, findings
}

// LevelForScore maps a risk score to its tier. Boundaries are inclusive on
// the low side: SAFE covers [0,20], WARNING (20,50], DANGER (50,100].
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= constants.RiskLevelSafeCeiling:
		return RiskSafe
	case score <= constants.RiskLevelWarningCeiling:
		return RiskWarning
	default:
		return RiskDanger
	}
}

// NewAssessment derives the full normalized assessment from raw provider data.
func NewAssessment(address string, chain common.Chain, data TokenSecurityData) *Assessment {
	score, findings := Score(data)
	holders, _ := strconv.ParseInt(strings.TrimSpace(data.HolderCount), 10, 64)
	liquidity := 0.0
	for _, pool := range data.Dex {
		if v, err := strconv.ParseFloat(strings.TrimSpace(pool.Liquidity), 64); err == nil {
			liquidity += v
		}
	}
	return &Assessment{
		Address:      address,
		Chain:        chain,
		Score:        score,
		Level:        LevelForScore(score),
		Honeypot:     flag(data.IsHoneypot),
		Rugpull:      flag(data.OwnerChangeBalance) || flag(data.SelfDestruct),
		Transferable: !flag(data.CannotBuy) && !flag(data.CannotSellAll),
		Verified:     flag(data.IsOpenSource),
		HolderCount:  holders,
		Liquidity:    liquidity,
		Findings:     findings,
	}
}

// severityForPoints derives the display tier from a rule's weight, so the
// finding list can never disagree with the score.
func severityForPoints(points int) Severity {
	switch {
	case points >= 30:
		return SeverityCritical
	case points >= 20:
		return SeverityHigh
	case points >= 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// flag parses a provider boolean, which may be "1", "0", "true" or empty.
func flag(s string) bool {
	s = strings.TrimSpace(s)
	return s == "1" || strings.EqualFold(s, "true")
}

// parseTax parses a provider tax fraction, e.g. "0.05" for 5%.
func parseTax(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
