// Package batch implements the remediation engine: validating a requested
// action against each token's classification, assembling the chain calls and
// submitting them as one gas sponsored bundle.
package batch

import (
	"fmt"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/constants"
)

// RejectedToken is one token excluded from a batch with the reason shown to
// the caller.
type RejectedToken struct {
	Token  common.Token `json:"token"`
	Reason string       `json:"reason"`
}

// ValidationReport partitions a candidate token list for one action.
type ValidationReport struct {
	Action   common.Action   `json:"action"`
	Eligible []common.Token  `json:"eligible"`
	Rejected []RejectedToken `json:"rejected"`
}

// Valid reports whether the batch can execute as requested: at least one
// eligible token and nothing rejected. Callers holding a partially invalid
// batch must resubmit with only the eligible subset.
func (r ValidationReport) Valid() bool {
	return len(r.Eligible) > 0 && len(r.Rejected) == 0
}

// Validate checks every candidate against the action matrix of its category
// plus the per-action value bounds. Rejected tokens never abort the batch,
// they are reported and the rest proceeds.
func Validate(tokens []common.Token, action common.Action) (ValidationReport, error) {
	if !action.Valid() {
		return ValidationReport{}, fmt.Errorf("%w: unknown action %s", common.ErrValidationFailure, action)
	}
	report := ValidationReport{Action: action}
	for _, token := range tokens {
		if reason := eligibility(token, action); reason != "" {
			report.Rejected = append(report.Rejected, RejectedToken{Token: token, Reason: reason})
			continue
		}
		report.Eligible = append(report.Eligible, token)
	}
	return report, nil
}

func eligibility(token common.Token, action common.Action) string {
	if !token.Category.Allows(action) {
		return fmt.Sprintf("action %s is not allowed for category %s", action, token.Category)
	}
	switch action {
	case common.ActionSwap:
		if token.Value < constants.SwapMinValue {
			return fmt.Sprintf("value %.4f below swap minimum %.2f", token.Value, constants.SwapMinValue)
		}
		if token.IsHoneypot {
			return "honeypot tokens cannot be swapped"
		}
	case common.ActionBurn:
		if token.Value >= constants.BurnMaxValue {
			return fmt.Sprintf("value %.4f too high to burn, maximum %.2f", token.Value, constants.BurnMaxValue)
		}
	}
	// HOLD and HIDE touch no contract, only on-chain actions exclude natives
	if token.IsNative() && (action == common.ActionSwap || action == common.ActionBurn) {
		return "native assets cannot be swapped or burned"
	}
	return ""
}
