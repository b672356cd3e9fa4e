package common

import (
	"fmt"
)

// Category is the remediation bucket a scanned token lands in. Exactly one
// category applies to a token at any instant.
type Category string

const (
	CategoryPremium Category = "PREMIUM"
	CategoryDust    Category = "DUST"
	CategoryMicro   Category = "MICRO"
	CategoryRisk    Category = "RISK"
)

// Categories lists every category, in classifier priority order.
func Categories() []Category {
	return []Category{CategoryRisk, CategoryPremium, CategoryDust, CategoryMicro}
}

// Valid returns true when c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPremium, CategoryDust, CategoryMicro, CategoryRisk:
		return true
	}
	return false
}

// Action is a remediation a user can apply to a token.
type Action string

const (
	ActionHold Action = "HOLD"
	ActionSwap Action = "SWAP"
	ActionHide Action = "HIDE"
	ActionBurn Action = "BURN"
)

// Valid returns true when a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionHold, ActionSwap, ActionHide, ActionBurn:
		return true
	}
	return false
}

// actionMatrix is the fixed total mapping from category to legal actions.
// No other code path may derive a token's action set.
var actionMatrix = map[Category][]Action{
	CategoryPremium: {ActionHold, ActionSwap},
	CategoryDust:    {ActionSwap, ActionHide},
	CategoryMicro:   {ActionHide, ActionBurn},
	CategoryRisk:    {ActionHide},
}

// AllowedActions returns a copy of the action-matrix entry for the category.
func AllowedActions(c Category) []Action {
	actions, ok := actionMatrix[c]
	if !ok {
		return nil
	}
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Allows returns true when the action is in the category's action set.
func (c Category) Allows(a Action) bool {
	for _, item := range actionMatrix[c] {
		if item == a {
			return true
		}
	}
	return false
}

// NativeTokenAddress is the sentinel contract address for a chain's native asset.
const NativeTokenAddress = "native"

// Token is one holding of a subject address on one chain.
type Token struct {
	Address        string   `json:"address"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	Decimals       int      `json:"decimals"`
	RawBalance     string   `json:"raw_balance"`
	Balance        float64  `json:"balance"`
	Price          float64  `json:"price"`
	Value          float64  `json:"value"`
	RiskScore      int      `json:"risk_score"`
	IsHoneypot     bool     `json:"is_honeypot"`
	IsRugpull      bool     `json:"is_rugpull"`
	Chain          Chain    `json:"chain"`
	Verified       bool     `json:"verified"`
	Liquidity      float64  `json:"liquidity"`
	Holders        int64    `json:"holders"`
	Category       Category `json:"category"`
	AllowedActions []Action `json:"allowed_actions"`
}

// IsNative returns true when the token is the chain's native asset.
func (t Token) IsNative() bool {
	return t.Address == NativeTokenAddress
}

// Key returns the canonical "chain:address" identity of the token.
func (t Token) Key() string {
	return fmt.Sprintf("%s:%s", t.Chain, NormalizeAddress(t.Address))
}
