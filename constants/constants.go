// Package constants holds the fixed numeric rules of the scan and
// remediation pipeline. These are product rules, not tunables: changing one
// changes category assignments for every user, so they do not live in config.
package constants

import "time"

// Classifier thresholds. The evaluation order is RISK, PREMIUM, DUST, MICRO;
// the values here are meaningless outside that order.
const (
	// RiskScoreFloor is the minimum risk score that forces the RISK category.
	RiskScoreFloor = 75

	// PremiumMinValue is the minimum USD value for PREMIUM.
	PremiumMinValue = 10.0
	// PremiumMinLiquidity is the minimum pooled liquidity in USD for PREMIUM.
	PremiumMinLiquidity = 100_000.0
	// PremiumMinHolders is the minimum holder count for PREMIUM.
	PremiumMinHolders = 500
	// PremiumMaxRiskScore is the maximum risk score tolerated for PREMIUM.
	PremiumMaxRiskScore = 25

	// DustMinValue and DustMaxValue bound the USD value band for DUST.
	DustMinValue = 0.1
	DustMaxValue = 10.0
	// DustMaxRiskScore is the maximum risk score tolerated for DUST.
	DustMaxRiskScore = 50
)

// Risk level boundaries, inclusive on the low side.
const (
	RiskLevelSafeCeiling    = 20
	RiskLevelWarningCeiling = 50
)

// Batch action guards.
const (
	// SwapMinValue is the minimum USD value for a token to be swappable.
	SwapMinValue = 0.01
	// BurnMaxValue is the USD value ceiling for a burnable token.
	BurnMaxValue = 0.1
)

// Gas estimation constants. Informational only, never gate execution.
const (
	PerTokenGas        uint64 = 65_000
	BatchedPerTokenGas uint64 = 25_000
	BatchOverheadGas   uint64 = 120_000
)

// Native asset placeholders. Native assets have no token contract to audit,
// so they carry fixed deep-liquidity metadata through classification.
const (
	NativeAssetLiquidity = 1_000_000_000.0
	NativeAssetHolders   = 10_000_000
)

// Scan pipeline defaults. Config may override the batching knobs.
const (
	DefaultChainBatchSize   = 3
	DefaultEnrichBatchSize  = 5
	DefaultEnrichBatchDelay = 200 * time.Millisecond
	DefaultFetchRetries     = 3
	DefaultCacheTTL         = 5 * time.Minute
	DefaultPriceCacheTTL    = 5 * time.Minute
	DefaultRiskCacheTTL     = 30 * time.Minute
	DefaultHTTPTimeout      = 10 * time.Second
	DefaultHistoryLimit     = 256
)
