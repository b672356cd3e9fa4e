package common

import (
	"time"
)

// ScanStatus is the per-chain state of a scan.
type ScanStatus string

const (
	ScanPending  ScanStatus = "pending"
	ScanScanning ScanStatus = "scanning"
	ScanComplete ScanStatus = "complete"
	ScanError    ScanStatus = "error"
)

// ChainScanStatus tracks one chain's progress within a scan. A status record
// is created pending at scan start and owned exclusively by the fetch for its
// chain until that fetch resolves; terminal states are never revisited.
type ChainScanStatus struct {
	Chain       Chain      `json:"chain"`
	Status      ScanStatus `json:"status"`
	TokensFound int        `json:"tokens_found"`
	Error       string     `json:"error,omitempty"`
	Progress    int        `json:"progress"`
}

// CategoryBucket aggregates one category's holdings.
type CategoryBucket struct {
	Count  int      `json:"count"`
	Value  float64  `json:"value"`
	Tokens []string `json:"tokens"`
}

// ScanSummary aggregates a full token list by category.
type ScanSummary struct {
	Categories  map[Category]CategoryBucket `json:"categories"`
	TotalValue  float64                     `json:"total_value"`
	TotalTokens int                         `json:"total_tokens"`
}

// NewScanSummary builds the aggregated summary for a classified token list.
func NewScanSummary(tokens []Token) ScanSummary {
	summary := ScanSummary{
		Categories: make(map[Category]CategoryBucket),
	}
	for _, c := range Categories() {
		summary.Categories[c] = CategoryBucket{Tokens: []string{}}
	}
	for _, t := range tokens {
		bucket := summary.Categories[t.Category]
		bucket.Count++
		bucket.Value += t.Value
		bucket.Tokens = append(bucket.Tokens, t.Key())
		summary.Categories[t.Category] = bucket
		summary.TotalValue += t.Value
		summary.TotalTokens++
	}
	return summary
}

// ScanResult is the complete outcome of one scan invocation. A scan always
// produces a result, even when every chain failed.
type ScanResult struct {
	Address   string            `json:"address"`
	ScannedAt time.Time         `json:"scanned_at"`
	Chains    []ChainScanStatus `json:"chains"`
	Tokens    []Token           `json:"tokens"`
	Summary   ScanSummary       `json:"summary"`
	FromCache bool              `json:"from_cache"`
}

// BatchActionResult is the structured outcome of one batch execution.
type BatchActionResult struct {
	Success         bool    `json:"success"`
	TxRef           string  `json:"tx_ref,omitempty"`
	TokensProcessed int     `json:"tokens_processed"`
	ValueRecovered  float64 `json:"value_recovered"`
	GasUsed         uint64  `json:"gas_used"`
	Error           string  `json:"error,omitempty"`
}
