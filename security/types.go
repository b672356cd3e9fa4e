package security

import (
	"gitlab.com/walletsweep/sweepnode/common"
)

// RiskLevel is the coarse tier derived from the numeric risk score.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "SAFE"
	RiskWarning RiskLevel = "WARNING"
	RiskDanger  RiskLevel = "DANGER"
)

// Severity is the display tier of a single risk finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Finding is one human-readable risk observation. Findings and the score are
// produced by the same trigger conditions and always agree.
type Finding struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Points      int      `json:"points"`
}

// Assessment is the normalized security assessment of one token.
type Assessment struct {
	Address      string       `json:"address"`
	Chain        common.Chain `json:"chain"`
	Score        int          `json:"score"`
	Level        RiskLevel    `json:"level"`
	Honeypot     bool         `json:"honeypot"`
	Rugpull      bool         `json:"rugpull"`
	Transferable bool         `json:"transferable"`
	Verified     bool         `json:"verified"`
	HolderCount  int64        `json:"holder_count"`
	Liquidity    float64      `json:"liquidity"`
	Findings     []Finding    `json:"findings"`
}

// dexPool is one venue entry of the provider response.
type dexPool struct {
	Name      string `json:"name"`
	Liquidity string `json:"liquidity"`
}

// TokenSecurityData is the raw provider shape for one token: a bag of
// string-encoded boolean flags ("1"/"0") and stringified numbers.
type TokenSecurityData struct {
	TokenName          string    `json:"token_name"`
	TokenSymbol        string    `json:"token_symbol"`
	IsHoneypot         string    `json:"is_honeypot"`
	IsOpenSource       string    `json:"is_open_source"`
	IsMintable         string    `json:"is_mintable"`
	OwnerChangeBalance string    `json:"owner_change_balance"`
	HiddenOwner        string    `json:"hidden_owner"`
	SelfDestruct       string    `json:"selfdestruct"`
	BuyTax             string    `json:"buy_tax"`
	SellTax            string    `json:"sell_tax"`
	CannotBuy          string    `json:"cannot_buy"`
	CannotSellAll      string    `json:"cannot_sell_all"`
	TransferPausable   string    `json:"transfer_pausable"`
	IsBlacklisted      string    `json:"is_blacklisted"`
	IsInDex            string    `json:"is_in_dex"`
	HolderCount        string    `json:"holder_count"`
	Dex                []dexPool `json:"dex"`
}

// envelope is the provider response wrapper. The result map is keyed by
// lowercased contract address; a missing key means "unknown token".
type envelope struct {
	Code    int                          `json:"code"`
	Message string                       `json:"message"`
	Result  map[string]TokenSecurityData `json:"result"`
}
