package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"gitlab.com/walletsweep/sweepnode/common"
	"gitlab.com/walletsweep/sweepnode/constants"
)

// Call is one contract invocation inside a bundle. All calls of a bundle
// target the same chain.
type Call struct {
	Chain common.Chain `json:"chain"`
	To    string       `json:"to"`
	Data  []byte       `json:"-"`
	Value *big.Int     `json:"-"`
}

// Receipt is the bundler's acknowledgement of an accepted bundle.
type Receipt struct {
	TxRef   string `json:"tx_ref"`
	GasUsed uint64 `json:"gas_used"`
}

// Bundler submits an ordered list of calls for sponsored execution. The
// sponsor pays gas, so the subject wallet needs no native balance.
type Bundler interface {
	SubmitBundle(ctx context.Context, calls []Call) (*Receipt, error)
}

// NewBundler selects the bundler implementation for the configured endpoint.
// An empty endpoint yields the local simulating bundler.
func NewBundler(endpoint string, timeout time.Duration) Bundler {
	if endpoint == "" {
		return &SponsoredBundler{}
	}
	return NewRelayBundler(endpoint, timeout)
}

// SponsoredBundler simulates sponsored execution locally. It accepts any
// well formed bundle. The sponsor pays the gas, so the receipt reports zero
// gas used by the subject; BundleGas remains available as the informational
// estimate.
type SponsoredBundler struct{}

// SubmitBundle implements Bundler.
func (b *SponsoredBundler) SubmitBundle(ctx context.Context, calls []Call) (*Receipt, error) {
	if err := checkBundle(calls); err != nil {
		return nil, err
	}
	return &Receipt{
		TxRef:   fmt.Sprintf("sim-%s", uuid.New().String()),
		GasUsed: 0,
	}, nil
}

// RelayBundler submits bundles to an external sponsoring relay over HTTP.
type RelayBundler struct {
	endpoint string
	client   *retryablehttp.Client
}

// NewRelayBundler creates a RelayBundler for the given endpoint.
func NewRelayBundler(endpoint string, timeout time.Duration) *RelayBundler {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	return &RelayBundler{endpoint: endpoint, client: client}
}

type relayCall struct {
	Chain string `json:"chain"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

// SubmitBundle implements Bundler.
func (b *RelayBundler) SubmitBundle(ctx context.Context, calls []Call) (*Receipt, error) {
	if err := checkBundle(calls); err != nil {
		return nil, err
	}
	payload := make([]relayCall, len(calls))
	for i, call := range calls {
		value := "0"
		if call.Value != nil {
			value = call.Value.String()
		}
		payload[i] = relayCall{
			Chain: string(call.Chain),
			To:    call.To,
			Data:  hexutil.Encode(call.Data),
			Value: value,
		}
	}
	body, err := json.Marshal(map[string]interface{}{"calls": payload})
	if err != nil {
		return nil, fmt.Errorf("fail to marshal bundle: %w", err)
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fail to create bundle request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fail to submit bundle: %s", common.ErrExecutionFailure, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: fail to read bundle response: %s", common.ErrExecutionFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: relay rejected bundle with status %d: %s", common.ErrExecutionFailure, resp.StatusCode, string(respBody))
	}
	var receipt Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("%w: fail to parse bundle receipt: %s", common.ErrExecutionFailure, err)
	}
	return &receipt, nil
}

func checkBundle(calls []Call) error {
	if len(calls) == 0 {
		return fmt.Errorf("%w: empty bundle", common.ErrValidationFailure)
	}
	chain := calls[0].Chain
	for _, call := range calls {
		if call.Chain != chain {
			return fmt.Errorf("%w: bundle mixes chains %s and %s", common.ErrValidationFailure, chain, call.Chain)
		}
		if call.To == "" {
			return fmt.Errorf("%w: bundle call without target", common.ErrValidationFailure)
		}
	}
	return nil
}

// BundleGas is the gas one sponsored bundle of n calls consumes.
func BundleGas(n int) uint64 {
	if n == 0 {
		return 0
	}
	return constants.BatchOverheadGas + uint64(n)*constants.BatchedPerTokenGas
}

// IndividualGas is the gas n standalone transactions would consume, for
// comparison against BundleGas.
func IndividualGas(n int) uint64 {
	return uint64(n) * constants.PerTokenGas
}

// GasSavings reports the gas a bundle of n calls saves over n standalone
// transactions. Small bundles can be more expensive than standalone, the
// overhead amortizes from the second call on.
func GasSavings(n int) int64 {
	return int64(IndividualGas(n)) - int64(BundleGas(n))
}
