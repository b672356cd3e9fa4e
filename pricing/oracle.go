// Package pricing provides the price oracle capability consumed by the
// balance fetchers. Production and test implementations differ only behind
// the Oracle interface, never in orchestration logic.
package pricing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/common"
)

// Oracle resolves the unit price of a symbol in the reference currency (USD).
type Oracle interface {
	Price(ctx context.Context, chain common.Chain, symbol string) (float64, error)
}

// defaultPrices seeds the static oracle. Symbols not present price at zero,
// which keeps unknown tokens in the low-value categories until a real feed
// knows better.
var defaultPrices = map[string]float64{
	"ETH":    3200,
	"WETH":   3200,
	"BNB":    580,
	"WBNB":   580,
	"MATIC":  0.72,
	"WMATIC": 0.72,
	"AVAX":   31,
	"WAVAX":  31,
	"SOL":    152,
	"ARB":    1.1,
	"GMX":    29,
	"LINK":   14.5,
	"UNI":    8.2,
	"CAKE":   2.4,
	"SHIB":   0.000021,
	"BONK":   0.000028,
	"RAY":    1.9,
	"JUP":    0.85,
	"USDC":   1,
	"USDC.E": 1,
	"USDT":   1,
	"USDT.E": 1,
	"DAI":    1,
	"DAI.E":  1,
	"BUSD":   1,
}

// StaticOracle serves prices from a fixed in-memory table.
type StaticOracle struct {
	prices map[string]float64
}

// NewStaticOracle creates a StaticOracle from the default table merged with
// the given overrides.
func NewStaticOracle(overrides map[string]float64) *StaticOracle {
	prices := make(map[string]float64, len(defaultPrices)+len(overrides))
	for symbol, price := range defaultPrices {
		prices[symbol] = price
	}
	for symbol, price := range overrides {
		prices[strings.ToUpper(symbol)] = price
	}
	return &StaticOracle{prices: prices}
}

// Price returns the tabled price for the symbol, zero when unknown. The
// chain argument is part of the Oracle contract; the static table prices a
// symbol identically on every chain.
func (o *StaticOracle) Price(_ context.Context, _ common.Chain, symbol string) (float64, error) {
	return o.prices[strings.ToUpper(symbol)], nil
}

// CachedOracle wraps an Oracle with the auxiliary price sub-cache.
type CachedOracle struct {
	inner Oracle
	store cache.Store
	ttl   time.Duration
}

// NewCachedOracle creates a CachedOracle.
func NewCachedOracle(inner Oracle, store cache.Store, ttl time.Duration) *CachedOracle {
	return &CachedOracle{
		inner: inner,
		store: store,
		ttl:   ttl,
	}
}

// Price serves from the sub-cache when possible, falling through to the
// wrapped oracle. Cache failures degrade to a direct lookup.
func (o *CachedOracle) Price(ctx context.Context, chain common.Chain, symbol string) (float64, error) {
	key := cache.PriceKey(chain, symbol)
	if buf, ok := o.store.Get(key); ok {
		if price, err := strconv.ParseFloat(string(buf), 64); err == nil {
			return price, nil
		}
	}
	price, err := o.inner.Price(ctx, chain, symbol)
	if err != nil {
		return 0, err
	}
	o.store.Set(key, []byte(strconv.FormatFloat(price, 'f', -1, 64)), o.ttl)
	return price, nil
}
