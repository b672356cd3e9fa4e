package pricing

import (
	"context"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"gitlab.com/walletsweep/sweepnode/cache"
	"gitlab.com/walletsweep/sweepnode/common"
)

func TestPackage(t *testing.T) { TestingT(t) }

type OracleSuite struct{}

var _ = Suite(&OracleSuite{})

func (s *OracleSuite) TestStaticOracle(c *C) {
	oracle := NewStaticOracle(map[string]float64{"eth": 3000})
	ctx := context.Background()

	price, err := oracle.Price(ctx, common.ETHChain, "ETH")
	c.Assert(err, IsNil)
	c.Check(price, Equals, 3000.0) // override wins over the default table

	price, err = oracle.Price(ctx, common.ETHChain, "usdc")
	c.Assert(err, IsNil)
	c.Check(price, Equals, 1.0) // symbol lookup is case insensitive

	price, err = oracle.Price(ctx, common.BSCChain, "NOSUCH")
	c.Assert(err, IsNil)
	c.Check(price, Equals, 0.0)
}

// countingOracle counts pass-through lookups.
type countingOracle struct {
	calls int
	price float64
}

func (o *countingOracle) Price(_ context.Context, _ common.Chain, _ string) (float64, error) {
	o.calls++
	return o.price, nil
}

func (s *OracleSuite) TestCachedOracle(c *C) {
	inner := &countingOracle{price: 42.5}
	oracle := NewCachedOracle(inner, cache.NewMemoryStore(time.Minute), time.Minute)
	ctx := context.Background()

	price, err := oracle.Price(ctx, common.ETHChain, "UNI")
	c.Assert(err, IsNil)
	c.Check(price, Equals, 42.5)

	price, err = oracle.Price(ctx, common.ETHChain, "uni")
	c.Assert(err, IsNil)
	c.Check(price, Equals, 42.5)
	c.Check(inner.calls, Equals, 1) // second lookup served from sub-cache

	// a different chain is a different key
	_, err = oracle.Price(ctx, common.BSCChain, "UNI")
	c.Assert(err, IsNil)
	c.Check(inner.calls, Equals, 2)
}
