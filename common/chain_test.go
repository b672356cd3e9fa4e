package common

import (
	"errors"
	"testing"

	. "gopkg.in/check.v1"
)

func TestPackage(t *testing.T) { TestingT(t) }

type ChainSuite struct{}

var _ = Suite(&ChainSuite{})

func testDescriptors() []ChainDescriptor {
	return []ChainDescriptor{
		{
			Chain:            ETHChain,
			ChainID:          "1",
			Name:             "Ethereum",
			NativeSymbol:     "ETH",
			NativeDecimals:   18,
			Family:           EVMFamily,
			RPCHost:          "http://localhost:8545",
			MulticallAddress: "0xcA11bde05977b3631167028862bE2a173976CA11",
			IsReference:      true,
		},
		{
			Chain:          SOLChain,
			ChainID:        "mainnet-beta",
			Name:           "Solana",
			NativeSymbol:   "SOL",
			NativeDecimals: 9,
			Family:         SolanaFamily,
			RPCHost:        "http://localhost:8899",
		},
	}
}

func (s *ChainSuite) TestNewChain(c *C) {
	chain, err := NewChain("eth")
	c.Assert(err, IsNil)
	c.Check(chain, Equals, ETHChain)

	_, err = NewChain("e")
	c.Check(err, NotNil)

	_, err = NewChain("veryverylongchain")
	c.Check(err, NotNil)
}

func (s *ChainSuite) TestRegistry(c *C) {
	registry, err := NewRegistry(testDescriptors())
	c.Assert(err, IsNil)

	d, err := registry.Get(ETHChain)
	c.Assert(err, IsNil)
	c.Check(d.Name, Equals, "Ethereum")
	c.Check(d.HasMulticall(), Equals, true)

	_, err = registry.Get(BSCChain)
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrUnsupportedChain), Equals, true)

	c.Check(registry.Has(SOLChain), Equals, true)
	c.Check(registry.Reference().Chain, Equals, ETHChain)
	c.Check(registry.All(), HasLen, 2)
	c.Check(registry.Families(), HasLen, 2)
}

func (s *ChainSuite) TestRegistryValidation(c *C) {
	// duplicate chain
	descs := testDescriptors()
	descs = append(descs, descs[0])
	_, err := NewRegistry(descs)
	c.Check(err, NotNil)

	// no reference chain
	descs = testDescriptors()
	descs[0].IsReference = false
	_, err = NewRegistry(descs)
	c.Check(err, NotNil)

	// missing rpc host
	descs = testDescriptors()
	descs[1].RPCHost = ""
	_, err = NewRegistry(descs)
	c.Check(err, NotNil)

	// unknown family
	descs = testDescriptors()
	descs[1].Family = "utxo"
	_, err = NewRegistry(descs)
	c.Check(err, NotNil)

	_, err = NewRegistry(nil)
	c.Check(err, NotNil)
}

func (s *ChainSuite) TestAddressValidation(c *C) {
	c.Check(IsValidEVMAddress("0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"), Equals, true)
	c.Check(IsValidEVMAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"), Equals, true)
	c.Check(IsValidEVMAddress("90f8bf6a479f320ead074411a4b0e7944ea8c9c1"), Equals, false)
	c.Check(IsValidEVMAddress("0x1234"), Equals, false)

	c.Check(IsValidSolanaAddress("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"), Equals, true)
	c.Check(IsValidSolanaAddress("notbase58!!"), Equals, false)
	c.Check(IsValidSolanaAddress("0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"), Equals, false)

	c.Check(EVMFamily.ValidAddress("0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"), Equals, true)
	c.Check(SolanaFamily.ValidAddress("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"), Equals, true)
	c.Check(ChainFamily("utxo").ValidAddress("anything"), Equals, false)
}

func (s *ChainSuite) TestNormalizeAddress(c *C) {
	c.Check(NormalizeAddress(" 0xABCDef12 "), Equals, "0xabcdef12")
}
