package common

import (
	. "gopkg.in/check.v1"
)

type TokenSuite struct{}

var _ = Suite(&TokenSuite{})

func (s *TokenSuite) TestActionMatrixTotal(c *C) {
	// every category maps to a non-empty action set
	for _, category := range Categories() {
		actions := AllowedActions(category)
		c.Assert(len(actions) > 0, Equals, true, Commentf("category %s", category))
		for _, a := range actions {
			c.Check(a.Valid(), Equals, true)
			c.Check(category.Allows(a), Equals, true)
		}
	}
	c.Check(AllowedActions(Category("UNKNOWN")), IsNil)
}

func (s *TokenSuite) TestActionMatrixEntries(c *C) {
	c.Check(AllowedActions(CategoryPremium), DeepEquals, []Action{ActionHold, ActionSwap})
	c.Check(AllowedActions(CategoryDust), DeepEquals, []Action{ActionSwap, ActionHide})
	c.Check(AllowedActions(CategoryMicro), DeepEquals, []Action{ActionHide, ActionBurn})
	c.Check(AllowedActions(CategoryRisk), DeepEquals, []Action{ActionHide})

	c.Check(CategoryRisk.Allows(ActionBurn), Equals, false)
	c.Check(CategoryPremium.Allows(ActionHide), Equals, false)
}

func (s *TokenSuite) TestAllowedActionsIsCopy(c *C) {
	actions := AllowedActions(CategoryDust)
	actions[0] = ActionBurn
	c.Check(AllowedActions(CategoryDust)[0], Equals, ActionSwap)
}

func (s *TokenSuite) TestTokenKey(c *C) {
	t := Token{Chain: ETHChain, Address: "0xABCDef"}
	c.Check(t.Key(), Equals, "ETH:0xabcdef")
	c.Check(t.IsNative(), Equals, false)

	native := Token{Chain: SOLChain, Address: NativeTokenAddress}
	c.Check(native.IsNative(), Equals, true)
}

func (s *TokenSuite) TestNewScanSummary(c *C) {
	tokens := []Token{
		{Chain: ETHChain, Address: NativeTokenAddress, Value: 8000, Category: CategoryPremium},
		{Chain: ETHChain, Address: "0xaaa", Value: 4.25, Category: CategoryDust},
		{Chain: BSCChain, Address: "0xbbb", Value: 0.25, Category: CategoryMicro},
		{Chain: BSCChain, Address: "0xccc", Value: 1.5, Category: CategoryDust},
	}
	summary := NewScanSummary(tokens)
	c.Check(summary.TotalTokens, Equals, 4)
	c.Check(summary.TotalValue, Equals, 8006.0)
	c.Check(summary.Categories[CategoryPremium].Count, Equals, 1)
	c.Check(summary.Categories[CategoryDust].Count, Equals, 2)
	c.Check(summary.Categories[CategoryDust].Value, Equals, 5.75)
	c.Check(summary.Categories[CategoryMicro].Tokens, DeepEquals, []string{"BSC:0xbbb"})
	c.Check(summary.Categories[CategoryRisk].Count, Equals, 0)
}

func (s *TokenSuite) TestCategoryValid(c *C) {
	c.Check(CategoryPremium.Valid(), Equals, true)
	c.Check(Category("JUNK").Valid(), Equals, false)
	c.Check(ActionSwap.Valid(), Equals, true)
	c.Check(Action("MINT").Valid(), Equals, false)
}
