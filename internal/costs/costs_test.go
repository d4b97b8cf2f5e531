package costs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntrySlippage_NormalVolatility(t *testing.T) {
	m := NewModel("angel", 75)

	// spread 1.0, half-spread 0.5, normal takes 50% of it
	s := m.EntrySlippage(100, 99.5, 100.5, 75, VolatilityNormal)

	assert.InDelta(t, 0.25, s.Amount, 1e-9)
	assert.InDelta(t, 0.25, s.Percent, 1e-9)
	assert.InDelta(t, 100.75, s.EffectivePrice, 1e-9, "entry pays the ask plus slippage")
	assert.InDelta(t, 100.0, s.MidPrice, 1e-9)
	assert.InDelta(t, 1.0, s.SpreadPercent, 1e-9)
}

func TestExitSlippage_SellsBelowBid(t *testing.T) {
	m := NewModel("angel", 75)

	s := m.ExitSlippage(100, 99.5, 100.5, 75, VolatilityNormal)
	assert.InDelta(t, 99.25, s.EffectivePrice, 1e-9)
}

func TestSlippage_VolatilityBuckets(t *testing.T) {
	m := NewModel("angel", 75)

	low := m.EntrySlippage(100, 99.5, 100.5, 75, VolatilityLow)
	normal := m.EntrySlippage(100, 99.5, 100.5, 75, VolatilityNormal)
	high := m.EntrySlippage(100, 99.5, 100.5, 75, VolatilityHigh)

	assert.InDelta(t, 0.125, low.Amount, 1e-9)
	assert.InDelta(t, 0.25, normal.Amount, 1e-9)
	assert.InDelta(t, 0.5, high.Amount, 1e-9)
}

func TestSlippage_MarketImpactAboveTwoLots(t *testing.T) {
	m := NewModel("angel", 75)

	twoLots := m.EntrySlippage(100, 99.5, 100.5, 150, VolatilityNormal)
	fourLots := m.EntrySlippage(100, 99.5, 100.5, 300, VolatilityNormal)

	assert.InDelta(t, 0.25, twoLots.Amount, 1e-9, "two lots pay no impact surcharge")
	// 300/150 - 1 = 1.0 extra impact factor at 5%
	assert.InDelta(t, 0.25*1.05, fourLots.Amount, 1e-9)
}

func TestRoundTripFees_OneLot(t *testing.T) {
	m := NewModel("angel", 75)

	f := m.RoundTripFees(100, 110, 75)

	assert.InDelta(t, 20.0, f.EntryBrokerage, 1e-9)
	assert.InDelta(t, 40.0, f.TotalBrokerage, 1e-9)
	assert.InDelta(t, 7.2, f.GST, 1e-9) // 18% of 40

	// turnover = (100+110)*75 = 15750
	assert.InDelta(t, 15750*0.00015, f.TurnoverCharge, 1e-9)
	assert.InDelta(t, 15750*0.0001, f.SecuritiesTax, 1e-9)
	assert.InDelta(t, 40+7.2+2.3625+1.575, f.TotalCost, 1e-9)
}

func TestRoundTripFees_CheaperBroker(t *testing.T) {
	angel := NewModel("angel", 75)
	fyers := NewModel("fyers", 75)

	assert.Less(t,
		fyers.RoundTripFees(100, 110, 75).TotalBrokerage,
		angel.RoundTripFees(100, 110, 75).TotalBrokerage)
}

func TestRealisticPnl(t *testing.T) {
	m := NewModel("angel", 75)

	net := m.RealisticPnl(100, 110, 75, 0.25, 0.25)

	assert.InDelta(t, 750.0, net.GrossPnl, 1e-9)
	assert.InDelta(t, 37.5, net.SlippageCost, 1e-9)
	assert.InDelta(t, 51.1375, net.BrokerageCost, 1e-9)
	assert.InDelta(t, 750-37.5-51.1375, net.NetPnl, 1e-9)
	assert.Greater(t, net.BreakevenPrice, 100.0)
}

func TestUnknownBrokerFallsBackToDefault(t *testing.T) {
	m := NewModel("unknown", 75)
	f := m.RoundTripFees(100, 110, 75)
	assert.InDelta(t, 20.0, f.EntryBrokerage, 1e-9)
}
