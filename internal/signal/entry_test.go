package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// primeBias drives the bias engine into the requested state with a
// clean tick sequence.
func primeBias(b *BiasEngine, bias Bias) {
	delta := 0.50
	if bias == BiasBearish {
		delta = -0.50
	}
	feedTicks(b, []tick{
		{100.0, delta, 0.0040, 25, 1000, 500},
		{101.0, delta, 0.0045, 25, 1050, 600},
		{102.0, delta, 0.0050, 25, 1100, 700},
	})
}

func newEntryFixture(bias Bias) *EntryEngine {
	b := NewBiasEngine(DefaultBiasConfig())
	if bias != BiasUnknown {
		primeBias(b, bias)
	}
	return NewEntryEngine(DefaultEntryConfig(), b, NewTrapDetector(DefaultTrapConfig()))
}

func callQuote(tk tick) types.OptionQuote {
	return types.OptionQuote{
		OptionSnapshot: snapFromTick(tk, time.Date(2025, 3, 10, 10, 5, 0, 0, time.UTC)),
		Strike:         24800,
		OptionType:     types.OptionCall,
	}
}

func TestEntry_AllSignalsAligned(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	prev := snapFromTick(tick{100.0, 0.50, 0.0040, 25, 5000, 1000}, time.Now())
	ctx := e.Check(callQuote(tick{100.5, 0.52, 0.0045, 25, 5100, 1100}), prev)

	require.NotNil(t, ctx)
	assert.Equal(t, CallBuy, ctx.Signal)
	assert.Equal(t, types.OptionCall, ctx.OptionType)
	assert.Equal(t, 100.5, ctx.Price)
	assert.ElementsMatch(t, []string{
		"ltp_rising", "volume_rising", "oi_rising", "gamma_rising", "delta_power_zone",
	}, ctx.Reasons)
	assert.InDelta(t, 97, ctx.Confidence, 0.01)
	assert.True(t, e.ValidQuality(ctx))
}

func TestEntry_NoBiasPermission(t *testing.T) {
	e := newEntryFixture(BiasUnknown)

	prev := snapFromTick(tick{100.0, 0.50, 0.0040, 25, 5000, 1000}, time.Now())
	ctx := e.Check(callQuote(tick{100.5, 0.52, 0.0045, 25, 5100, 1100}), prev)
	assert.Nil(t, ctx)
}

func TestEntry_SideMustMatchBias(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	prev := snapFromTick(tick{100.0, -0.50, 0.0040, 25, 5000, 1000}, time.Now())
	q := callQuote(tick{100.5, -0.52, 0.0045, 25, 5100, 1100})
	q.OptionType = types.OptionPut
	assert.Nil(t, e.Check(q, prev), "put entry under bullish bias must be blocked")
}

func TestEntry_AnyMissingSignalBlocks(t *testing.T) {
	prev := snapFromTick(tick{100.0, 0.50, 0.0040, 25, 5000, 1000}, time.Now())

	cases := []struct {
		name string
		tk   tick
	}{
		{"ltp falling", tick{99.5, 0.52, 0.0045, 25, 5100, 1100}},
		{"volume falling", tick{100.5, 0.52, 0.0045, 25, 5100, 900}},
		{"oi falling", tick{100.5, 0.52, 0.0045, 25, 4900, 1100}},
		{"gamma falling", tick{100.5, 0.52, 0.0035, 25, 5100, 1100}},
		{"delta below power zone", tick{100.5, 0.40, 0.0045, 25, 5100, 1100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEntryFixture(BiasBullish)
			assert.Nil(t, e.Check(callQuote(tc.tk), prev))
		})
	}
}

func TestEntry_WideSpreadBlocks(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	prev := snapFromTick(tick{100.0, 0.50, 0.0040, 25, 5000, 1000}, time.Now())
	q := callQuote(tick{100.5, 0.52, 0.0045, 25, 5100, 1100})
	q.Bid = 98.0
	q.Ask = 103.0
	assert.Nil(t, e.Check(q, prev))
}

func TestEntry_IVDropVetoes(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	prev := snapFromTick(tick{100.0, 0.50, 0.0040, 25.0, 5000, 1000}, time.Now())
	ctx := e.Check(callQuote(tick{100.5, 0.52, 0.0045, 23.0, 5100, 1100}), prev)
	assert.Nil(t, ctx, "IV dropping 8% must veto an otherwise clean entry")
}

func TestEntry_DeltaJumpVetoes(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	prev := snapFromTick(tick{100.0, 0.25, 0.0040, 25, 5000, 1000}, time.Now())
	ctx := e.Check(callQuote(tick{100.5, 0.52, 0.0045, 25, 5100, 1100}), prev)
	assert.Nil(t, ctx, "delta jumping 0.27 in one tick reads as a fake move")
}

func TestEntry_BearishBiasYieldsPutBuy(t *testing.T) {
	e := newEntryFixture(BiasBearish)

	prev := snapFromTick(tick{100.0, -0.50, 0.0040, 25, 5000, 1000}, time.Now())
	q := callQuote(tick{100.5, -0.52, 0.0045, 25, 5100, 1100})
	q.OptionType = types.OptionPut

	ctx := e.Check(q, prev)
	require.NotNil(t, ctx)
	assert.Equal(t, PutBuy, ctx.Signal)
}

func TestEntry_QualityGate(t *testing.T) {
	e := newEntryFixture(BiasBullish)

	assert.False(t, e.ValidQuality(nil))
	assert.False(t, e.ValidQuality(&EntryContext{
		Confidence: 50,
		Reasons:    []string{"ltp_rising", "volume_rising", "oi_rising", "gamma_rising"},
		Greeks:     types.Greeks{Delta: 0.52, Gamma: 0.004},
	}), "confidence below threshold")
	assert.False(t, e.ValidQuality(&EntryContext{
		Confidence: 80,
		Reasons:    []string{"ltp_rising", "volume_rising", "oi_rising", "gamma_rising"},
		Greeks:     types.Greeks{Delta: 0.30, Gamma: 0.004},
	}), "weak delta")
}
