package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

type tick struct {
	price  float64
	delta  float64
	gamma  float64
	iv     float64
	oi     float64
	volume float64
}

func snapFromTick(tk tick, ts time.Time) types.OptionSnapshot {
	return types.OptionSnapshot{
		Symbol:       "NIFTY-24800-CALL",
		Timestamp:    ts,
		Price:        tk.price,
		Bid:          tk.price - 0.1,
		Ask:          tk.price + 0.1,
		Volume:       tk.volume,
		OpenInterest: tk.oi,
		Greeks: types.Greeks{
			Delta:      tk.delta,
			Gamma:      tk.gamma,
			Theta:      -0.03,
			ImpliedVol: tk.iv,
		},
	}
}

func feedTicks(e *BiasEngine, ticks []tick) Bias {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	bias := BiasUnknown
	for i, tk := range ticks {
		bias = e.Observe(snapFromTick(tk, base.Add(time.Duration(i)*time.Second)))
	}
	return bias
}

func TestBias_FirstTickIsUnknown(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())
	bias := e.Observe(snapFromTick(tick{100, 0.5, 0.004, 25, 1000, 500}, time.Now()))
	assert.Equal(t, BiasUnknown, bias)
}

func TestBias_BullishAlignment(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	bias := feedTicks(e, []tick{
		{100.0, 0.50, 0.0040, 25, 1000, 500},
		{101.0, 0.51, 0.0045, 25, 1050, 600},
		{102.0, 0.52, 0.0050, 25, 1100, 700},
	})

	assert.Equal(t, BiasBullish, bias)
	m := e.Metrics()
	assert.Equal(t, 1.0, m.DeltaSignal)
	assert.True(t, m.GammaRising)
	assert.Equal(t, 1.0, m.OIVolumeAlign)
	assert.InDelta(t, 85, m.Confidence, 0.01)
}

func TestBias_BearishAlignment(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	bias := feedTicks(e, []tick{
		{100.0, -0.50, 0.0040, 25, 1000, 500},
		{101.0, -0.51, 0.0045, 25, 1050, 600},
		{102.0, -0.52, 0.0050, 25, 1100, 700},
	})

	assert.Equal(t, BiasBearish, bias)
}

func TestBias_WeakDeltaBlocksPermission(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	bias := feedTicks(e, []tick{
		{100.0, 0.20, 0.0040, 25, 1000, 500},
		{101.0, 0.22, 0.0045, 25, 1050, 600},
		{102.0, 0.25, 0.0050, 25, 1100, 700},
	})

	assert.Equal(t, BiasNoTrade, bias)
}

func TestBias_FlatGammaBlocksPermission(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	bias := feedTicks(e, []tick{
		{100.0, 0.50, 0.0040, 25, 1000, 500},
		{101.0, 0.51, 0.0040, 25, 1050, 600},
		{102.0, 0.52, 0.0040, 25, 1100, 700},
	})

	assert.Equal(t, BiasNoTrade, bias)
	assert.False(t, e.Metrics().GammaRising)
}

func TestBias_OITrapBlocksPermission(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	// OI climbing while price and volume go nowhere
	bias := feedTicks(e, []tick{
		{100.0, 0.50, 0.0040, 25, 1000, 500},
		{100.0, 0.51, 0.0045, 25, 1100, 500},
		{99.9, 0.52, 0.0050, 25, 1200, 400},
	})

	assert.Equal(t, BiasNoTrade, bias)
	assert.Equal(t, -1.0, e.Metrics().OIVolumeAlign)
}

func TestBias_Allows(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())
	assert.False(t, e.Allows(types.OptionCall), "unknown bias permits nothing")

	feedTicks(e, []tick{
		{100.0, 0.50, 0.0040, 25, 1000, 500},
		{101.0, 0.51, 0.0045, 25, 1050, 600},
		{102.0, 0.52, 0.0050, 25, 1100, 700},
	})

	assert.True(t, e.Allows(types.OptionCall))
	assert.False(t, e.Allows(types.OptionPut))
}

func TestBias_SidewaysStructureShavesConfidence(t *testing.T) {
	e := NewBiasEngine(DefaultBiasConfig())

	// ten ticks oscillating in a range, then a clean bullish tick
	ticks := []tick{
		{100, 0.50, 0.0040, 25, 1000, 500},
		{101, 0.50, 0.0041, 25, 1010, 510},
		{100, 0.50, 0.0042, 25, 1020, 520},
		{101, 0.50, 0.0043, 25, 1030, 530},
		{100, 0.50, 0.0044, 25, 1040, 540},
		{101, 0.50, 0.0045, 25, 1050, 550},
		{100, 0.50, 0.0046, 25, 1060, 560},
		{101, 0.50, 0.0047, 25, 1070, 570},
		{100, 0.50, 0.0048, 25, 1080, 580},
		{100.5, 0.52, 0.0050, 25, 1090, 590},
	}
	bias := feedTicks(e, ticks)

	assert.Equal(t, BiasBullish, bias)
	assert.Equal(t, StructureSideways, e.Metrics().Structure)
	assert.InDelta(t, 85*0.7, e.Metrics().Confidence, 0.01)
}
