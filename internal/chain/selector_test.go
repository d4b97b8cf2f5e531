package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/internal/signal"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

func quote(strike float64, optType types.OptionType, price, delta, gamma float64, volume, oi float64) types.OptionQuote {
	return types.OptionQuote{
		OptionSnapshot: types.OptionSnapshot{
			Symbol:       "NIFTY-TEST",
			Timestamp:    time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			Price:        price,
			Bid:          price - 0.2,
			Ask:          price + 0.2,
			Volume:       volume,
			OpenInterest: oi,
			Greeks: types.Greeks{
				Delta: delta,
				Gamma: gamma,
				Theta: -0.03,
				Vega:  0.05,
			},
		},
		Strike:     strike,
		OptionType: optType,
	}
}

func testChain() []types.OptionQuote {
	return []types.OptionQuote{
		quote(24700, types.OptionCall, 180, 0.70, 0.0030, 300, 800), // ITM, delta past zone
		quote(24800, types.OptionCall, 120, 0.52, 0.0045, 500, 900), // ATM sweet spot
		quote(24900, types.OptionCall, 70, 0.35, 0.0040, 400, 700),  // OTM, weak delta
		quote(24800, types.OptionPut, 110, -0.48, 0.0044, 450, 850),
		quote(24900, types.OptionPut, 160, -0.62, 0.0032, 350, 750),
	}
}

func TestSelect_BullishPicksBestCall(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	best, score, ok := s.Select(testChain(), signal.BiasBullish)
	require.True(t, ok)
	assert.Equal(t, types.OptionCall, best.OptionType)
	assert.Equal(t, 24800.0, best.Strike, "ATM call with delta in the power zone should win")
	assert.Greater(t, score, 50.0)

	last, ok := s.LastSelected(types.OptionCall)
	require.True(t, ok)
	assert.Equal(t, best.Strike, last.Strike)
}

func TestSelect_BearishPicksPut(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	best, _, ok := s.Select(testChain(), signal.BiasBearish)
	require.True(t, ok)
	assert.Equal(t, types.OptionPut, best.OptionType)
	// both puts pass the filters; the 24900 wins on tighter relative spread
	assert.Equal(t, 24900.0, best.Strike)
}

func TestSelect_NoTradeBiasSelectsNothing(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	_, _, ok := s.Select(testChain(), signal.BiasNoTrade)
	assert.False(t, ok)
}

func TestHealthFilters(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	illiquid := quote(24800, types.OptionCall, 120, 0.52, 0.0045, 10, 900)
	thinOI := quote(24800, types.OptionCall, 120, 0.52, 0.0045, 500, 50)
	noGreeks := quote(24800, types.OptionCall, 120, 0, 0, 500, 900)
	wideSpread := quote(24800, types.OptionCall, 120, 0.52, 0.0045, 500, 900)
	wideSpread.Bid = 110
	wideSpread.Ask = 130

	for name, q := range map[string]types.OptionQuote{
		"illiquid":    illiquid,
		"thin oi":     thinOI,
		"no greeks":   noGreeks,
		"wide spread": wideSpread,
	} {
		ranked := s.Rank([]types.OptionQuote{q}, types.OptionCall)
		assert.Empty(t, ranked, name)
	}
}

func TestAlternatives_ExcludesCurrentStrike(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	alts := s.Alternatives(testChain(), types.OptionCall, 24800, 3)
	require.NotEmpty(t, alts)
	for _, a := range alts {
		assert.NotEqual(t, 24800.0, a.Strike)
	}
}

func TestStillValid_DegradedDelta(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	q := quote(24800, types.OptionCall, 120, 0.52, 0.0045, 500, 900)
	assert.True(t, s.StillValid(q))

	q.Greeks.Delta = 0.25
	assert.False(t, s.StillValid(q), "delta decay below 0.30 invalidates the pick")
}

func TestValidateSelection(t *testing.T) {
	s := NewSelector(DefaultSelectorConfig())

	good := quote(24800, types.OptionCall, 120, 0.52, 0.0045, 500, 900)
	assert.True(t, s.ValidateSelection(good))

	weakDelta := quote(24800, types.OptionCall, 120, 0.35, 0.0045, 500, 900)
	assert.False(t, s.ValidateSelection(weakDelta))

	lowGamma := quote(24800, types.OptionCall, 120, 0.52, 0.0010, 500, 900)
	assert.False(t, s.ValidateSelection(lowGamma))
}
