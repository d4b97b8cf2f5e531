package bot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/internal/expiry"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

func quoteAt(strike float64, optType types.OptionType) types.OptionQuote {
	return types.OptionQuote{
		OptionSnapshot: types.OptionSnapshot{Symbol: "X", Price: 100},
		Strike:         strike,
		OptionType:     optType,
	}
}

func TestAtmQuotePicksClosestStrike(t *testing.T) {
	quotes := []types.OptionQuote{
		quoteAt(24700, types.OptionCall),
		quoteAt(24750, types.OptionCall),
		quoteAt(24800, types.OptionCall),
		quoteAt(24800, types.OptionPut),
		quoteAt(24850, types.OptionCall),
	}

	atm, ok := atmQuote(quotes, 24790, types.OptionCall)
	require.True(t, ok)
	assert.Equal(t, 24800.0, atm.Strike)
	assert.Equal(t, types.OptionCall, atm.OptionType)
}

func TestAtmQuoteIgnoresOtherSide(t *testing.T) {
	quotes := []types.OptionQuote{
		quoteAt(24800, types.OptionPut),
	}

	_, ok := atmQuote(quotes, 24800, types.OptionCall)
	assert.False(t, ok)
}

func TestNearestExpirySkipsLapsedDates(t *testing.T) {
	now := time.Date(2025, 9, 5, 10, 0, 0, 0, time.UTC)
	lapsed := time.Date(2025, 9, 4, 15, 30, 0, 0, time.UTC)
	front := time.Date(2025, 9, 11, 15, 30, 0, 0, time.UTC)
	next := time.Date(2025, 9, 18, 15, 30, 0, 0, time.UTC)

	got, err := nearestExpiry(now, []time.Time{lapsed, front, next})
	require.NoError(t, err)
	assert.Equal(t, front.Truncate(24*time.Hour), got)
}

func TestNearestExpiryAllLapsed(t *testing.T) {
	now := time.Date(2025, 9, 5, 10, 0, 0, 0, time.UTC)
	lapsed := time.Date(2025, 9, 4, 15, 30, 0, 0, time.UTC)

	_, err := nearestExpiry(now, []time.Time{lapsed})
	assert.Error(t, err)
}

func TestWithinWindow(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2025, 9, 5, hour, min, 0, 0, time.UTC)
	}
	start := 9*60 + 20 // 09:20
	end := 15*60 + 10  // 15:10

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before open", at(9, 19), false},
		{"at open", at(9, 20), true},
		{"midday", at(12, 0), true},
		{"last minute", at(15, 9), true},
		{"at close", at(15, 10), false},
		{"after close", at(15, 30), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, withinWindow(tc.now, start, end))
		})
	}
}

func TestWorkbookPathUsesJournalDirAndDay(t *testing.T) {
	day := time.Date(2025, 9, 5, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("journal", "trades_2025-09-05.xlsx"), workbookPath("journal", day))
}

func TestTierNameFollowsExpiryProximity(t *testing.T) {
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		expiryDays int
		want       string
	}{
		{"expiry day", 0, "EXPIRY_DAY"},
		{"day before", 1, "PRE_EXPIRY"},
		{"expiry week", 3, "EXPIRY_WEEK"},
		{"normal", 6, "NORMAL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exp := now.Add(time.Duration(tc.expiryDays)*24*time.Hour + 5*time.Hour)
			policy, err := expiry.NewChain(now, []time.Time{exp}).CurrentPolicy()
			require.NoError(t, err)
			assert.Equal(t, tc.want, tierName(policy))
		})
	}
}
