package bybit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

func TestParseSymbol(t *testing.T) {
	contract, err := ParseSymbol("BTC-27JUN25-50000-C")
	require.NoError(t, err)

	assert.Equal(t, "BTC", contract.Underlying)
	assert.Equal(t, time.Date(2025, time.June, 27, 0, 0, 0, 0, time.UTC), contract.Expiry)
	assert.Equal(t, 50000.0, contract.Strike)
	assert.Equal(t, types.OptionCall, contract.Type)
}

func TestParseSymbolPutSingleDigitDay(t *testing.T) {
	contract, err := ParseSymbol("ETH-1AUG25-3200-P")
	require.NoError(t, err)

	assert.Equal(t, "ETH", contract.Underlying)
	assert.Equal(t, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), contract.Expiry)
	assert.Equal(t, 3200.0, contract.Strike)
	assert.Equal(t, types.OptionPut, contract.Type)
}

func TestParseSymbolMalformed(t *testing.T) {
	cases := []struct {
		name   string
		symbol string
	}{
		{"missing parts", "BTC-50000-C"},
		{"bad expiry", "BTC-NOTADATE-50000-C"},
		{"bad strike", "BTC-27JUN25-fifty-C"},
		{"bad side", "BTC-27JUN25-50000-X"},
		{"empty", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSymbol(tc.symbol)
			assert.Error(t, err)
		})
	}
}

func TestFormatSymbolRoundTrip(t *testing.T) {
	original := Contract{
		Underlying: "BTC",
		Expiry:     time.Date(2025, time.June, 27, 0, 0, 0, 0, time.UTC),
		Strike:     50000,
		Type:       types.OptionCall,
	}

	symbol := FormatSymbol(original)
	assert.Equal(t, "BTC-27JUN25-50000-C", symbol)

	parsed, err := ParseSymbol(symbol)
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestExpiryTokenSingleDigitDay(t *testing.T) {
	token := formatExpiryToken(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "1AUG25", token)
}
