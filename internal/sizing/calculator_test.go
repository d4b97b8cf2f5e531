package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/internal/expiry"
)

func TestSize_RiskBudgetConversion(t *testing.T) {
	calc := NewCalculator(0, 1)

	res, err := calc.Size(100, 90, 120, 1000, nil)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Quantity)
	assert.Equal(t, 1000.0, res.MaxLoss)
	assert.Equal(t, 10000.0, res.CapitalAllocated)
	assert.InDelta(t, 2.0, res.RiskReward, 1e-9)
}

func TestSize_PolicyScalesQuantity(t *testing.T) {
	calc := NewCalculator(0, 1)
	policy := &expiry.Policy{PositionSizeFactor: 0.3}

	res, err := calc.Size(100, 90, 120, 1000, policy)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Quantity)
}

func TestSize_PolicyRiskPercentOverridesBudget(t *testing.T) {
	calc := NewCalculator(100000, 1)
	// 0.5% of 100k = 500 budget, halved stop distance of 10 → 50 raw units,
	// then scaled by 0.30.
	policy := &expiry.Policy{PositionSizeFactor: 0.30, RiskPercent: 0.005}

	res, err := calc.Size(100, 90, 120, 9999999, policy)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Quantity)
}

func TestSize_FlooredToLotMultiple(t *testing.T) {
	calc := NewCalculator(0, 75)

	res, err := calc.Size(100, 90, 0, 10000, nil) // raw 1000 units = 13.33 lots
	require.NoError(t, err)
	assert.Equal(t, 13, res.Lots)
	assert.Equal(t, 975, res.Quantity)
}

func TestSize_ZeroRiskDistance(t *testing.T) {
	calc := NewCalculator(0, 1)

	_, err := calc.Size(100, 100, 120, 1000, nil)
	assert.ErrorIs(t, err, ErrInvalidSizingInput)
}

func TestSize_QuantityRoundsToZero(t *testing.T) {
	calc := NewCalculator(0, 75)

	// 500 budget / 10 per unit = 50 raw units, below one 75-unit lot.
	_, err := calc.Size(100, 90, 120, 500, nil)
	assert.ErrorIs(t, err, ErrInvalidSizingInput)
}

func TestSize_StopTooWide(t *testing.T) {
	calc := NewCalculator(0, 1)

	_, err := calc.Size(100, 85, 120, 1000, nil) // 15% stop > 10% max
	assert.ErrorIs(t, err, ErrStopTooWide)
}

func TestSize_MaxQuantityCap(t *testing.T) {
	calc := NewCalculator(0, 1)
	calc.MaxQuantity = 40

	res, err := calc.Size(100, 90, 120, 1000, nil)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Quantity)
	assert.Equal(t, 400.0, res.MaxLoss)
}

func TestSize_InvalidEntryPrice(t *testing.T) {
	calc := NewCalculator(0, 1)

	_, err := calc.Size(0, 90, 120, 1000, nil)
	assert.ErrorIs(t, err, ErrInvalidSizingInput)
}
