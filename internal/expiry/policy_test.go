package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePolicy_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		days       int
		sizeFactor float64
		risk       float64
		stop       float64
		maxHold    time.Duration
	}{
		{"expiry day", 0, 0.30, 0.005, 0.03, 5 * time.Minute},
		{"last day before expiry", 1, 0.50, 0.010, 0.04, 10 * time.Minute},
		{"expiry week lower", 2, 0.70, 0.015, 0.05, 15 * time.Minute},
		{"expiry week upper", 3, 0.70, 0.015, 0.05, 15 * time.Minute},
		{"normal", 4, 1.00, 0.020, 0.06, time.Hour},
		{"far out", 30, 1.00, 0.020, 0.06, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DerivePolicy(tt.days)
			assert.Equal(t, tt.days, p.DaysToExpiry)
			assert.Equal(t, tt.sizeFactor, p.PositionSizeFactor)
			assert.Equal(t, tt.risk, p.RiskPercent)
			assert.Equal(t, tt.stop, p.HardStopLossPercent)
			assert.Equal(t, 20*time.Second, p.MinHold)
			assert.Equal(t, tt.maxHold, p.MaxHold)
		})
	}
}

func TestDerivePolicy_NegativeClampedToExpiryDay(t *testing.T) {
	assert.Equal(t, DerivePolicy(0), DerivePolicy(-3))
}

func TestDerivePolicy_MonotonicAcrossTiers(t *testing.T) {
	// Caution must never decrease as expiry approaches: size factor, risk
	// and max hold are non-decreasing walking away from expiry.
	boundaries := []int{0, 1, 2, 4}
	for i := 1; i < len(boundaries); i++ {
		prev := DerivePolicy(boundaries[i-1])
		next := DerivePolicy(boundaries[i])
		assert.GreaterOrEqual(t, next.PositionSizeFactor, prev.PositionSizeFactor)
		assert.GreaterOrEqual(t, next.RiskPercent, prev.RiskPercent)
		assert.GreaterOrEqual(t, next.MaxHold, prev.MaxHold)
	}
}

func TestDerivePolicy_ExpiryFlags(t *testing.T) {
	assert.True(t, DerivePolicy(0).IsExpiryDay())
	assert.True(t, DerivePolicy(0).IsExpiryWeek())
	assert.False(t, DerivePolicy(1).IsExpiryDay())
	assert.True(t, DerivePolicy(3).IsExpiryWeek())
	assert.False(t, DerivePolicy(4).IsExpiryWeek())
}

func TestChain_NearestAndPolicy(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	dates := []time.Time{
		now.AddDate(0, 0, 10),
		now.AddDate(0, 0, 3),
		now.AddDate(0, 0, 3),  // duplicate
		now.AddDate(0, 0, -1), // already expired
	}

	chain := NewChain(now, dates)
	require.Len(t, chain.All(), 2)

	nearest, err := chain.Nearest()
	require.NoError(t, err)
	assert.Equal(t, 3, nearest.DaysToExpiry)

	policy, err := chain.CurrentPolicy()
	require.NoError(t, err)
	assert.Equal(t, 0.70, policy.PositionSizeFactor)
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain(time.Now(), nil)
	_, err := chain.Nearest()
	assert.Error(t, err)
}
