package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedTraps(d *TrapDetector, ticks []tick) *Trap {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	var trap *Trap
	for i, tk := range ticks {
		trap = d.Observe(snapFromTick(tk, base.Add(time.Duration(i)*time.Second)))
	}
	return trap
}

func TestTrap_OIRisingWithFlatPremium(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.004, 25, 1000, 500},
		{100.2, 0.50, 0.004, 25, 1050, 500},
		{100.1, 0.50, 0.004, 25, 1100, 500},
		{100.3, 0.50, 0.004, 25, 1150, 500},
		{100.2, 0.50, 0.004, 25, 1200, 500},
	})

	require.NotNil(t, trap)
	assert.Equal(t, TrapOINoPremium, trap.Type)
	assert.True(t, d.ShouldSkipEntry(trap), "high severity trap must skip entry")
}

func TestTrap_PremiumRisingWithOIFalling(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.004, 25, 1300, 500},
		{101.0, 0.50, 0.004, 25, 1280, 500},
		{102.0, 0.50, 0.004, 25, 1250, 500},
		{103.0, 0.50, 0.004, 25, 1220, 500},
		{103.5, 0.50, 0.004, 25, 1200, 500},
	})

	require.NotNil(t, trap)
	assert.Equal(t, TrapPremiumNoOI, trap.Type)
}

func TestTrap_IVCrushWithStalledPremium(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.004, 25.0, 1000, 500},
		{100.1, 0.50, 0.004, 25.0, 1000, 500},
		{100.2, 0.50, 0.004, 24.8, 1000, 500},
		{100.1, 0.50, 0.004, 24.0, 1000, 500},
		{100.3, 0.50, 0.004, 23.0, 1000, 500},
	})

	require.NotNil(t, trap)
	assert.Equal(t, TrapIVCrush, trap.Type)
}

func TestTrap_DeltaSpikeCollapse(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.004, 25, 1000, 500},
		{100.1, 0.70, 0.004, 25, 1000, 500},
		{100.2, 0.55, 0.004, 25, 1000, 500},
	})

	require.NotNil(t, trap)
	assert.Equal(t, TrapDeltaSpike, trap.Type)
	assert.False(t, d.ShouldSkipEntry(trap), "mild severity with clean history should not skip")
}

func TestTrap_LiquidityEvaporation(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.004, 25, 1000, 1000},
		{101.5, 0.50, 0.004, 25, 1000, 1000},
		{100.2, 0.50, 0.004, 25, 1000, 1000},
		{101.8, 0.50, 0.004, 25, 1000, 1000},
		{100.5, 0.50, 0.004, 25, 1000, 100},
	})

	require.NotNil(t, trap)
	assert.Equal(t, TrapLiquidityDrop, trap.Type)
}

func TestTrap_CleanTapeDetectsNothing(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())

	trap := feedTraps(d, []tick{
		{100.0, 0.50, 0.0040, 25, 1000, 500},
		{101.0, 0.51, 0.0042, 25, 1050, 550},
		{102.0, 0.52, 0.0044, 25, 1100, 600},
		{103.0, 0.53, 0.0046, 25, 1150, 650},
		{104.0, 0.54, 0.0048, 25, 1200, 700},
	})

	assert.Nil(t, trap)
	assert.False(t, d.ShouldSkipEntry(trap))
}

func TestTrap_RecentTrapsWindow(t *testing.T) {
	d := NewTrapDetector(DefaultTrapConfig())
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	ticks := []tick{
		{100.0, 0.50, 0.004, 25, 1000, 500},
		{100.2, 0.50, 0.004, 25, 1050, 500},
		{100.1, 0.50, 0.004, 25, 1100, 500},
		{100.3, 0.50, 0.004, 25, 1150, 500},
		{100.2, 0.50, 0.004, 25, 1200, 500},
	}
	for i, tk := range ticks {
		d.Observe(snapFromTick(tk, base.Add(time.Duration(i)*time.Second)))
	}

	now := base.Add(5 * time.Second)
	assert.Len(t, d.RecentTraps(now, 30*time.Second), 1)
	assert.Empty(t, d.RecentTraps(now.Add(2*time.Minute), 30*time.Second))
}
