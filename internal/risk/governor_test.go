package risk

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGovernor(cfg Config) (*Governor, *time.Time) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	g := NewGovernor(cfg)
	g.now = func() time.Time { return now }
	g.day = dayOf(now)
	return g, &now
}

func TestCanOpenTrade_FreshDay(t *testing.T) {
	g, _ := newTestGovernor(DefaultConfig())

	ok, reason := g.CanOpenTrade()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestKillSwitch_LatchesOnLossFloorBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyLoss = 10000
	cfg.MaxConsecutiveLoss = 0 // isolate the kill switch
	g, _ := newTestGovernor(cfg)

	g.RecordClose(-5000)
	ok, _ := g.CanOpenTrade()
	assert.True(t, ok, "one losing trade should not trip the switch")

	g.RecordClose(-5000)
	ok, reason := g.CanOpenTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss limit")

	// a recovery does not unlatch it
	g.RecordClose(5000)
	ok, _ = g.CanOpenTrade()
	assert.False(t, ok, "kill switch must stay latched for the day")
	assert.True(t, g.Status().KillSwitchActive)
}

func TestDailyTradeCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTradesPerDay = 2
	g, _ := newTestGovernor(cfg)

	g.RecordOpen()
	ok, _ := g.CanOpenTrade()
	assert.True(t, ok)

	g.RecordOpen()
	ok, reason := g.CanOpenTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "trade cap")
}

func TestConsecutiveLossCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLoss = 3
	cfg.CooldownPeriod = 15 * time.Minute
	g, now := newTestGovernor(cfg)

	g.RecordClose(-100)
	g.RecordClose(-100)
	ok, _ := g.CanOpenTrade()
	assert.True(t, ok, "two losses should not start a cooldown")

	g.RecordClose(-100)
	ok, reason := g.CanOpenTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "cooling down")

	// cooldown expires on its own
	*now = now.Add(16 * time.Minute)
	ok, _ = g.CanOpenTrade()
	assert.True(t, ok)
}

func TestWinResetsLossStreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLoss = 3
	g, _ := newTestGovernor(cfg)

	g.RecordClose(-100)
	g.RecordClose(-100)
	g.RecordClose(50)
	g.RecordClose(-100)

	ok, _ := g.CanOpenTrade()
	assert.True(t, ok)
	assert.Equal(t, 1, g.Status().ConsecutiveLosses)
}

func TestClearCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveLoss = 2
	g, _ := newTestGovernor(cfg)

	g.RecordClose(-100)
	g.RecordClose(-100)
	ok, _ := g.CanOpenTrade()
	require.False(t, ok)

	g.ClearCooldown()
	ok, _ = g.CanOpenTrade()
	assert.True(t, ok)
}

func TestClearCooldown_DoesNotUnlatchKillSwitch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyLoss = 100
	g, _ := newTestGovernor(cfg)

	g.RecordClose(-200)
	ok, _ := g.CanOpenTrade()
	require.False(t, ok)

	g.ClearCooldown()
	ok, _ = g.CanOpenTrade()
	assert.False(t, ok)
}

func TestDailyProfitTargetHalt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailyProfitTarget = 5000
	g, _ := newTestGovernor(cfg)

	g.RecordClose(3000)
	ok, _ := g.CanOpenTrade()
	assert.True(t, ok)

	g.RecordClose(2500)
	ok, reason := g.CanOpenTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "profit target")
}

func TestManualHalt(t *testing.T) {
	g, _ := newTestGovernor(DefaultConfig())

	g.Halt("manual square-off")
	ok, reason := g.CanOpenTrade()
	assert.False(t, ok)
	assert.Equal(t, "manual square-off", reason)
}

func TestDayRollover_ResetsCountersAndKillSwitch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyLoss = 100
	g, now := newTestGovernor(cfg)

	g.RecordOpen()
	g.RecordClose(-200)
	ok, _ := g.CanOpenTrade()
	require.False(t, ok)

	*now = now.Add(24 * time.Hour)
	ok, _ = g.CanOpenTrade()
	assert.True(t, ok)

	st := g.Status()
	assert.Zero(t, st.RealizedPnl)
	assert.Zero(t, st.TradesOpened)
	assert.False(t, st.KillSwitchActive)
}

func TestStatePersistence_RestoresSameDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	cfg := DefaultConfig()
	cfg.MaxDailyLoss = 100

	g, err := NewGovernorWithState(cfg, path)
	require.NoError(t, err)
	g.RecordOpen()
	g.RecordClose(-200)

	// restart within the same day: the tripped switch must survive
	g2, err := NewGovernorWithState(cfg, path)
	require.NoError(t, err)

	st := g2.Status()
	assert.True(t, st.KillSwitchActive)
	assert.Equal(t, -200.0, st.RealizedPnl)
	assert.Equal(t, 1, st.TradesOpened)
}

func TestStatePersistence_CorruptSnapshotRejected(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
	}{
		{"negative trades", Snapshot{Day: time.Now(), TradesOpened: -7}},
		{"negative loss streak", Snapshot{Day: time.Now(), ConsecutiveLosses: -3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "risk_state.json")
			require.NoError(t, NewStateFile(path).Save(tc.snap))

			g, err := NewGovernorWithState(DefaultConfig(), path)
			require.NoError(t, err)

			// corrupt counters must never seed the day
			st := g.Status()
			assert.Zero(t, st.TradesOpened)
			assert.Zero(t, st.ConsecutiveLosses)
			assert.Zero(t, st.RealizedPnl)
		})
	}
}

func TestRecordOpen_RejectsNegativeCount(t *testing.T) {
	g, _ := newTestGovernor(DefaultConfig())
	g.tradesOpened = -7

	g.RecordOpen()
	assert.Equal(t, 1, g.Status().TradesOpened)
}

func TestSnapshotValidate(t *testing.T) {
	assert.NoError(t, Snapshot{Day: time.Now(), TradesOpened: 2}.Validate())
	assert.ErrorIs(t, Snapshot{TradesOpened: -1}.Validate(), ErrCorruptState)
	assert.ErrorIs(t, Snapshot{ConsecutiveLosses: -1}.Validate(), ErrCorruptState)
	assert.ErrorIs(t, Snapshot{RealizedPnl: math.Inf(1)}.Validate(), ErrCorruptState)
}

func TestStatePersistence_StaleSnapshotIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	sf := NewStateFile(path)
	require.NoError(t, sf.Save(Snapshot{
		Day:         time.Now().AddDate(0, 0, -1),
		RealizedPnl: -9999,
		KillSwitch:  true,
	}))

	g, err := NewGovernorWithState(DefaultConfig(), path)
	require.NoError(t, err)

	st := g.Status()
	assert.False(t, st.KillSwitchActive)
	assert.Zero(t, st.RealizedPnl)
}
