package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantvx/options-scalp-bot/internal/costs"
	"github.com/quantvx/options-scalp-bot/internal/trade"
)

func sampleEntry(id string, netPnl float64) (trade.Snapshot, costs.NetPnl) {
	entry := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	snap := trade.Snapshot{
		ID:         id,
		Symbol:     "NIFTY-24800-CALL",
		Side:       "LONG",
		Quantity:   75,
		EntryTime:  entry,
		EntryPrice: 100,
		ExitTime:   entry.Add(2 * time.Minute),
		ExitPrice:  100 + netPnl/75,
		ExitReason: trade.ExitTargetHit,
		Duration:   2 * time.Minute,
	}
	net := costs.NetPnl{
		GrossPnl:      netPnl + 50,
		SlippageCost:  20,
		BrokerageCost: 30,
		NetPnl:        netPnl,
		NetPnlPercent: netPnl / (100 * 75) * 100,
	}
	return snap, net
}

func TestRecord_WritesCSVWithHeader(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	require.NoError(t, err)

	snap, net := sampleEntry("T1", 300)
	require.NoError(t, j.Record(snap, net))
	snap2, net2 := sampleEntry("T2", -150)
	require.NoError(t, j.Record(snap2, net2))

	f, err := os.Open(filepath.Join(dir, "trades_20250310.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two trades")
	assert.Equal(t, "Trade_ID", rows[0][0])
	assert.Equal(t, "T1", rows[1][0])
	assert.Equal(t, "T2", rows[2][0])
	assert.Equal(t, "TARGET_HIT", rows[1][9])
}

func TestSummarize(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	for _, pnl := range []float64{300, -150, 200} {
		snap, net := sampleEntry("T", pnl)
		require.NoError(t, j.Record(snap, net))
	}

	s := j.Summarize()
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 66.67, s.WinRate, 0.01)
	assert.InDelta(t, 350, s.NetPnl, 1e-9)
	assert.InDelta(t, 300, s.BestTrade, 1e-9)
	assert.InDelta(t, -150, s.WorstTrade, 1e-9)
	assert.Equal(t, 3, s.ByReason[trade.ExitTargetHit])
	assert.Equal(t, 2*time.Minute, s.AvgDuration)
}

func TestSummarize_EmptyDay(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)

	s := j.Summarize()
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
}

func TestExportXLSX(t *testing.T) {
	dir := t.TempDir()
	j, err := New(dir)
	require.NoError(t, err)

	snap, net := sampleEntry("T1", 300)
	require.NoError(t, j.Record(snap, net))

	path := filepath.Join(dir, "report.xlsx")
	require.NoError(t, j.ExportXLSX(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
