package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantvx/options-scalp-bot/internal/costs"
	"github.com/quantvx/options-scalp-bot/internal/trade"
)

// Entry is one journaled round trip: the closed trade plus the cost
// model's view of what it really earned.
type Entry struct {
	Trade trade.Snapshot
	Net   costs.NetPnl
}

var csvHeader = []string{
	"Trade_ID",
	"Symbol",
	"Side",
	"Entry_Time",
	"Exit_Time",
	"Duration_Sec",
	"Entry_Price",
	"Exit_Price",
	"Quantity",
	"Exit_Reason",
	"Gross_PnL",
	"Slippage_Cost",
	"Fees",
	"Net_PnL",
	"Net_PnL_%",
	"Entry_Delta",
	"Entry_Gamma",
	"Entry_IV",
	"Exit_Delta",
	"Exit_IV",
}

// Journal appends every closed trade to a per-day CSV file and keeps the
// day's entries in memory for summaries and Excel export.
type Journal struct {
	dir string

	mu      sync.Mutex
	entries []Entry
}

func New(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Record appends the entry to today's CSV. The file is opened per write
// so a crash never loses more than the in-flight row.
func (j *Journal) Record(snap trade.Snapshot, net costs.NetPnl) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, Entry{Trade: snap, Net: net})

	path := j.csvPath(snap.ExitTime)
	newFile := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		newFile = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if newFile {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	if err := w.Write(csvRow(snap, net)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *Journal) csvPath(day time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("trades_%s.csv", day.Format("20060102")))
}

func csvRow(snap trade.Snapshot, net costs.NetPnl) []string {
	return []string{
		snap.ID,
		snap.Symbol,
		snap.Side,
		snap.EntryTime.Format(time.RFC3339),
		snap.ExitTime.Format(time.RFC3339),
		strconv.FormatInt(int64(snap.Duration.Seconds()), 10),
		fmt.Sprintf("%.2f", snap.EntryPrice),
		fmt.Sprintf("%.2f", snap.ExitPrice),
		strconv.Itoa(snap.Quantity),
		string(snap.ExitReason),
		fmt.Sprintf("%.2f", net.GrossPnl),
		fmt.Sprintf("%.2f", net.SlippageCost),
		fmt.Sprintf("%.2f", net.BrokerageCost),
		fmt.Sprintf("%.2f", net.NetPnl),
		fmt.Sprintf("%.2f", net.NetPnlPercent),
		fmt.Sprintf("%.4f", snap.EntryGreeks.Delta),
		fmt.Sprintf("%.5f", snap.EntryGreeks.Gamma),
		fmt.Sprintf("%.2f", snap.EntryGreeks.ImpliedVol),
		fmt.Sprintf("%.4f", snap.ExitGreeks.Delta),
		fmt.Sprintf("%.2f", snap.ExitGreeks.ImpliedVol),
	}
}

// Entries returns a copy of the day's journaled entries.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Summary aggregates the journaled day.
type Summary struct {
	Trades      int
	Wins        int
	Losses      int
	WinRate     float64
	GrossPnl    float64
	TotalCosts  float64
	NetPnl      float64
	BestTrade   float64
	WorstTrade  float64
	AvgDuration time.Duration
	ByReason    map[trade.ExitReason]int
}

func (j *Journal) Summarize() Summary {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Summary{ByReason: make(map[trade.ExitReason]int)}
	var totalDuration time.Duration
	for i, e := range j.entries {
		s.Trades++
		if e.Net.NetPnl >= 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		s.GrossPnl += e.Net.GrossPnl
		s.TotalCosts += e.Net.SlippageCost + e.Net.BrokerageCost
		s.NetPnl += e.Net.NetPnl
		totalDuration += e.Trade.Duration
		s.ByReason[e.Trade.ExitReason]++

		if i == 0 || e.Net.NetPnl > s.BestTrade {
			s.BestTrade = e.Net.NetPnl
		}
		if i == 0 || e.Net.NetPnl < s.WorstTrade {
			s.WorstTrade = e.Net.NetPnl
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.AvgDuration = totalDuration / time.Duration(s.Trades)
	}
	return s
}

// PrintSummary renders the day's scorecard to stdout.
func (j *Journal) PrintSummary() {
	s := j.Summarize()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("DAILY TRADE SUMMARY")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🔄 Trades", s.Trades},
		{"✅ Wins", fmt.Sprintf("%d (%.1f%%)", s.Wins, s.WinRate)},
		{"❌ Losses", s.Losses},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Gross P&L", fmt.Sprintf("₹%.2f", s.GrossPnl)},
		{"💸 Costs", fmt.Sprintf("₹%.2f", s.TotalCosts)},
		{"💰 Net P&L", fmt.Sprintf("₹%.2f", s.NetPnl)},
		{"📈 Best Trade", fmt.Sprintf("₹%.2f", s.BestTrade)},
		{"📉 Worst Trade", fmt.Sprintf("₹%.2f", s.WorstTrade)},
		{"⏱️ Avg Duration", s.AvgDuration.Round(time.Second).String()},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 30, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}
