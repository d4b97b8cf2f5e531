package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantvx/options-scalp-bot/internal/costs"
	"github.com/quantvx/options-scalp-bot/internal/exchange"
	"github.com/quantvx/options-scalp-bot/internal/expiry"
	"github.com/quantvx/options-scalp-bot/internal/monitoring"
	"github.com/quantvx/options-scalp-bot/internal/trade"
)

// squareOff market-sells every open position. Called on shutdown so no
// position survives the session.
func (b *Bot) squareOff() error {
	open := b.manager.OpenTrades()
	if len(open) == 0 {
		fmt.Printf("✅ No open positions\n")
		return nil
	}

	var firstErr error
	for _, t := range open {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		fill, err := b.exchange.PlaceMarketOrder(ctx, t.Symbol, exchange.Sell, t.Quantity)
		cancel()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to square off %s: %w", t.Symbol, err)
			}
			b.logger.LogError("square off", err)
			continue
		}

		closed, err := b.manager.Close(t, fill.FilledPrice, trade.ExitManual)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		b.unsubscribeTicks(closed.Symbol)
		b.governor.RecordClose(closed.RealizedPnl)
		b.settleCosts(closed, fill.FilledPrice, fill.FilledPrice, fill.FilledPrice)
		b.logger.LogTradeClose(closed.Symbol, closed.EntryPrice, closed.ExitPrice,
			closed.RealizedPnl, string(trade.ExitManual), closed.Duration)
		fmt.Printf("✅ Squared off %s x%d @ ₹%.2f (P&L ₹%+.2f)\n",
			closed.Symbol, closed.Quantity, closed.ExitPrice, closed.RealizedPnl)
	}

	monitoring.SetOpenTrades(len(b.manager.OpenTrades()))
	return firstErr
}

// settleCosts runs the squared-off trade through the cost model and into
// the journal. The square-off fill is all we have, so it stands in for the
// full book.
func (b *Bot) settleCosts(closed trade.Snapshot, ltp, bid, ask float64) {
	b.mu.Lock()
	entrySlip := b.entrySlip[closed.ID]
	delete(b.entrySlip, closed.ID)
	b.mu.Unlock()

	exitSlip := b.costModel.ExitSlippage(ltp, bid, ask, closed.Quantity, costs.VolatilityNormal)
	net := b.costModel.RealisticPnl(closed.EntryPrice, closed.ExitPrice, closed.Quantity, entrySlip, exitSlip.Amount)
	if err := b.journal.Record(closed, net); err != nil {
		b.logger.LogError("journal", err)
	}
}

// printStartupInfo prints the session banner.
func (b *Bot) printStartupInfo() {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SCALP BOT INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Underlying", b.cfg.Trading.Underlying},
		{"🏪 Exchange", b.exchange.Name()},
		{"📅 Nearest Expiry", b.expiryDates[0].Format("02-Jan-2006 15:04")},
		{"⏰ Poll Interval", b.cfg.Trading.PollInterval().String()},
		{"🔧 Environment", b.environmentString()},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// printConfiguration prints the trading and risk parameters.
func (b *Bot) printConfiguration() {
	policyInfo := "⚠️ No tradeable expiry"
	if policy, err := b.currentPolicy(); err == nil {
		policyInfo = fmt.Sprintf("%s (size x%.2f, stop %.0f%%)",
			tierName(policy), policy.PositionSizeFactor, policy.HardStopLossPercent*100)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("SCALP BOT CONFIGURATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💰 Capital", fmt.Sprintf("₹%.2f", b.cfg.Trading.Capital)},
		{"📏 Lot Size", fmt.Sprintf("%d", b.cfg.Trading.LotSize)},
		{"🎯 Profit Target", fmt.Sprintf("%.1f%%", b.tradeCfg.ProfitTargetPercent*100)},
		{"📅 Expiry Tier", policyInfo},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"🛑 Max Daily Loss", fmt.Sprintf("₹%.2f", b.cfg.Risk.MaxDailyLoss)},
		{"🔢 Max Trades/Day", fmt.Sprintf("%d", b.cfg.Risk.MaxTradesPerDay)},
		{"❄️ Loss Cooldown", fmt.Sprintf("%d losses → %s", b.cfg.Risk.MaxConsecutiveLosses, b.cfg.Risk.Cooldown())},
		{"🧾 Cost Model", strings.ToUpper(b.cfg.Costs.Broker)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// nearestExpiry resolves the current front contract date, skipping expiry
// dates that have already lapsed.
func nearestExpiry(now time.Time, dates []time.Time) (time.Time, error) {
	info, err := expiry.NewChain(now, dates).Nearest()
	if err != nil {
		return time.Time{}, fmt.Errorf("no tradeable expiry left: %w", err)
	}
	return info.Date, nil
}

// withinWindow reports whether the wall-clock time falls inside the
// [start, end) window, both expressed as minutes since midnight.
func withinWindow(now time.Time, startMin, endMin int) bool {
	m := now.Hour()*60 + now.Minute()
	return m >= startMin && m < endMin
}

// workbookPath names the day's Excel export inside the journal directory.
func workbookPath(dir string, day time.Time) string {
	return filepath.Join(dir, "trades_"+day.Format("2006-01-02")+".xlsx")
}

func (b *Bot) environmentString() string {
	switch b.cfg.Exchange.Name {
	case "sim":
		return "🧪 SIMULATED (Paper Trading)"
	case "bybit":
		if b.cfg.Exchange.Demo {
			return "🧪 DEMO MODE (Paper Trading)"
		}
		if b.cfg.Exchange.Testnet {
			return "🧪 TESTNET (Paper Trading)"
		}
		return "💰 LIVE TRADING MODE (Real Money!)"
	default:
		return b.cfg.Exchange.Name
	}
}
