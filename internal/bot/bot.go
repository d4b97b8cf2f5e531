// Package bot wires the decision engines, risk governor and exchange into
// the live trading loop. The loop is single-threaded: one tick in, at most
// one action out.
package bot

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantvx/options-scalp-bot/internal/chain"
	"github.com/quantvx/options-scalp-bot/internal/config"
	"github.com/quantvx/options-scalp-bot/internal/costs"
	boterrors "github.com/quantvx/options-scalp-bot/internal/errors"
	"github.com/quantvx/options-scalp-bot/internal/exchange"
	"github.com/quantvx/options-scalp-bot/internal/expiry"
	"github.com/quantvx/options-scalp-bot/internal/journal"
	"github.com/quantvx/options-scalp-bot/internal/logger"
	"github.com/quantvx/options-scalp-bot/internal/monitoring"
	"github.com/quantvx/options-scalp-bot/internal/notifications"
	"github.com/quantvx/options-scalp-bot/internal/risk"
	"github.com/quantvx/options-scalp-bot/internal/safety"
	"github.com/quantvx/options-scalp-bot/internal/signal"
	"github.com/quantvx/options-scalp-bot/internal/sizing"
	"github.com/quantvx/options-scalp-bot/internal/trade"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// Bot runs the scalping session for one underlying.
type Bot struct {
	cfg      *config.Config
	exchange exchange.Exchange
	logger   *logger.Logger
	notifier notifications.Notifier
	health   *monitoring.HealthChecker

	bias      *signal.BiasEngine
	entry     *signal.EntryEngine
	selector  *chain.Selector
	governor  *risk.Governor
	manager   *trade.Manager
	sizer     *sizing.Calculator
	costModel *costs.Model
	journal   *journal.Journal

	tradeCfg trade.Config

	validator  *safety.Validator
	mdBreaker  *safety.CircuitBreaker
	ordBreaker *safety.CircuitBreaker
	mdLimiter  *safety.RateLimiter

	expiryDates []time.Time

	// Per-symbol previous snapshot for momentum comparisons, plus the last
	// accepted tick time for the monotonic gate.
	prevSnap map[string]types.OptionSnapshot
	lastTick map[string]time.Time

	// entrySlip remembers the modeled entry slippage per open trade so the
	// journal can report a full round-trip cost at close.
	entrySlip map[string]float64

	// pushed holds websocket ticker updates for the open position when the
	// exchange streams. Written from the stream goroutine.
	pushedMu sync.Mutex
	pushed   map[string]types.OptionSnapshot

	lastBlockReason string
	sessionEnded    bool

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// New assembles a bot from config. The exchange is injected so the same
// loop runs against Bybit or the simulator.
func New(cfg *config.Config, ex exchange.Exchange) (*Bot, error) {
	log, err := logger.NewLogger(cfg.Trading.Underlying)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	governor, err := risk.NewGovernorWithState(risk.Config{
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		DailyProfitTarget:  cfg.Risk.DailyProfitTarget,
		MaxTradesPerDay:    cfg.Risk.MaxTradesPerDay,
		MaxConsecutiveLoss: cfg.Risk.MaxConsecutiveLosses,
		CooldownPeriod:     cfg.Risk.Cooldown(),
	}, cfg.Risk.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to restore risk state: %w", err)
	}

	jnl, err := journal.New(cfg.Journal.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	var notifier notifications.Notifier = notifications.NopNotifier{}
	if n := cfg.Notifications; n != nil && n.Enabled {
		notifier = notifications.NewTelegramNotifier(n.TelegramToken, n.TelegramChat)
	}

	biasEngine := signal.NewBiasEngine(signal.DefaultBiasConfig())
	trapDetector := signal.NewTrapDetector(signal.DefaultTrapConfig())

	tradeCfg := trade.DefaultConfig()
	tradeCfg.MaxConcurrentPositions = cfg.Trading.MaxPositions

	b := &Bot{
		cfg:       cfg,
		exchange:  ex,
		logger:    log,
		notifier:  notifier,
		health:    monitoring.NewHealthChecker(),
		bias:      biasEngine,
		entry:     signal.NewEntryEngine(signal.DefaultEntryConfig(), biasEngine, trapDetector),
		selector:  chain.NewSelector(chain.DefaultSelectorConfig()),
		governor:  governor,
		manager:   trade.NewManager(tradeCfg),
		sizer:     sizing.NewCalculator(cfg.Trading.Capital, cfg.Trading.LotSize),
		costModel: costs.NewModel(cfg.Costs.Broker, cfg.Trading.LotSize),
		journal:   jnl,
		tradeCfg:  tradeCfg,
		validator: safety.NewValidator(),
		mdBreaker: safety.NewCircuitBreaker("market_data", safety.CircuitBreakerConfig{}),
		ordBreaker: safety.NewCircuitBreaker("orders", safety.CircuitBreakerConfig{
			FailureThreshold: 3,
			Timeout:          time.Minute,
		}),
		mdLimiter: safety.NewRateLimiter("market_data", 10, 5),
		prevSnap:  make(map[string]types.OptionSnapshot),
		lastTick:  make(map[string]time.Time),
		entrySlip: make(map[string]float64),
		pushed:    make(map[string]types.OptionSnapshot),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	return b, nil
}

// Health exposes the health checker for the monitoring endpoint.
func (b *Bot) Health() *monitoring.HealthChecker { return b.health }

// Start connects, loads the expiry calendar and launches the trading loop.
func (b *Bot) Start() error {
	ctx := context.Background()

	dates, err := b.exchange.Expiries(ctx, b.cfg.Trading.Underlying)
	if err != nil {
		return fmt.Errorf("failed to load expiries: %w", err)
	}
	if len(dates) == 0 {
		return fmt.Errorf("no tradeable expiries for %s", b.cfg.Trading.Underlying)
	}
	b.expiryDates = dates
	b.health.SetConnected(true)

	b.printStartupInfo()
	b.printConfiguration()

	fmt.Printf("📝 Trading logs: %s\n", b.logger.GetLogPath())
	fmt.Printf("🔄 Bot is running... (trading activity logged to file)\n\n")

	b.mu.Lock()
	b.running = true
	b.mu.Unlock()

	go b.tradingLoop()
	return nil
}

// Stop squares off open positions, prints the day summary and releases
// resources. Safe to call once.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopChan)
	select {
	case <-b.doneChan:
	case <-time.After(10 * time.Second):
	}

	fmt.Printf("🔄 Squaring off open positions...\n")
	if err := b.squareOff(); err != nil {
		fmt.Printf("⚠️ Error squaring off: %v\n", err)
		b.logger.LogError("square off", err)
	}

	status := b.governor.Status()
	stats := b.manager.Stats()
	b.logger.LogDaySummary(stats.Total, stats.Wins, status.RealizedPnl)
	b.journal.PrintSummary()

	if stats.Total > 0 {
		path := workbookPath(b.cfg.Journal.Dir, time.Now())
		if err := b.journal.ExportXLSX(path); err != nil {
			b.logger.LogError("journal export", err)
		} else {
			fmt.Printf("📊 Trade workbook: %s\n", path)
		}
	}

	b.logger.Close()
}

func (b *Bot) tradingLoop() {
	defer close(b.doneChan)

	ticker := time.NewTicker(b.cfg.Trading.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.tick()
		}
	}
}

// currentPolicy derives the expiry-proximity policy from the calendar.
func (b *Bot) currentPolicy() (expiry.Policy, error) {
	return expiry.NewChain(time.Now(), b.expiryDates).CurrentPolicy()
}

// tick is one pass of the decision loop: manage the open trade if there is
// one, otherwise hunt for an entry. Outside the configured session window
// nothing is hunted and anything open is squared off.
func (b *Bot) tick() {
	if !b.inSession(time.Now()) {
		b.endSession()
		return
	}
	b.sessionEnded = false

	policy, err := b.currentPolicy()
	if err != nil {
		b.recordError("expiry", err)
		return
	}

	if open := b.manager.OpenTrades(); len(open) > 0 {
		b.manageOpen(open[0], policy)
		return
	}

	b.huntEntry(policy)
}

// inSession reports whether the trading window allows activity right now.
// An unset window means the market trades around the clock.
func (b *Bot) inSession(now time.Time) bool {
	start, end, enabled := b.cfg.Trading.Session()
	if !enabled {
		return true
	}
	return withinWindow(now, start, end)
}

// endSession squares off whatever is open once the window has closed.
// Runs every out-of-window tick but only acts and logs once.
func (b *Bot) endSession() {
	if len(b.manager.OpenTrades()) > 0 {
		b.logger.Status("session window closed, squaring off open positions")
		if err := b.squareOff(); err != nil {
			b.recordError("session square off", err)
		}
	}
	if !b.sessionEnded {
		b.logger.Status("outside trading window (%s-%s), entries paused",
			b.cfg.Trading.SessionStart, b.cfg.Trading.SessionEnd)
		b.sessionEnded = true
	}
}

// manageOpen refreshes the open trade and acts on the first exit trigger
// that fires.
func (b *Bot) manageOpen(t *trade.Trade, policy expiry.Policy) {
	snap, ok := b.freshSnapshot(t.Symbol)
	if !ok {
		return
	}

	monitoring.UpdatePremium(t.Symbol, snap.Price)
	b.health.RecordTick(snap.Price)

	reason, fired, err := b.manager.Update(t, snap, &policy)
	if err != nil {
		b.recordError("trade_update", err)
		return
	}
	if !fired {
		return
	}

	b.closeTrade(t, snap, reason)
}

// huntEntry runs the signal chain and opens a position when everything
// aligns.
func (b *Bot) huntEntry(policy expiry.Policy) {
	if ok, reason := b.governor.CanOpenTrade(); !ok {
		b.publishGovernor()
		if reason != b.lastBlockReason {
			b.logger.Status("entries blocked: %s", reason)
			b.lastBlockReason = reason
		}
		return
	}
	b.lastBlockReason = ""

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	quotes, spot, err := b.fetchChain(ctx)
	if err != nil {
		b.recordError("option_chain", err)
		return
	}

	// The bias engine reads the ATM call tape; it is the most liquid and
	// least strike-dependent series on the board.
	if atm, ok := atmQuote(quotes, spot, types.OptionCall); ok {
		bias := b.bias.Observe(atm.OptionSnapshot)
		metrics := b.bias.Metrics()
		monitoring.UpdateBiasConfidence(metrics.Confidence)
		b.health.RecordTick(atm.Price)
		b.logger.LogTick(atm.Symbol, atm.Price, atm.Greeks.Delta, atm.Greeks.Gamma,
			atm.Greeks.ImpliedVol, string(bias))
	}

	candidate, _, ok := b.selector.Select(quotes, b.bias.Bias())
	if !ok {
		b.rememberChain(quotes)
		return
	}

	prev, seen := b.prevSnap[candidate.Symbol]
	b.rememberChain(quotes)
	if !seen {
		return
	}
	if valid := b.validator.ValidateSnapshot(candidate.OptionSnapshot); !valid.Valid {
		b.recordError("snapshot_validation", fmt.Errorf("%s", valid.Message))
		return
	}

	entryCtx := b.entry.Check(candidate, prev)
	if entryCtx == nil || !b.entry.ValidQuality(entryCtx) {
		return
	}
	if !b.selector.ValidateSelection(candidate) {
		return
	}

	b.openTrade(candidate, policy, entryCtx)
}

// openTrade sizes, executes and registers a fresh entry.
func (b *Bot) openTrade(q types.OptionQuote, policy expiry.Policy, entryCtx *signal.EntryContext) {
	entryPrice := q.Ask // market buys lift the offer
	stopPrice := entryPrice * (1 - policy.HardStopLossPercent)
	targetPrice := entryPrice * (1 + b.tradeCfg.ProfitTargetPercent)

	riskBudget := b.cfg.Trading.Capital * policy.RiskPercent
	sized, err := b.sizer.Size(entryPrice, stopPrice, targetPrice, riskBudget, &policy)
	if err != nil {
		b.logger.Info("entry skipped: %v", err)
		return
	}

	var fill types.OrderFill
	err = b.ordBreaker.Call(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var err error
		fill, err = b.exchange.PlaceMarketOrder(ctx, q.Symbol, exchange.Buy, sized.Quantity)
		return err
	})
	if err != nil {
		b.recordError("order_entry", err)
		return
	}

	entrySnap := q.OptionSnapshot
	entrySnap.Price = fill.FilledPrice

	t, err := b.manager.Open(trade.OpenParams{
		Symbol:      q.Symbol,
		Side:        trade.SideLong,
		EntryPrice:  fill.FilledPrice,
		Quantity:    fill.FilledQuantity,
		StopPrice:   stopPrice,
		TargetPrice: targetPrice,
		Entry:       entrySnap,
	})
	if err != nil {
		b.recordError("trade_open", err)
		return
	}

	b.governor.RecordOpen()
	b.publishGovernor()
	monitoring.SetOpenTrades(1)

	slip := b.costModel.EntrySlippage(q.Price, q.Bid, q.Ask, fill.FilledQuantity, costs.VolatilityNormal)
	b.mu.Lock()
	b.entrySlip[t.ID] = slip.Amount
	b.mu.Unlock()

	b.subscribeTicks(q.Symbol)

	b.logger.LogTradeOpen(q.Symbol, fill.OrderID, fill.FilledQuantity, fill.FilledPrice, stopPrice, targetPrice, tierName(policy))
	b.logger.Trade("entry reasons: %v (confidence %.0f)", entryCtx.Reasons, entryCtx.Confidence)
	if err := b.notifier.NotifyTradeOpen(q.Symbol, fill.FilledQuantity, fill.FilledPrice, stopPrice, targetPrice); err != nil {
		b.logger.LogError("notify open", err)
	}
}

// closeTrade executes the exit order and settles the trade.
func (b *Bot) closeTrade(t *trade.Trade, snap types.OptionSnapshot, reason trade.ExitReason) {
	var fill types.OrderFill
	err := b.ordBreaker.Call(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var err error
		fill, err = b.exchange.PlaceMarketOrder(ctx, t.Symbol, exchange.Sell, t.Quantity)
		return err
	})
	if err != nil {
		// The trigger stays armed: the next tick re-fires and retries.
		b.recordError("order_exit", err)
		return
	}

	closed, err := b.manager.Close(t, fill.FilledPrice, reason)
	if err != nil {
		b.recordError("trade_close", err)
		return
	}

	b.unsubscribeTicks(closed.Symbol)

	b.governor.RecordClose(closed.RealizedPnl)
	b.publishGovernor()
	monitoring.SetOpenTrades(0)
	monitoring.RecordTradeClose(closed.Symbol, string(reason), closed.RealizedPnl)

	b.settleCosts(closed, snap.Price, snap.Bid, snap.Ask)

	b.logger.LogTradeClose(closed.Symbol, closed.EntryPrice, closed.ExitPrice, closed.RealizedPnl, string(reason), closed.Duration)
	if err := b.notifier.NotifyTradeClose(closed.Symbol, closed.RealizedPnl, string(reason), closed.Duration); err != nil {
		b.logger.LogError("notify close", err)
	}

	if status := b.governor.Status(); status.KillSwitchActive {
		b.logger.LogRiskHalt(status.KillReason)
		if err := b.notifier.NotifyHalt(status.KillReason); err != nil {
			b.logger.LogError("notify halt", err)
		}
	}
}

// subscribeTicks switches the open position to pushed updates when the
// exchange streams. Polling remains the fallback either way.
func (b *Bot) subscribeTicks(symbol string) {
	streamer, ok := b.exchange.(exchange.TickStreamer)
	if !ok {
		return
	}
	err := streamer.SubscribeTicks(symbol, func(snap types.OptionSnapshot) {
		b.pushedMu.Lock()
		b.pushed[symbol] = snap
		b.pushedMu.Unlock()
	})
	if err != nil {
		b.logger.LogError("tick subscribe", err)
	}
}

func (b *Bot) unsubscribeTicks(symbol string) {
	b.pushedMu.Lock()
	delete(b.pushed, symbol)
	b.pushedMu.Unlock()

	if streamer, ok := b.exchange.(exchange.TickStreamer); ok {
		if err := streamer.UnsubscribeTicks(symbol); err != nil {
			b.logger.LogError("tick unsubscribe", err)
		}
	}
}

// freshSnapshot returns the latest tick for a symbol, preferring a pushed
// stream update over a REST poll, and applies the data-quality gates:
// validation, staleness and monotonic timestamps. Rejected ticks are
// dropped, never fed to the trade manager.
func (b *Bot) freshSnapshot(symbol string) (types.OptionSnapshot, bool) {
	if snap, ok := b.pushedSnapshot(symbol); ok {
		return b.admitSnapshot(symbol, snap)
	}

	var snap types.OptionSnapshot
	err := b.mdBreaker.Call(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.mdLimiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		snap, err = b.exchange.Snapshot(ctx, symbol)
		return err
	})
	if err != nil {
		b.recordError("snapshot", err)
		return types.OptionSnapshot{}, false
	}

	return b.admitSnapshot(symbol, snap)
}

// pushedSnapshot drains the stream cache for the symbol if the update is
// still fresh enough to act on.
func (b *Bot) pushedSnapshot(symbol string) (types.OptionSnapshot, bool) {
	b.pushedMu.Lock()
	snap, ok := b.pushed[symbol]
	b.pushedMu.Unlock()
	if !ok {
		return types.OptionSnapshot{}, false
	}
	if snap.Age(time.Now()) > b.cfg.Trading.StaleTick() {
		return types.OptionSnapshot{}, false
	}
	return snap, true
}

func (b *Bot) admitSnapshot(symbol string, snap types.OptionSnapshot) (types.OptionSnapshot, bool) {
	if result := b.validator.ValidateSnapshot(snap); !result.Valid {
		b.recordError("snapshot_validation", fmt.Errorf("%s", result.Message))
		return types.OptionSnapshot{}, false
	}
	if snap.Age(time.Now()) > b.cfg.Trading.StaleTick() {
		b.logger.Warning("stale tick for %s (%.1fs old), dropped", symbol, snap.Age(time.Now()).Seconds())
		return types.OptionSnapshot{}, false
	}
	if last, ok := b.lastTick[symbol]; ok && !snap.Timestamp.After(last) {
		return types.OptionSnapshot{}, false
	}

	b.lastTick[symbol] = snap.Timestamp
	b.prevSnap[symbol] = snap
	return snap, true
}

// fetchChain pulls the front-expiry option chain and the underlying price.
// The front contract is re-derived every call so a lapsed expiry rolls to
// the next one mid-session instead of polling a dead chain.
func (b *Bot) fetchChain(ctx context.Context) ([]types.OptionQuote, float64, error) {
	front, err := nearestExpiry(time.Now(), b.expiryDates)
	if err != nil {
		return nil, 0, err
	}
	if err := b.mdLimiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	var quotes []types.OptionQuote
	var spot float64
	err = b.mdBreaker.Call(func() error {
		var err error
		quotes, err = b.exchange.OptionChain(ctx, b.cfg.Trading.Underlying, front)
		if err != nil {
			return err
		}
		spot, err = b.exchange.UnderlyingPrice(ctx, b.cfg.Trading.Underlying)
		return err
	})
	return quotes, spot, err
}

// rememberChain stores this tick's snapshots as the next tick's predecessors.
func (b *Bot) rememberChain(quotes []types.OptionQuote) {
	for _, q := range quotes {
		if last, ok := b.lastTick[q.Symbol]; ok && !q.Timestamp.After(last) {
			continue
		}
		b.lastTick[q.Symbol] = q.Timestamp
		b.prevSnap[q.Symbol] = q.OptionSnapshot
	}
}

func (b *Bot) publishGovernor() {
	status := b.governor.Status()
	monitoring.SetDailyPnl(status.RealizedPnl)
	monitoring.SetKillSwitch(status.KillSwitchActive)
}

// recordError categorizes the failure, feeds metrics/health/log, and pulls
// the kill switch on fatal categories (bad credentials, unrecoverable
// config). Everything else is left to the next tick.
func (b *Bot) recordError(kind string, err error) {
	botErr := boterrors.CategorizeError(err, "bot", kind)

	monitoring.RecordError(string(botErr.Category))
	b.health.RecordError(botErr.Error())
	b.logger.LogError(kind, err)

	if botErr.GetRecoveryAction() == boterrors.RecoveryActionStop {
		b.governor.Halt(fmt.Sprintf("fatal %s error: %v", kind, err))
		monitoring.SetKillSwitch(true)
	}
}

// atmQuote finds the quote of the given side closest to spot.
func atmQuote(quotes []types.OptionQuote, spot float64, optType types.OptionType) (types.OptionQuote, bool) {
	var best types.OptionQuote
	bestDist := math.MaxFloat64
	found := false
	for _, q := range quotes {
		if q.OptionType != optType {
			continue
		}
		if dist := math.Abs(q.Strike - spot); dist < bestDist {
			best, bestDist, found = q, dist, true
		}
	}
	return best, found
}

func tierName(p expiry.Policy) string {
	switch {
	case p.IsExpiryDay():
		return "EXPIRY_DAY"
	case p.DaysToExpiry == 1:
		return "PRE_EXPIRY"
	case p.IsExpiryWeek():
		return "EXPIRY_WEEK"
	default:
		return "NORMAL"
	}
}
