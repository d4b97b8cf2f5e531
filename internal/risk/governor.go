package risk

import (
	"fmt"
	"sync"
	"time"
)

// Config bounds a single trading day. Values are absolute rupee amounts
// except where noted.
type Config struct {
	MaxDailyLoss       float64       `json:"max_daily_loss"`       // positive number; trading halts at -MaxDailyLoss
	DailyProfitTarget  float64       `json:"daily_profit_target"`  // 0 disables the profit halt
	MaxTradesPerDay    int           `json:"max_trades_per_day"`   // 0 disables the cap
	MaxConsecutiveLoss int           `json:"max_consecutive_loss"` // losing streak length that starts a cooldown
	CooldownPeriod     time.Duration `json:"cooldown_period"`
}

func DefaultConfig() Config {
	return Config{
		MaxDailyLoss:       3000,
		DailyProfitTarget:  0,
		MaxTradesPerDay:    5,
		MaxConsecutiveLoss: 3,
		CooldownPeriod:     15 * time.Minute,
	}
}

// Governor enforces the daily risk limits. All entry decisions funnel
// through CanOpenTrade before an order is placed; every realized close is
// reported through RecordClose. The kill switch latches for the rest of
// the day and never clears on its own.
type Governor struct {
	cfg Config

	mu                sync.Mutex
	day               time.Time // midnight of the trading day the counters belong to
	realizedPnl       float64
	tradesOpened      int
	consecutiveLosses int
	killSwitch        bool
	killReason        string
	profitHalt        bool
	cooldownUntil     time.Time

	state *StateFile // nil when persistence is disabled
	now   func() time.Time
}

func NewGovernor(cfg Config) *Governor {
	g := &Governor{cfg: cfg, now: time.Now}
	g.day = dayOf(g.now())
	return g
}

// NewGovernorWithState restores counters from the snapshot file when it
// belongs to the current trading day, otherwise starts fresh.
func NewGovernorWithState(cfg Config, statePath string) (*Governor, error) {
	g := NewGovernor(cfg)
	g.state = NewStateFile(statePath)

	snap, err := g.state.Load()
	if err != nil {
		// missing or unreadable snapshot means a fresh day
		g.persist()
		return g, nil
	}
	if err := snap.Validate(); err != nil {
		// a corrupt file must never seed the day's counters
		g.persist()
		return g, nil
	}
	if dayOf(snap.Day).Equal(g.day) {
		g.realizedPnl = snap.RealizedPnl
		g.tradesOpened = snap.TradesOpened
		g.consecutiveLosses = snap.ConsecutiveLosses
		g.killSwitch = snap.KillSwitch
		g.killReason = snap.KillReason
		g.profitHalt = snap.ProfitHalt
		g.cooldownUntil = snap.CooldownUntil
	} else {
		g.persist()
	}
	return g, nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// rollover resets the counters when the clock has crossed into a new
// trading day. Caller must hold g.mu.
func (g *Governor) rollover(now time.Time) {
	today := dayOf(now)
	if today.Equal(g.day) {
		return
	}
	g.day = today
	g.realizedPnl = 0
	g.tradesOpened = 0
	g.consecutiveLosses = 0
	g.killSwitch = false
	g.killReason = ""
	g.profitHalt = false
	g.cooldownUntil = time.Time{}
	g.persist()
}

// CanOpenTrade reports whether a new position may be opened right now.
// The reason string is empty when the answer is yes.
func (g *Governor) CanOpenTrade() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.rollover(now)

	if g.killSwitch {
		return false, g.killReason
	}
	if g.profitHalt {
		return false, fmt.Sprintf("daily profit target %.2f reached, done for the day", g.cfg.DailyProfitTarget)
	}
	if g.cfg.MaxTradesPerDay > 0 && g.tradesOpened >= g.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("daily trade cap reached (%d/%d)", g.tradesOpened, g.cfg.MaxTradesPerDay)
	}
	if now.Before(g.cooldownUntil) {
		return false, fmt.Sprintf("cooling down after %d consecutive losses until %s",
			g.cfg.MaxConsecutiveLoss, g.cooldownUntil.Format("15:04:05"))
	}
	return true, ""
}

// RecordOpen counts an opened position against the daily cap. A negative
// count is a precondition violation that can only come from corrupted
// state; it is rejected and the counter restarts from zero.
func (g *Governor) RecordOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover(g.now())
	if g.tradesOpened < 0 {
		g.tradesOpened = 0
	}
	g.tradesOpened++
	g.persist()
}

// RecordClose folds a realized P&L into the day. A breach of the daily
// loss floor latches the kill switch; a breach of the profit target (when
// configured) halts further entries without latching.
func (g *Governor) RecordClose(pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.rollover(now)

	g.realizedPnl += pnl
	if pnl < 0 {
		g.consecutiveLosses++
		if g.cfg.MaxConsecutiveLoss > 0 && g.consecutiveLosses >= g.cfg.MaxConsecutiveLoss && g.cfg.CooldownPeriod > 0 {
			g.cooldownUntil = now.Add(g.cfg.CooldownPeriod)
		}
	} else {
		g.consecutiveLosses = 0
	}

	if g.cfg.MaxDailyLoss > 0 && g.realizedPnl <= -g.cfg.MaxDailyLoss && !g.killSwitch {
		g.killSwitch = true
		g.killReason = fmt.Sprintf("daily loss limit hit: realized %.2f breaches floor %.2f",
			g.realizedPnl, -g.cfg.MaxDailyLoss)
	}
	if g.cfg.DailyProfitTarget > 0 && g.realizedPnl >= g.cfg.DailyProfitTarget {
		g.profitHalt = true
	}
	g.persist()
}

// ClearCooldown lifts a consecutive-loss cooldown early. It has no effect
// on the kill switch.
func (g *Governor) ClearCooldown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cooldownUntil = time.Time{}
	g.consecutiveLosses = 0
	g.persist()
}

// Halt latches the kill switch manually (operator square-off, exchange
// outage). Like the loss-floor latch it holds until the next day.
func (g *Governor) Halt(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover(g.now())
	g.killSwitch = true
	g.killReason = reason
	g.persist()
}

type Status struct {
	RealizedPnl       float64
	TradesOpened      int
	ConsecutiveLosses int
	KillSwitchActive  bool
	KillReason        string
	ProfitHaltActive  bool
	CooldownUntil     time.Time
}

func (g *Governor) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover(g.now())
	return Status{
		RealizedPnl:       g.realizedPnl,
		TradesOpened:      g.tradesOpened,
		ConsecutiveLosses: g.consecutiveLosses,
		KillSwitchActive:  g.killSwitch,
		KillReason:        g.killReason,
		ProfitHaltActive:  g.profitHalt,
		CooldownUntil:     g.cooldownUntil,
	}
}

// persist writes the day snapshot best-effort. Caller must hold g.mu.
func (g *Governor) persist() {
	if g.state == nil {
		return
	}
	_ = g.state.Save(Snapshot{
		Day:               g.day,
		RealizedPnl:       g.realizedPnl,
		TradesOpened:      g.tradesOpened,
		ConsecutiveLosses: g.consecutiveLosses,
		KillSwitch:        g.killSwitch,
		KillReason:        g.killReason,
		ProfitHalt:        g.profitHalt,
		CooldownUntil:     g.cooldownUntil,
	})
}
