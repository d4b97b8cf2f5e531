package trade

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantvx/options-scalp-bot/internal/expiry"
	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// Config holds the exit trigger thresholds. Percent-named fields are
// fractions (0.07 = 7%); price epsilons are absolute premium amounts.
type Config struct {
	MaxConcurrentPositions int

	ProfitTargetPercent    float64 // TARGET_HIT and the expiry-aware early target
	DefaultHardStopPercent float64 // stop when no policy is supplied
	DeltaWeaknessPercent   float64 // degradation of |delta| from entry
	ThetaDamageThreshold   float64 // absolute theta worsening since entry
	IVCrushPercent         float64 // IV drop from entry
	OIRiseThreshold        float64 // OI increase that flags a trap when price stalls
	FlatPriceEpsilon       float64 // premium move considered "flat"

	GammaWindow       int     // smoothing samples before rollover can fire
	GammaDropFraction float64 // decline from the smoothed peak that confirms rollover
}

// DefaultConfig mirrors the tuned scalping thresholds.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPositions: 1,
		ProfitTargetPercent:    0.07,
		DefaultHardStopPercent: 0.07,
		DeltaWeaknessPercent:   0.15,
		ThetaDamageThreshold:   0.05,
		IVCrushPercent:         0.05,
		OIRiseThreshold:        100,
		FlatPriceEpsilon:       0.5,
		GammaWindow:            5,
		GammaDropFraction:      0.20,
	}
}

// Manager is the trade lifecycle state machine. It owns every OPEN trade;
// callers interact with trades only through Open, Update and Close. All
// methods are safe for concurrent use, though the decision loop that drives
// them is single-threaded.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	open    map[string]*Trade // keyed by symbol
	counter int
	closed  []Snapshot
	now     func() time.Time
}

// NewManager creates a manager with the given trigger configuration.
func NewManager(cfg Config) *Manager {
	if cfg.MaxConcurrentPositions < 1 {
		cfg.MaxConcurrentPositions = 1
	}
	return &Manager{
		cfg:  cfg,
		open: make(map[string]*Trade),
		now:  time.Now,
	}
}

// OpenParams describes a fill-confirmed entry. Price and quantity come from
// the execution confirmation, not the requested order.
type OpenParams struct {
	Symbol      string
	Side        Side
	EntryPrice  float64
	Quantity    int
	StopPrice   float64
	TargetPrice float64

	// Entry is the market snapshot at fill time; its Greeks are frozen as
	// the entry reference for the exit chain.
	Entry types.OptionSnapshot
}

// Open creates a new OPEN trade. It fails with ErrConcurrentPositionLimit
// when the position cap is reached or the symbol already has an open trade.
func (m *Manager) Open(p OpenParams) (*Trade, error) {
	if p.EntryPrice <= 0 || p.Quantity <= 0 {
		return nil, fmt.Errorf("invalid entry: price %.2f quantity %d", p.EntryPrice, p.Quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.open[p.Symbol]; exists {
		return nil, fmt.Errorf("%w: %s already open", ErrConcurrentPositionLimit, p.Symbol)
	}
	if len(m.open) >= m.cfg.MaxConcurrentPositions {
		return nil, fmt.Errorf("%w: %d open", ErrConcurrentPositionLimit, len(m.open))
	}

	m.counter++
	entryTime := p.Entry.Timestamp
	if entryTime.IsZero() {
		entryTime = m.now()
	}

	t := &Trade{
		ID:                fmt.Sprintf("%s_%03d", entryTime.Format("20060102_150405"), m.counter),
		Symbol:            p.Symbol,
		Side:              p.Side,
		Status:            StatusOpen,
		Quantity:          p.Quantity,
		EntryTime:         entryTime,
		EntryPrice:        p.EntryPrice,
		StopPrice:         p.StopPrice,
		TargetPrice:       p.TargetPrice,
		EntryGreeks:       p.Entry.Greeks,
		EntryOpenInterest: p.Entry.OpenInterest,
		CurrentPrice:      p.EntryPrice,
		CurrentGreeks:     p.Entry.Greeks,
		OpenInterest:      p.Entry.OpenInterest,
		prevPrice:         p.EntryPrice,
		prevOpenInterest:  p.Entry.OpenInterest,
		lastTick:          entryTime,
		gamma:             newGammaTracker(m.cfg.GammaWindow, p.Entry.Greeks.Gamma),
	}

	m.open[p.Symbol] = t
	return t, nil
}

// Update refreshes the trade with a market snapshot and evaluates the exit
// chain in strict priority order, returning the first reason that fires.
// The caller is responsible for snapshot quality: stale or out-of-order
// ticks must be dropped before calling Update, and a returned reason must be
// acted on before the next tick for this trade.
func (m *Manager) Update(t *Trade, snap types.OptionSnapshot, policy *expiry.Policy) (ExitReason, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Status != StatusOpen {
		return "", false, ErrTradeNotOpen
	}

	t.CurrentPrice = snap.Price
	t.CurrentGreeks = snap.Greeks
	t.OpenInterest = snap.OpenInterest
	t.UnrealizedPnl = t.Side.sign() * (snap.Price - t.EntryPrice) * float64(t.Quantity)
	t.TimeInTrade = snap.Timestamp.Sub(t.EntryTime)
	t.gamma.observe(snap.Greeks.Gamma)

	reason, fired := m.evaluateExits(t, snap, policy)

	// Momentum references roll forward only after evaluation so each tick
	// is compared against its true predecessor.
	t.prevPrice = snap.Price
	t.prevOpenInterest = snap.OpenInterest
	t.lastTick = snap.Timestamp

	return reason, fired, nil
}

// Close transitions the trade to CLOSED at the given fill price. Idempotent-
// guarded: closing a CLOSED trade fails with ErrTradeAlreadyClosed.
func (m *Manager) Close(t *Trade, exitPrice float64, reason ExitReason) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.Status == StatusClosed {
		return Snapshot{}, ErrTradeAlreadyClosed
	}

	t.Status = StatusClosed
	t.ExitTime = m.now()
	t.ExitPrice = exitPrice
	t.ExitReason = reason
	t.RealizedPnl = t.Side.sign() * (exitPrice - t.EntryPrice) * float64(t.Quantity)

	delete(m.open, t.Symbol)
	snap := t.Snapshot()
	m.closed = append(m.closed, snap)
	return snap, nil
}

// OpenTrades returns the currently open trades.
func (m *Manager) OpenTrades() []*Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Trade, 0, len(m.open))
	for _, t := range m.open {
		out = append(out, t)
	}
	return out
}

// ClosedTrades returns snapshots of every trade closed this session.
func (m *Manager) ClosedTrades() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, len(m.closed))
	copy(out, m.closed)
	return out
}

// Stats summarizes the session's closed trades.
type Stats struct {
	Total    int
	Wins     int
	Losses   int
	WinRate  float64
	TotalPnl float64
	AvgPnl   float64
}

// Stats computes session statistics over closed trades.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Total: len(m.closed)}
	for _, t := range m.closed {
		s.TotalPnl += t.RealizedPnl
		if t.RealizedPnl > 0 {
			s.Wins++
		} else if t.RealizedPnl < 0 {
			s.Losses++
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total) * 100
		s.AvgPnl = s.TotalPnl / float64(s.Total)
	}
	return s
}
