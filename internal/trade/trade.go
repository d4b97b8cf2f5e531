// Package trade owns the lifecycle of open option positions: entry,
// per-tick re-evaluation against a prioritized exit chain, and close with
// realized P&L accounting.
package trade

import (
	"errors"
	"time"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

var (
	// ErrConcurrentPositionLimit is returned by Open when the configured
	// maximum number of simultaneous positions is already reached, or a
	// position for the same symbol is already open.
	ErrConcurrentPositionLimit = errors.New("concurrent position limit exceeded")

	// ErrTradeAlreadyClosed is returned by Close on a CLOSED trade. A trade
	// never transitions back to OPEN.
	ErrTradeAlreadyClosed = errors.New("trade already closed")

	// ErrTradeNotOpen is returned by Update on a trade that is not OPEN.
	ErrTradeNotOpen = errors.New("trade is not open")
)

// Status is the lifecycle state of a trade. CLOSED is terminal.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Side is the direction of the position.
type Side int

const (
	SideLong Side = iota
	SideShort
)

func (s Side) String() string {
	if s == SideShort {
		return "SHORT"
	}
	return "LONG"
}

// sign returns the P&L sign multiplier for the side.
func (s Side) sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// ExitReason names the trigger that closed a trade. The values double as
// journal tags, so they stay stable.
type ExitReason string

const (
	ExitTimeForcedProfit ExitReason = "TIME_FORCED_PROFIT"
	ExitTimeForcedLoss   ExitReason = "TIME_FORCED_LOSS"
	ExitTimeBasedTarget  ExitReason = "TIME_BASED_TARGET"
	ExitHardStopLoss     ExitReason = "HARD_STOP_LOSS"
	ExitTargetHit        ExitReason = "TARGET_HIT"
	ExitDeltaWeakness    ExitReason = "DELTA_WEAKNESS"
	ExitGammaRollover    ExitReason = "GAMMA_ROLLOVER"
	ExitThetaDamage      ExitReason = "THETA_DAMAGE"
	ExitIVCrush          ExitReason = "IV_CRUSH"
	ExitOIPriceMismatch  ExitReason = "OI_PRICE_MISMATCH"

	// ExitManual is used when the orchestrator squares off a position
	// outside the trigger chain (shutdown, session end).
	ExitManual ExitReason = "MANUAL_SQUARE_OFF"
)

// Trade is a single option position. It is owned exclusively by the Manager
// while OPEN and becomes immutable once CLOSED; journaling consumers receive
// a value copy via Snapshot.
type Trade struct {
	ID       string
	Symbol   string
	Side     Side
	Status   Status
	Quantity int

	EntryTime   time.Time
	EntryPrice  float64
	StopPrice   float64
	TargetPrice float64

	// EntryGreeks and EntryOpenInterest are frozen at open; the exit chain
	// compares every later tick against them. Never overwritten.
	EntryGreeks       types.Greeks
	EntryOpenInterest float64

	CurrentPrice  float64
	CurrentGreeks types.Greeks
	OpenInterest  float64
	UnrealizedPnl float64
	TimeInTrade   time.Duration

	ExitTime    time.Time
	ExitPrice   float64
	ExitReason  ExitReason
	RealizedPnl float64

	// Previous tick values for momentum-style comparisons.
	prevPrice        float64
	prevOpenInterest float64
	lastTick         time.Time

	gamma *gammaTracker
}

// PnlFraction returns the unrealized P&L as a signed fraction of the entry
// premium (0.07 = +7%).
func (t *Trade) PnlFraction() float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	return t.Side.sign() * (t.CurrentPrice - t.EntryPrice) / t.EntryPrice
}

// Snapshot is a read-only copy of a trade handed to journaling and reporting
// collaborators at close.
type Snapshot struct {
	ID          string
	Symbol      string
	Side        string
	Quantity    int
	EntryTime   time.Time
	EntryPrice  float64
	ExitTime    time.Time
	ExitPrice   float64
	ExitReason  ExitReason
	RealizedPnl float64
	PnlPercent  float64
	Duration    time.Duration
	EntryGreeks types.Greeks
	ExitGreeks  types.Greeks
	StopPrice   float64
	TargetPrice float64
}

// Snapshot returns the journaling view of the trade.
func (t *Trade) Snapshot() Snapshot {
	pnlPercent := 0.0
	if t.EntryPrice > 0 {
		pnlPercent = t.Side.sign() * (t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100
	}
	return Snapshot{
		ID:          t.ID,
		Symbol:      t.Symbol,
		Side:        t.Side.String(),
		Quantity:    t.Quantity,
		EntryTime:   t.EntryTime,
		EntryPrice:  t.EntryPrice,
		ExitTime:    t.ExitTime,
		ExitPrice:   t.ExitPrice,
		ExitReason:  t.ExitReason,
		RealizedPnl: t.RealizedPnl,
		PnlPercent:  pnlPercent,
		Duration:    t.ExitTime.Sub(t.EntryTime),
		EntryGreeks: t.EntryGreeks,
		ExitGreeks:  t.CurrentGreeks,
		StopPrice:   t.StopPrice,
		TargetPrice: t.TargetPrice,
	}
}
