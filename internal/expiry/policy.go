package expiry

import "time"

// Policy is the expiry-proximity-adjusted trading policy. It is a value:
// derived on demand, passed by value, never mutated. Callers hand it to the
// sizing calculator and the trade manager at each call boundary instead of
// sharing a mutable configuration object.
type Policy struct {
	DaysToExpiry int

	// PositionSizeFactor scales the raw risk-derived quantity (0, 1].
	PositionSizeFactor float64

	// RiskPercent is the fraction of capital risked per trade (0, 1].
	RiskPercent float64

	// HardStopLossPercent is the premium stop distance as a fraction (> 0).
	HardStopLossPercent float64

	// MinHold/MaxHold bound the time a position may stay open. MaxHold is a
	// hard capital-protection backstop: the trade manager forces an exit
	// once it is exceeded, profit or not.
	MinHold time.Duration
	MaxHold time.Duration

	// EntryFrequencyFactor throttles how aggressively new entries are
	// attempted as expiry approaches.
	EntryFrequencyFactor float64

	// GammaExitSensitivity tightens the gamma rollover exit near expiry.
	GammaExitSensitivity float64
}

// IsExpiryDay reports whether the policy corresponds to the contract's
// last trading day.
func (p Policy) IsExpiryDay() bool {
	return p.DaysToExpiry == 0
}

// IsExpiryWeek reports whether the contract expires within three days.
func (p Policy) IsExpiryWeek() bool {
	return p.DaysToExpiry <= 3
}

// DerivePolicy maps days-to-expiry onto a trading policy. Pure and total:
// negative input is clamped to zero, anything past the last tier falls back
// to the normal tier. Caution strictly increases closer to expiry: size
// factor, risk percent and max hold all shrink.
func DerivePolicy(daysToExpiry int) Policy {
	if daysToExpiry < 0 {
		daysToExpiry = 0
	}

	switch {
	case daysToExpiry == 0:
		return Policy{
			DaysToExpiry:         daysToExpiry,
			PositionSizeFactor:   0.30,
			RiskPercent:          0.005,
			HardStopLossPercent:  0.03,
			MinHold:              20 * time.Second,
			MaxHold:              5 * time.Minute,
			EntryFrequencyFactor: 0.2,
			GammaExitSensitivity: 2.0,
		}
	case daysToExpiry == 1:
		return Policy{
			DaysToExpiry:         daysToExpiry,
			PositionSizeFactor:   0.50,
			RiskPercent:          0.010,
			HardStopLossPercent:  0.04,
			MinHold:              20 * time.Second,
			MaxHold:              10 * time.Minute,
			EntryFrequencyFactor: 0.5,
			GammaExitSensitivity: 1.5,
		}
	case daysToExpiry <= 3:
		return Policy{
			DaysToExpiry:         daysToExpiry,
			PositionSizeFactor:   0.70,
			RiskPercent:          0.015,
			HardStopLossPercent:  0.05,
			MinHold:              20 * time.Second,
			MaxHold:              15 * time.Minute,
			EntryFrequencyFactor: 0.8,
			GammaExitSensitivity: 1.2,
		}
	default:
		// Normal tier: the hard time backstop stays, but at the widest
		// window so it never preempts the Greek-based exits.
		return Policy{
			DaysToExpiry:         daysToExpiry,
			PositionSizeFactor:   1.00,
			RiskPercent:          0.020,
			HardStopLossPercent:  0.06,
			MinHold:              20 * time.Second,
			MaxHold:              time.Hour,
			EntryFrequencyFactor: 1.0,
			GammaExitSensitivity: 1.0,
		}
	}
}
