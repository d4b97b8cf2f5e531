// Package sizing converts a risk budget into a tradable option quantity.
// Risk-first: the quantity is whatever keeps the loss at the stop inside the
// budget, never the other way around.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantvx/options-scalp-bot/internal/expiry"
)

// ErrInvalidSizingInput signals that a trade cannot be sized safely and must
// be skipped: zero risk distance, or a quantity that rounds to zero.
var ErrInvalidSizingInput = errors.New("invalid sizing input")

// ErrStopTooWide signals that the stop distance exceeds the configured
// maximum; risking that much premium per unit is never worth it.
var ErrStopTooWide = errors.New("stop distance too wide")

// Calculator computes position sizes from account risk parameters.
type Calculator struct {
	Capital     float64 // total trading capital
	LotSize     int     // contract lot multiple; quantity is floored to it
	MaxQuantity int     // hard cap on units per trade, 0 = uncapped

	// MaxStopPercent rejects trades whose stop is further than this fraction
	// of the entry premium (skip rather than widen the risk).
	MaxStopPercent float64
}

// NewCalculator returns a calculator with the given capital and lot size.
// A LotSize below 1 is treated as 1.
func NewCalculator(capital float64, lotSize int) *Calculator {
	if lotSize < 1 {
		lotSize = 1
	}
	return &Calculator{
		Capital:        capital,
		LotSize:        lotSize,
		MaxStopPercent: 0.10,
	}
}

// Result describes a sized trade.
type Result struct {
	Quantity         int // final units, a multiple of LotSize
	Lots             int
	CapitalAllocated float64 // entry premium x quantity
	MaxLoss          float64 // loss if the stop fills exactly
	StopPercent      float64 // stop distance as fraction of entry
	StopPrice        float64
	TargetPrice      float64
	RiskReward       float64
}

// Size computes the quantity for a trade entered at entryPrice with the given
// stop and target. riskBudget is the absolute currency amount the account is
// willing to lose; when a policy is supplied its RiskPercent re-derives the
// budget from capital and its PositionSizeFactor scales the raw quantity.
// Deterministic, no side effects.
func (c *Calculator) Size(entryPrice, stopPrice, targetPrice, riskBudget float64, policy *expiry.Policy) (Result, error) {
	if entryPrice <= 0 {
		return Result{}, fmt.Errorf("%w: entry price %.2f must be positive", ErrInvalidSizingInput, entryPrice)
	}

	riskPerUnit := math.Abs(entryPrice - stopPrice)
	if riskPerUnit == 0 {
		return Result{}, fmt.Errorf("%w: entry and stop are equal (%.2f)", ErrInvalidSizingInput, entryPrice)
	}

	stopPercent := riskPerUnit / entryPrice
	if c.MaxStopPercent > 0 && stopPercent > c.MaxStopPercent {
		return Result{}, fmt.Errorf("%w: %.1f%% > %.1f%%", ErrStopTooWide, stopPercent*100, c.MaxStopPercent*100)
	}

	sizeFactor := 1.0
	if policy != nil {
		if policy.RiskPercent > 0 && c.Capital > 0 {
			riskBudget = c.Capital * policy.RiskPercent
		}
		sizeFactor = policy.PositionSizeFactor
	}

	rawQuantity := riskBudget / riskPerUnit
	lots := int(rawQuantity * sizeFactor / float64(c.LotSize))
	quantity := lots * c.LotSize

	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: budget %.2f sizes below one lot of %d", ErrInvalidSizingInput, riskBudget, c.LotSize)
	}

	if c.MaxQuantity > 0 && quantity > c.MaxQuantity {
		quantity = (c.MaxQuantity / c.LotSize) * c.LotSize
		lots = quantity / c.LotSize
		if quantity <= 0 {
			return Result{}, fmt.Errorf("%w: max quantity %d below one lot of %d", ErrInvalidSizingInput, c.MaxQuantity, c.LotSize)
		}
	}

	maxLoss := float64(quantity) * riskPerUnit
	result := Result{
		Quantity:         quantity,
		Lots:             lots,
		CapitalAllocated: entryPrice * float64(quantity),
		MaxLoss:          maxLoss,
		StopPercent:      stopPercent,
		StopPrice:        stopPrice,
		TargetPrice:      targetPrice,
	}

	if targetPrice > 0 && maxLoss > 0 {
		result.RiskReward = float64(quantity) * math.Abs(targetPrice-entryPrice) / maxLoss
	}

	return result, nil
}
