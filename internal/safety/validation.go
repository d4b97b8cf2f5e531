package safety

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/quantvx/options-scalp-bot/pkg/types"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

// Validator provides defensive validation methods for market data and orders
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePremium validates an option premium value
func (v *Validator) ValidatePremium(premium float64, symbol string) ValidationResult {
	if math.IsNaN(premium) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid premium for %s: premium is NaN", symbol),
			Code:    "INVALID_PREMIUM_NAN",
		}
	}

	if math.IsInf(premium, 0) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid premium for %s: premium is infinite", symbol),
			Code:    "INVALID_PREMIUM_INF",
		}
	}

	if premium <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid premium %.4f for %s: premium must be positive", premium, symbol),
			Code:    "INVALID_PREMIUM_NEGATIVE",
		}
	}

	// An option premium above the typical index level is a data error
	if premium > 1e6 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("suspicious premium %.2f for %s: exceeds reasonable bounds", premium, symbol),
			Code:    "PREMIUM_OUT_OF_BOUNDS",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateSnapshot validates a full option snapshot before it reaches the
// decision engines.
func (v *Validator) ValidateSnapshot(snap types.OptionSnapshot) ValidationResult {
	if result := v.ValidatePremium(snap.Price, snap.Symbol); !result.Valid {
		return result
	}

	if snap.Bid <= 0 || snap.Ask <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("empty book for %s: bid %.2f ask %.2f", snap.Symbol, snap.Bid, snap.Ask),
			Code:    "BOOK_EMPTY",
		}
	}

	if snap.Bid > snap.Ask {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("crossed book for %s: bid %.2f > ask %.2f", snap.Symbol, snap.Bid, snap.Ask),
			Code:    "BOOK_CROSSED",
		}
	}

	if result := v.ValidateGreeks(snap.Greeks, snap.Symbol); !result.Valid {
		return result
	}

	return ValidationResult{Valid: true}
}

// ValidateGreeks validates exchange-reported Greeks
func (v *Validator) ValidateGreeks(g types.Greeks, symbol string) ValidationResult {
	for name, val := range map[string]float64{
		"delta": g.Delta, "gamma": g.Gamma, "theta": g.Theta, "vega": g.Vega, "iv": g.ImpliedVol,
	} {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("invalid %s for %s: not a finite number", name, symbol),
				Code:    "GREEK_NOT_FINITE",
			}
		}
	}

	if g.Delta < -1 || g.Delta > 1 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("delta %.4f for %s out of [-1, 1]", g.Delta, symbol),
			Code:    "DELTA_OUT_OF_RANGE",
		}
	}

	if g.Gamma < 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("negative gamma %.6f for %s", g.Gamma, symbol),
			Code:    "GAMMA_NEGATIVE",
		}
	}

	if g.ImpliedVol < 0 || g.ImpliedVol > 500 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("implied vol %.2f%% for %s out of bounds", g.ImpliedVol, symbol),
			Code:    "IV_OUT_OF_RANGE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateQuantity validates an order quantity against the contract lot size
func (v *Validator) ValidateQuantity(quantity, lotSize int, symbol string) ValidationResult {
	if quantity <= 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("invalid quantity %d for %s: quantity must be positive", quantity, symbol),
			Code:    "INVALID_QUANTITY_NEGATIVE",
		}
	}

	if lotSize > 0 && quantity%lotSize != 0 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("quantity %d for %s is not a multiple of lot size %d", quantity, symbol, lotSize),
			Code:    "QUANTITY_NOT_LOT_MULTIPLE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateSymbol validates an option symbol format
func (v *Validator) ValidateSymbol(symbol string) ValidationResult {
	if symbol == "" {
		return ValidationResult{
			Valid:   false,
			Message: "symbol cannot be empty",
			Code:    "SYMBOL_EMPTY",
		}
	}

	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 3 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too short: minimum 3 characters required", symbol),
			Code:    "SYMBOL_TOO_SHORT",
		}
	}

	if len(symbol) > 32 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("symbol '%s' too long: maximum 32 characters allowed", symbol),
			Code:    "SYMBOL_TOO_LONG",
		}
	}

	for _, char := range symbol {
		if !((char >= 'A' && char <= 'Z') || (char >= 'a' && char <= 'z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '.') {
			return ValidationResult{
				Valid:   false,
				Message: fmt.Sprintf("symbol '%s' contains invalid characters", symbol),
				Code:    "SYMBOL_INVALID_CHARS",
			}
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateTimestamp validates a snapshot timestamp for reasonable bounds
func (v *Validator) ValidateTimestamp(timestamp time.Time, context string) ValidationResult {
	now := time.Now()

	if timestamp.IsZero() {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s timestamp is zero", context),
			Code:    "TIMESTAMP_ZERO",
		}
	}

	if timestamp.Before(now.AddDate(0, 0, -1)) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s timestamp %v is too old", context, timestamp),
			Code:    "TIMESTAMP_TOO_OLD",
		}
	}

	if timestamp.After(now.Add(time.Hour)) {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("%s timestamp %v is too far in the future", context, timestamp),
			Code:    "TIMESTAMP_FUTURE",
		}
	}

	return ValidationResult{Valid: true}
}

// ValidateOrderID validates an order ID format
func (v *Validator) ValidateOrderID(orderID string) ValidationResult {
	if orderID == "" {
		return ValidationResult{
			Valid:   false,
			Message: "order ID cannot be empty",
			Code:    "ORDER_ID_EMPTY",
		}
	}

	orderID = strings.TrimSpace(orderID)
	if len(orderID) < 5 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("order ID '%s' too short: minimum 5 characters expected", orderID),
			Code:    "ORDER_ID_TOO_SHORT",
		}
	}

	if len(orderID) > 100 {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("order ID '%s' too long: maximum 100 characters allowed", orderID),
			Code:    "ORDER_ID_TOO_LONG",
		}
	}

	return ValidationResult{Valid: true}
}

// SafeDivision performs division with zero-check
func (v *Validator) SafeDivision(dividend, divisor float64) (float64, error) {
	if divisor == 0 {
		return 0, fmt.Errorf("division by zero: %.8f / %.8f", dividend, divisor)
	}

	if math.IsNaN(dividend) || math.IsNaN(divisor) {
		return 0, fmt.Errorf("division with NaN: %.8f / %.8f", dividend, divisor)
	}

	if math.IsInf(dividend, 0) || math.IsInf(divisor, 0) {
		return 0, fmt.Errorf("division with infinity: %.8f / %.8f", dividend, divisor)
	}

	result := dividend / divisor

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("division resulted in invalid value: %.8f / %.8f = %.8f",
			dividend, divisor, result)
	}

	return result, nil
}
