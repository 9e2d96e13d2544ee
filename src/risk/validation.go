package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// MaxShortQuantityPerOrder bounds |quantity| of a single short order.
const MaxShortQuantityPerOrder = 10000

// ValidationResult carries a rejection message that callers surface verbatim.
// A valid result may still carry a Warning.
type ValidationResult struct {
	Valid   bool
	Error   string
	Warning string
	Margin  *MarginInfo
}

func invalid(msg string) ValidationResult {
	return ValidationResult{Valid: false, Error: msg}
}

// ValidateQuantity checks quantity against the current position for the
// given action. A negative SELL quantity opens a short; a BUY against a
// negative position covers it.
func ValidateQuantity(quantity decimal.Decimal, action Action, current decimal.Decimal) ValidationResult {
	if quantity.IsZero() {
		return invalid("Quantity cannot be zero")
	}

	switch {
	case action == ActionSell && quantity.IsNegative():
		abs := quantity.Abs()
		if abs.GreaterThan(decimal.NewFromInt(MaxShortQuantityPerOrder)) {
			return invalid(fmt.Sprintf("Short quantity too large: %s exceeds maximum %d", abs, MaxShortQuantityPerOrder))
		}
		return ValidationResult{Valid: true}

	case action == ActionBuy && current.IsNegative():
		short := current.Abs()
		if quantity.GreaterThan(short) {
			return invalid(fmt.Sprintf("Cover quantity (%s) cannot exceed short quantity (%s)", quantity, short))
		}
		if !quantity.IsPositive() {
			return invalid("Cover quantity must be positive")
		}
		return ValidationResult{Valid: true}

	case action == ActionSell && current.IsPositive():
		if quantity.GreaterThan(current) {
			return invalid(fmt.Sprintf("Sell quantity (%s) cannot exceed long quantity (%s)", quantity, current))
		}
		return ValidationResult{Valid: true}

	case action == ActionBuy:
		if !quantity.IsPositive() {
			return invalid("Buy quantity must be positive for opening long position")
		}
		return ValidationResult{Valid: true}
	}

	return ValidationResult{Valid: true}
}
