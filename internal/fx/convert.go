package fx

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNonPositiveRate is returned when a conversion is attempted with a zero
// or negative rate. Callers are expected to check rate validity first, so
// hitting this means a caller bug, not a data condition.
var ErrNonPositiveRate = errors.New("fx: rate must be positive")

// Convert expresses amount (denominated in the source currency) in the target
// currency: source → base → target, rounded to 2 fractional digits. All
// arithmetic is fixed-point decimal.
func Convert(amount, rateFromToBase, rateToToBase decimal.Decimal) (decimal.Decimal, error) {
	if !rateFromToBase.IsPositive() || !rateToToBase.IsPositive() {
		return decimal.Decimal{}, ErrNonPositiveRate
	}
	return amount.Div(rateFromToBase).Mul(rateToToBase).Round(2), nil
}
