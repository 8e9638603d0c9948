// Package shared holds line-amount arithmetic used by both bills and invoices.
package shared

import (
	"github.com/shopspring/decimal"

	ledger "github.com/harborbooks/harborbooks/internal/ledger/shared"
)

// LineAmount computes quantity × unit price rounded to two decimal places.
func LineAmount(quantity, unitPrice float64) float64 {
	amount := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice))
	out, _ := amount.Round(2).Float64()
	return out
}

// AmountConsistent reports whether a stated line amount agrees with
// quantity × unit price within the 0.01 tolerance.
func AmountConsistent(amount, quantity, unitPrice float64) bool {
	return ledger.WithinEpsilon(amount, LineAmount(quantity, unitPrice))
}

// Total sums line amounts plus tax and tip exactly, rounded to two places.
func Total(lineAmounts []float64, tax, tip float64) float64 {
	total := decimal.NewFromFloat(tax).Add(decimal.NewFromFloat(tip))
	for _, amt := range lineAmounts {
		total = total.Add(decimal.NewFromFloat(amt))
	}
	out, _ := total.Round(2).Float64()
	return out
}

// Remaining returns the unpaid balance, never negative.
func Remaining(total, paid float64) float64 {
	diff := decimal.NewFromFloat(total).Sub(decimal.NewFromFloat(paid))
	if diff.IsNegative() {
		return 0
	}
	out, _ := diff.Round(2).Float64()
	return out
}
