package shared

import "github.com/shopspring/decimal"

// Epsilon is the tolerance applied to balance and amount-consistency checks,
// in currency units.
const Epsilon = 0.01

// Round2 rounds a currency amount to two decimal places using exact decimal
// arithmetic, avoiding float accumulation drift.
func Round2(v float64) float64 {
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// Sum2 adds currency amounts exactly and rounds the result to two places.
func Sum2(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	out, _ := total.Round(2).Float64()
	return out
}

// WithinEpsilon reports whether two amounts agree within Epsilon.
func WithinEpsilon(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(Epsilon))
}

// Balanced reports whether total debits and credits agree within Epsilon.
func Balanced(debits, credits float64) bool {
	return WithinEpsilon(debits, credits)
}
