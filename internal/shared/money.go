package shared

import "github.com/shopspring/decimal"

// Epsilon is the tolerance used when comparing monetary amounts.
const Epsilon = 0.01

// Round2 rounds a monetary value half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Sub subtracts b from a without binary floating point drift.
func Sub(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}

// Add sums amounts without binary floating point drift.
func Add(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Split divides total into n parts of round2(total/n); the last part absorbs the
// rounding residue so that the parts always sum to total exactly.
func Split(total float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	whole := decimal.NewFromFloat(total)
	per := whole.Div(decimal.NewFromInt(int64(n))).Round(2)
	parts := make([]float64, n)
	for i := 0; i < n-1; i++ {
		parts[i] = per.InexactFloat64()
	}
	last := whole.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	parts[n-1] = last.InexactFloat64()
	return parts
}

// Numeric renders an amount for a NUMERIC(18,2) column.
func Numeric(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
