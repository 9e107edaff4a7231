// Package money represents monetary amounts as integer cents. No floats are
// stored; floats appear only at the reporting boundary, rounded explicitly.
package money

import "math"

// Cents is a USD amount in minor units.
type Cents int64

// FromDollars converts a two-decimal dollar amount to cents.
func FromDollars(v float64) Cents {
	return Cents(math.Round(v * 100))
}

// Dollars renders the amount as a two-decimal float for report output.
func (c Cents) Dollars() float64 {
	return Round2(float64(c) / 100)
}

// ClampZero floors the amount at zero. Computed negatives (overpayment)
// never surface.
func (c Cents) ClampZero() Cents {
	if c < 0 {
		return 0
	}
	return c
}

// Round2 rounds to two decimals (monetary outputs).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal (percentages).
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Percent computes 100*num/den with the division-by-zero guard max(1, den),
// rounded to one decimal.
func Percent(num, den float64) float64 {
	return Round1(100 * num / math.Max(1, den))
}
