// README: Money rounding shared by quote totals; amounts are whole currency units in int64.
package types

import "math"

// RoundUnit rounds to the nearest whole currency unit, halves away from zero.
func RoundUnit(v float64) int64 {
	return int64(math.Round(v))
}
