package utils

import (
	"math"
)

// RoundMoney rounds half away from zero to two decimals.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}
