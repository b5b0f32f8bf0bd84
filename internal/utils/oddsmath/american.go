package oddsmath

import (
	"fmt"
	"math"
)

// ImpliedProbability converts American odds to implied probability.
// +120 → 100/220 = 0.4545, -110 → 110/210 = 0.5238
func ImpliedProbability(american float64) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	if american > 0 {
		return 100.0 / (american + 100.0), nil
	}
	abs := math.Abs(american)
	return abs / (abs + 100.0), nil
}

// AmericanToDecimal +150 → 2.50, -150 → 1.67
func AmericanToDecimal(american float64) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}
	if american > 0 {
		return american/100.0 + 1.0, nil
	}
	return 100.0/math.Abs(american) + 1.0, nil
}

// ImpliedSum sums the implied probabilities of two opposing prices.
func ImpliedSum(a, b float64) (float64, error) {
	pa, err := ImpliedProbability(a)
	if err != nil {
		return 0, err
	}
	pb, err := ImpliedProbability(b)
	if err != nil {
		return 0, err
	}
	return pa + pb, nil
}

// IsArbitrage reports whether an implied sum leaves a guaranteed margin below threshold.
func IsArbitrage(impliedSum, threshold float64) bool {
	return impliedSum > 0 && impliedSum < threshold
}

// ProfitPercent (1 - sum) * 100
func ProfitPercent(impliedSum float64) float64 {
	return (1.0 - impliedSum) * 100.0
}
