package services

import (
	"fmt"
	"math"
)

// CommissionSplit is the result of dividing a gross sale amount between
// the platform and the tutor. Amounts are in minor units and always sum
// to the gross amount exactly.
type CommissionSplit struct {
	Commission int64 `json:"commission"`
	Earnings   int64 `json:"earnings"`
}

// SplitCommission computes the platform commission and tutor earnings for
// a sale. The commission is rounded half-up to the minor unit; earnings
// absorb the remainder so that commission + earnings == gross. The rate
// must be the snapshot captured on the sale record at purchase time.
func SplitCommission(grossMinor int64, ratePercent float64) (CommissionSplit, error) {
	if grossMinor <= 0 {
		return CommissionSplit{}, fmt.Errorf("gross amount must be positive, got %d", grossMinor)
	}
	if ratePercent < 0 || ratePercent > 100 {
		return CommissionSplit{}, fmt.Errorf("commission rate must be between 0 and 100, got %v", ratePercent)
	}

	commission := int64(math.Floor(float64(grossMinor)*ratePercent/100 + 0.5))
	if commission > grossMinor {
		commission = grossMinor
	}

	return CommissionSplit{
		Commission: commission,
		Earnings:   grossMinor - commission,
	}, nil
}
