// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package qc

import (
	"math"
	"strconv"
)

// DBRound rounds v to the number of decimal places the database's float
// columns retain at that magnitude, so a value read back from the database
// compares equal to the freshly scraped one.
func DBRound(v float64) float64 {
	switch {
	case v > 99999:
		return Round(v, 0)
	case v > 9999:
		return Round(v, 1)
	case v > 999:
		return Round(v, 2)
	case v > 99:
		return Round(v, 3)
	case v > 9:
		return Round(v, 4)
	default:
		return Round(v, 5)
	}
}

// Round rounds the exact binary value of v to places decimal digits,
// breaking exact ties to even. Round(2.675, 2) is 2.67 because the stored
// double is slightly below 2.675.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
