package dataprocessing

import (
	"errors"
)

// DefaultMinCases is the contamination threshold used when none is given.
const DefaultMinCases = 1

// DefaultThresholds are the contamination columns attached to every slice.
var DefaultThresholds = []int{1, 100}

// ContaminationDays numbers the rows of a date-sorted, unique-date table
// from the first date with at least minCases cumulative cases: rows before
// it get 0, that row gets 1, the next 2 and so on to the end of the table.
// A table that never reaches minCases yields all zeros. minCases below 1 is
// treated as DefaultMinCases.
func ContaminationDays(t Table, minCases int) []int {
	if minCases < 1 {
		minCases = DefaultMinCases
	}

	out := make([]int, t.Len())

	start, err := ThresholdDate(t, int64(minCases-1))
	if err != nil {
		if errors.Is(err, ErrThresholdNotReached) {
			return out
		}
		panic(err)
	}

	contaminated := 0
	for _, r := range t.Records {
		if !r.Date.Before(start) {
			contaminated++
		}
	}

	offset := len(out) - contaminated
	for i := 0; i < contaminated; i++ {
		out[offset+i] = i + 1
	}
	return out
}
