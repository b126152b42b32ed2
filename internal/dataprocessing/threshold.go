package dataprocessing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "covidcli/internal/errors"
	"covidcli/pkg/contracts/domain"
)

// ErrThresholdNotReached is returned, wrapped in an assertion error, when
// no row of a table has more cumulative cases than the requested threshold.
// Callers are expected never to ask for a threshold the table cannot reach.
var ErrThresholdNotReached = errors.New("no row exceeds the case threshold")

// ThresholdDate returns the earliest date whose cumulative case count is
// strictly greater than threshold.
func ThresholdDate(t Table, threshold int64) (time.Time, error) {
	qualifying := make([]domain.Record, 0, len(t.Records))
	for _, r := range t.Records {
		if r.CumulativeCases > threshold {
			qualifying = append(qualifying, r)
		}
	}

	if len(qualifying) == 0 {
		return time.Time{}, apperrors.NewAssertionError(
			fmt.Sprintf("no row has more than %d cumulative cases", threshold),
			ErrThresholdNotReached,
		).WithContext("threshold", threshold).WithContext("rows", len(t.Records))
	}

	switch t.Index {
	case DateColumn:
		// entities interleave, so the first qualifying row is not
		// necessarily the oldest
		sort.SliceStable(qualifying, func(i, j int) bool {
			return qualifying[i].Date.Before(qualifying[j].Date)
		})
		return qualifying[0].Date, nil
	case DateKey:
		first := qualifying[0].Date
		for _, r := range qualifying[1:] {
			if r.Date.Before(first) {
				first = r.Date
			}
		}
		return first, nil
	}

	return time.Time{}, apperrors.NewAssertionError(fmt.Sprintf("unknown date index %d", t.Index), nil)
}

// MustThresholdDate is like ThresholdDate but panics when the threshold is
// never reached.
func MustThresholdDate(t Table, threshold int64) time.Time {
	d, err := ThresholdDate(t, threshold)
	if err != nil {
		panic(err)
	}
	return d
}
