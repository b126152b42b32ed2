package dataprocessing

import (
	"log/slog"
	"time"

	"covidcli/pkg/contracts/domain"
)

// Row is one record of a slice together with its contamination-day values,
// aligned with Slice.Thresholds.
type Row struct {
	domain.Record
	Contamination []int
}

// Duplicate describes a row dropped because its entity already had a row
// for the same date.
type Duplicate struct {
	Key  string
	Date time.Time
}

// Slice is the derived view of one granularity. Rows are grouped by entity
// in first-seen order and sorted by date inside each entity. Columns lists
// the columns kept at this granularity, derived columns included, in output
// order.
type Slice struct {
	Granularity domain.Granularity
	Columns     []domain.Column
	Thresholds  []int
	Rows        []Row
	Keys        []string
	Duplicates  []Duplicate
}

// Len returns the number of rows.
func (s Slice) Len() int {
	return len(s.Rows)
}

// Option configures a slice builder
type Option func(*buildOptions)

type buildOptions struct {
	logger     *slog.Logger
	thresholds []int
}

// WithLogger sets the logger that receives duplicate-date warnings
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithThresholds replaces the contamination thresholds attached to each row.
// Values below 1 become DefaultMinCases, so the column name always matches
// the threshold actually applied.
func WithThresholds(thresholds ...int) Option {
	return func(o *buildOptions) {
		if len(thresholds) == 0 {
			return
		}
		o.thresholds = make([]int, len(thresholds))
		for i, n := range thresholds {
			if n < 1 {
				n = DefaultMinCases
			}
			o.thresholds[i] = n
		}
	}
}

func newBuildOptions(opts []Option) buildOptions {
	o := buildOptions{
		logger:     slog.Default(),
		thresholds: DefaultThresholds,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
