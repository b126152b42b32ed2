package dataprocessing

import (
	"sort"
	"time"

	"covidcli/pkg/contracts/domain"
)

// DateIndex tells where a table keeps the date of each row.
type DateIndex int

const (
	// DateColumn tables carry the date as an ordinary column. Several
	// entities may share a date and rows are in no particular order.
	DateColumn DateIndex = iota
	// DateKey tables are keyed by date: one row per date, in key order.
	DateKey
)

func (d DateIndex) String() string {
	switch d {
	case DateColumn:
		return "column"
	case DateKey:
		return "key"
	}
	return "unknown"
}

// Table is an in-memory view of the dataset together with its date
// representation, fixed when the table is built.
type Table struct {
	Index   DateIndex
	Records []domain.Record
}

// NewTable wraps records whose date is a column.
func NewTable(records []domain.Record) Table {
	return Table{Index: DateColumn, Records: records}
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Records)
}

// Dates returns the row dates in row order.
func (t Table) Dates() []time.Time {
	out := make([]time.Time, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Date
	}
	return out
}

// AggregateByDate sums every count per date and returns a DateKey table in
// ascending date order. Identifying columns are left empty since the rows
// no longer belong to a single region.
func AggregateByDate(records []domain.Record) Table {
	byDate := make(map[time.Time]*domain.Record)
	keys := make([]time.Time, 0)

	for _, r := range records {
		agg, ok := byDate[r.Date]
		if !ok {
			agg = &domain.Record{
				Date:    r.Date,
				EpiWeek: r.EpiWeek,
				Weekday: domain.WeekdayName(r.Date),
			}
			byDate[r.Date] = agg
			keys = append(keys, r.Date)
		}
		agg.Population += r.Population
		agg.CumulativeCases += r.CumulativeCases
		agg.NewCases += r.NewCases
		agg.CumulativeDeaths += r.CumulativeDeaths
		agg.NewDeaths += r.NewDeaths
		agg.NewRecovered += r.NewRecovered
		agg.UnderFollowUp += r.UnderFollowUp
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make([]domain.Record, len(keys))
	for i, k := range keys {
		out[i] = *byDate[k]
	}
	return Table{Index: DateKey, Records: out}
}
