package dataprocessing

import (
	"strconv"

	"covidcli/pkg/contracts/domain"
)

// Headers returns the slice column names.
func (s Slice) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = string(c)
	}
	return out
}

// Value returns the text value of column c in row.
func (s Slice) Value(row Row, c domain.Column) string {
	if minCases, ok := domain.ParseContaminationColumn(c); ok {
		for i, t := range s.Thresholds {
			if t == minCases && i < len(row.Contamination) {
				return strconv.Itoa(row.Contamination[i])
			}
		}
		return ""
	}
	return row.Value(c)
}

// Strings renders every row as text in column order.
func (s Slice) Strings() [][]string {
	out := make([][]string, len(s.Rows))
	for i, row := range s.Rows {
		values := make([]string, len(s.Columns))
		for j, c := range s.Columns {
			values[j] = s.Value(row, c)
		}
		out[i] = values
	}
	return out
}

// Objects renders every row as a column-name map with typed values, ready
// for JSON encoding.
func (s Slice) Objects() []map[string]interface{} {
	out := make([]map[string]interface{}, len(s.Rows))
	for i, row := range s.Rows {
		obj := make(map[string]interface{}, len(s.Columns))
		for _, c := range s.Columns {
			obj[string(c)] = s.TypedValue(row, c)
		}
		out[i] = obj
	}
	return out
}

// TypedValue returns the value of column c in row as a number for count
// columns and as text otherwise.
func (s Slice) TypedValue(row Row, c domain.Column) interface{} {
	switch c {
	case domain.ColEpiWeek:
		return row.EpiWeek
	case domain.ColPopulation:
		return row.Population
	case domain.ColCumulativeCases:
		return row.CumulativeCases
	case domain.ColNewCases:
		return row.NewCases
	case domain.ColCumulativeDeaths:
		return row.CumulativeDeaths
	case domain.ColNewDeaths:
		return row.NewDeaths
	case domain.ColNewRecovered:
		return row.NewRecovered
	case domain.ColUnderFollowUp:
		return row.UnderFollowUp
	}
	if _, ok := domain.ParseContaminationColumn(c); ok {
		n, _ := strconv.Atoi(s.Value(row, c))
		return n
	}
	return s.Value(row, c)
}

// Entity returns the rows of one entity key, keeping the slice columns.
func (s Slice) Entity(key string) Slice {
	out := Slice{
		Granularity: s.Granularity,
		Columns:     s.Columns,
		Thresholds:  s.Thresholds,
	}
	for _, row := range s.Rows {
		if s.keyOf(row) == key {
			out.Rows = append(out.Rows, row)
		}
	}
	if len(out.Rows) > 0 {
		out.Keys = []string{key}
	}
	for _, d := range s.Duplicates {
		if d.Key == key {
			out.Duplicates = append(out.Duplicates, d)
		}
	}
	return out
}

func (s Slice) keyOf(row Row) string {
	switch s.Granularity {
	case domain.GranularityState:
		return row.State
	case domain.GranularityCity:
		return row.CityCode
	}
	return NationKey
}

// Last returns the most recent row of the slice. ok is false for an empty
// slice.
func (s Slice) Last() (row Row, ok bool) {
	for _, r := range s.Rows {
		if !ok || r.Date.After(row.Date) {
			row, ok = r, true
		}
	}
	return row, ok
}
