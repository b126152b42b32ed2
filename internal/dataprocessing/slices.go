package dataprocessing

import (
	"fmt"
	"strings"

	apperrors "covidcli/internal/errors"
	"covidcli/pkg/contracts/domain"
)

// NationKey is the entity key of the single national series.
const NationKey = "BR"

// seriesColumns are kept at every granularity.
var seriesColumns = []domain.Column{
	domain.ColDate,
	domain.ColEpiWeek,
	domain.ColPopulation,
	domain.ColCumulativeCases,
	domain.ColNewCases,
	domain.ColCumulativeDeaths,
	domain.ColNewDeaths,
	domain.ColNewRecovered,
	domain.ColUnderFollowUp,
	domain.ColWeekday,
}

// stateColumns identify a state.
var stateColumns = []domain.Column{domain.ColRegion, domain.ColState, domain.ColStateCode}

// cityColumns identify a city.
var cityColumns = []domain.Column{
	domain.ColRegion, domain.ColState, domain.ColCity, domain.ColStateCode,
	domain.ColCityCode, domain.ColHealthRegionCode, domain.ColHealthRegionName,
	domain.ColMetropolitan,
}

// BuildNation derives the national series: rows whose region is the whole
// country, one per date, with daily deltas and contamination days.
// Region, state and city columns are dropped. A threshold the series never
// reaches yields a zero contamination column rather than an error; use
// ThresholdDate to detect it.
func BuildNation(records []domain.Record, opts ...Option) Slice {
	o := newBuildOptions(opts)
	national := filter(records, domain.Record.IsNational)

	p := entityProcessor{
		granularity: domain.GranularityNation,
		key:         func(domain.Record) string { return NationKey },
		opts:        o,
	}
	return p.slice(national, nil)
}

// BuildStates derives every state total in isolation and concatenates the
// states in the order they first appear. City columns are dropped. A state
// below a threshold gets zeros in that contamination column.
func BuildStates(records []domain.Record, opts ...Option) Slice {
	o := newBuildOptions(opts)

	p := entityProcessor{
		granularity: domain.GranularityState,
		key:         func(r domain.Record) string { return r.State },
		opts:        o,
	}
	return p.slice(AllStateRecords(records), stateColumns)
}

// BuildState derives a single state. It fails with a not-found error when
// the dataset has no total for uf.
func BuildState(records []domain.Record, uf string, opts ...Option) (Slice, error) {
	rows := StateRecords(records, uf)
	if len(rows) == 0 {
		return Slice{}, apperrors.NewNotFoundError(fmt.Sprintf("state %s", uf)).WithContext("uf", uf)
	}
	return BuildStates(rows, opts...), nil
}

// BuildCities derives every city, optionally restricted to one state when
// uf is not empty. Cities are keyed by municipality code.
func BuildCities(records []domain.Record, uf string, opts ...Option) Slice {
	o := newBuildOptions(opts)

	uf = normalizeUF(uf)
	cities := filter(records, func(r domain.Record) bool {
		return r.IsCity() && (uf == "" || r.State == uf)
	})

	p := entityProcessor{
		granularity: domain.GranularityCity,
		key:         func(r domain.Record) string { return r.CityCode },
		opts:        o,
	}
	return p.slice(cities, cityColumns)
}

// BuildCity derives one city by municipality code.
func BuildCity(records []domain.Record, code string, opts ...Option) (Slice, error) {
	code = strings.TrimSpace(code)
	rows := filter(records, func(r domain.Record) bool { return r.CityCode == code })
	if len(rows) == 0 {
		return Slice{}, apperrors.NewNotFoundError(fmt.Sprintf("city %s", code)).WithContext("codmun", code)
	}
	return BuildCities(rows, "", opts...), nil
}

// AllStateRecords returns a copy of the state-total rows: a state is named
// and no city code is present.
func AllStateRecords(records []domain.Record) []domain.Record {
	return filter(records, domain.Record.IsStateTotal)
}

// StateRecords returns a copy of the state-total rows of one state.
func StateRecords(records []domain.Record, uf string) []domain.Record {
	uf = normalizeUF(uf)
	return filter(records, func(r domain.Record) bool {
		return r.IsStateTotal() && r.State == uf
	})
}

func (p entityProcessor) slice(records []domain.Record, identifying []domain.Column) Slice {
	rows, keys, duplicates := p.process(records)

	columns := make([]domain.Column, 0, len(identifying)+len(seriesColumns)+len(p.opts.thresholds))
	columns = append(columns, identifying...)
	columns = append(columns, seriesColumns...)
	for _, minCases := range p.opts.thresholds {
		columns = append(columns, domain.ContaminationColumn(minCases))
	}

	return Slice{
		Granularity: p.granularity,
		Columns:     columns,
		Thresholds:  p.opts.thresholds,
		Rows:        rows,
		Keys:        keys,
		Duplicates:  duplicates,
	}
}

func filter(records []domain.Record, keep func(domain.Record) bool) []domain.Record {
	out := make([]domain.Record, 0)
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func normalizeUF(uf string) string {
	return strings.ToUpper(strings.TrimSpace(uf))
}
