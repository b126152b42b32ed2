package dataprocessing

import (
	"log/slog"
	"sort"

	"covidcli/pkg/contracts/domain"
)

// entityProcessor derives the rows of one granularity
type entityProcessor struct {
	granularity domain.Granularity
	key         func(domain.Record) string
	opts        buildOptions
}

// process partitions records by entity, derives every entity on its own and
// concatenates the results in first-seen entity order. Input records are
// never modified.
func (p entityProcessor) process(records []domain.Record) ([]Row, []string, []Duplicate) {
	keys, groups := partition(records, p.key)

	var (
		rows       = make([]Row, 0, len(records))
		duplicates []Duplicate
	)
	for _, key := range keys {
		derived, dups := p.derive(key, groups[key])
		rows = append(rows, derived...)
		duplicates = append(duplicates, dups...)
	}
	return rows, keys, duplicates
}

// derive sorts one entity by date, drops repeated dates and attaches the
// daily deltas and contamination days
func (p entityProcessor) derive(key string, group []domain.Record) ([]Row, []Duplicate) {
	sorted := make([]domain.Record, len(group))
	copy(sorted, group)
	// stable, so the first occurrence of a date stays first
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	unique, duplicates := p.dedupe(key, sorted)
	dailyDeltas(unique)

	table := Table{Index: DateColumn, Records: unique}
	contamination := make([][]int, len(p.opts.thresholds))
	for i, minCases := range p.opts.thresholds {
		contamination[i] = ContaminationDays(table, minCases)
	}

	rows := make([]Row, len(unique))
	for i, r := range unique {
		days := make([]int, len(p.opts.thresholds))
		for j := range p.opts.thresholds {
			days[j] = contamination[j][i]
		}
		rows[i] = Row{Record: r, Contamination: days}
	}
	return rows, duplicates
}

// dedupe keeps the first row of every date of a date-sorted entity
func (p entityProcessor) dedupe(key string, sorted []domain.Record) ([]domain.Record, []Duplicate) {
	if len(sorted) == 0 {
		return sorted, nil
	}

	var duplicates []Duplicate
	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := out[len(out)-1]
		if r.Date.Equal(last.Date) {
			duplicates = append(duplicates, Duplicate{Key: key, Date: r.Date})
			p.opts.logger.Warn("duplicate date dropped",
				slog.String("granularity", string(p.granularity)),
				slog.String("key", key),
				slog.String("date", r.DateKey()))
			continue
		}
		out = append(out, r)
	}
	return out, duplicates
}

// dailyDeltas rewrites the daily new cases and deaths of a date-sorted
// entity as the first difference of the cumulative counts
func dailyDeltas(records []domain.Record) {
	var prevCases, prevDeaths int64
	for i := range records {
		records[i].NewCases = records[i].CumulativeCases - prevCases
		records[i].NewDeaths = records[i].CumulativeDeaths - prevDeaths
		prevCases = records[i].CumulativeCases
		prevDeaths = records[i].CumulativeDeaths
	}
}

// partition groups records by key, remembering the order keys first appear
func partition(records []domain.Record, key func(domain.Record) string) ([]string, map[string][]domain.Record) {
	var keys []string
	groups := make(map[string][]domain.Record)
	for _, r := range records {
		k := key(r)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	return keys, groups
}
