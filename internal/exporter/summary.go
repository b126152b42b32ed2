package exporter

import (
	"sort"
	"time"

	"covidcli/internal/dataprocessing"
	"covidcli/pkg/contracts/domain"
)

// EntitySummary is the latest state of one entity of a slice
type EntitySummary struct {
	Key              string    `json:"key"`
	Name             string    `json:"name,omitempty"`
	FirstCaseDate    time.Time `json:"first_case_date"`
	LastDate         time.Time `json:"last_date"`
	Days             int       `json:"days"`
	CumulativeCases  int64     `json:"cumulative_cases"`
	CumulativeDeaths int64     `json:"cumulative_deaths"`
	NewCases         int64     `json:"new_cases"`
	NewDeaths        int64     `json:"new_deaths"`
	// FatalityRate is deaths per 100 cases
	FatalityRate float64 `json:"fatality_rate"`
	// ContaminationDays of the last row, one per slice threshold
	ContaminationDays []int `json:"contamination_days"`
}

var summaryHeaders = []string{
	"chave", "nome", "primeiroCaso", "ultimaData", "dias",
	"casosAcumulado", "obitosAcumulado", "casosNovos", "obitosNovos", "letalidade",
}

// Summarize returns one summary per entity, sorted by descending
// cumulative cases.
func Summarize(s dataprocessing.Slice) []EntitySummary {
	summaries := make([]EntitySummary, 0, len(s.Keys))
	for _, key := range s.Keys {
		entity := s.Entity(key)
		last, ok := entity.Last()
		if !ok {
			continue
		}

		sum := EntitySummary{
			Key:               key,
			Name:              entityName(last),
			LastDate:          last.Date,
			Days:              entity.Len(),
			CumulativeCases:   last.CumulativeCases,
			CumulativeDeaths:  last.CumulativeDeaths,
			NewCases:          last.NewCases,
			NewDeaths:         last.NewDeaths,
			ContaminationDays: append([]int(nil), last.Contamination...),
		}
		if first, err := dataprocessing.ThresholdDate(dataprocessing.NewTable(recordsOf(entity)), 0); err == nil {
			sum.FirstCaseDate = first
		}
		if last.CumulativeCases > 0 {
			sum.FatalityRate = 100 * float64(last.CumulativeDeaths) / float64(last.CumulativeCases)
		}
		summaries = append(summaries, sum)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CumulativeCases > summaries[j].CumulativeCases
	})
	return summaries
}

// SummaryHeaders returns the summary columns for a slice with the given
// contamination thresholds
func SummaryHeaders(thresholds []int) []string {
	headers := append([]string(nil), summaryHeaders...)
	for _, t := range thresholds {
		headers = append(headers, string(domain.ContaminationColumn(t)))
	}
	return headers
}

// Strings renders the summary in SummaryHeaders order
func (sum EntitySummary) Strings() []string {
	row := []string{
		sum.Key,
		sum.Name,
		formatDate(sum.FirstCaseDate),
		formatDate(sum.LastDate),
		formatInt(int64(sum.Days)),
		formatInt(sum.CumulativeCases),
		formatInt(sum.CumulativeDeaths),
		formatInt(sum.NewCases),
		formatInt(sum.NewDeaths),
		formatFloat(sum.FatalityRate),
	}
	for _, d := range sum.ContaminationDays {
		row = append(row, formatInt(int64(d)))
	}
	return row
}

// ExportSummary writes the entity summaries of s as a CSV file
func (e *SliceExporter) ExportSummary(s dataprocessing.Slice, filePath string) (string, error) {
	summaries := Summarize(s)

	records := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		records = append(records, sum.Strings())
	}

	return e.csvWriter.WriteSimpleCSV(filePath, SummaryHeaders(s.Thresholds), records)
}

func entityName(row dataprocessing.Row) string {
	switch {
	case row.City != "":
		return row.City
	case row.State != "":
		return row.State
	}
	return row.Region
}

func recordsOf(s dataprocessing.Slice) []domain.Record {
	out := make([]domain.Record, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Record
	}
	return out
}
