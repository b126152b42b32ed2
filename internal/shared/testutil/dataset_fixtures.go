package testutil

import (
	"strconv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"covidcli/pkg/contracts/domain"
)

// FixtureStart is the first date of the fixture dataset.
var FixtureStart = time.Date(2020, 2, 20, 0, 0, 0, 0, time.UTC)

// FixtureDays is the number of dates in the fixture dataset
// (2020-02-20 through 2020-04-10).
const FixtureDays = 51

// FixtureCity is the municipality code of the single fixture city.
const FixtureCity = "350950"

// NationalCases returns the fixture's cumulative national case count on
// day i. Cases first exceed 0 on 2020-02-26, 100 on 2020-03-14 and 10000 on
// 2020-04-04.
func NationalCases(i int) int64 {
	switch {
	case i < 6:
		return 0
	case i < 23:
		return int64(i - 5)
	case i < 44:
		return int64(100 + (i-22)*400)
	default:
		return int64(10001 + (i-44)*1000)
	}
}

// StateCases returns cumulative counts for the two fixture states. SP
// starts on 2020-03-01 and RJ on 2020-03-06.
func StateCases(uf string, i int) int64 {
	switch uf {
	case "SP":
		if i < 10 {
			return 0
		}
		return int64((i - 9) * 10)
	case "RJ":
		if i < 15 {
			return 0
		}
		return int64((i - 14) * 7)
	}
	return 0
}

// CityCases returns cumulative counts for the fixture city, starting on
// 2020-03-11.
func CityCases(i int) int64 {
	if i < 20 {
		return 0
	}
	return int64((i - 19) * 2)
}

// FixtureDate returns the date of day i.
func FixtureDate(i int) time.Time {
	return FixtureStart.AddDate(0, 0, i)
}

// NationalRecords returns the national rows of the fixture in date order.
func NationalRecords() []domain.Record {
	out := make([]domain.Record, 0, FixtureDays)
	for i := 0; i < FixtureDays; i++ {
		out = append(out, record(domain.Record{
			Region:          domain.NationalRegion,
			Population:      210147125,
			CumulativeCases: NationalCases(i),
		}, i))
	}
	return out
}

// StateRecords returns SP and RJ state totals interleaved by date, SP first.
func StateRecords() []domain.Record {
	out := make([]domain.Record, 0, 2*FixtureDays)
	for i := 0; i < FixtureDays; i++ {
		out = append(out,
			record(domain.Record{
				Region: "Sudeste", State: "SP", StateCode: "35",
				Population: 45919049, CumulativeCases: StateCases("SP", i),
			}, i),
			record(domain.Record{
				Region: "Sudeste", State: "RJ", StateCode: "33",
				Population: 17264943, CumulativeCases: StateCases("RJ", i),
			}, i),
		)
	}
	return out
}

// CityRecords returns the rows of the fixture city.
func CityRecords() []domain.Record {
	out := make([]domain.Record, 0, FixtureDays)
	for i := 0; i < FixtureDays; i++ {
		out = append(out, record(domain.Record{
			Region: "Sudeste", State: "SP", StateCode: "35",
			City: "Campinas", CityCode: FixtureCity,
			HealthRegionCode: "35016", HealthRegionName: "CAMPINAS",
			Metropolitan: "1", Population: 1204073,
			CumulativeCases: CityCases(i),
		}, i))
	}
	return out
}

// Dataset returns the full fixture table in the order the published
// spreadsheet uses: nation, then states, then cities.
func Dataset() []domain.Record {
	var out []domain.Record
	out = append(out, NationalRecords()...)
	out = append(out, StateRecords()...)
	out = append(out, CityRecords()...)
	return out
}

func record(r domain.Record, i int) domain.Record {
	r.Date = FixtureDate(i)
	r.EpiWeek = epiWeek(r.Date)
	r.CumulativeDeaths = r.CumulativeCases / 20
	r.Weekday = domain.WeekdayName(r.Date)
	return r
}

// epiWeek is close enough to the epidemiological week for fixtures
func epiWeek(t time.Time) int {
	_, w := t.AddDate(0, 0, 1).ISOWeek()
	return w
}

// sourceColumns are the columns of the published spreadsheet, i.e. every
// record column except the weekday added on read.
var sourceColumns = domain.RecordColumns[:len(domain.RecordColumns)-1]

// WriteDatasetWorkbook writes records to an .xlsx file laid out like the
// published spreadsheet. Dates are written as text and codes as numbers,
// matching what the source does.
func WriteDatasetWorkbook(t *testing.T, path string, records []domain.Record) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet 1"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}

	for col, name := range sourceColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, string(name)); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}

	for row, r := range records {
		for col, name := range sourceColumns {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, workbookValue(r, name)); err != nil {
				t.Fatalf("write %s: %v", cell, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

func workbookValue(r domain.Record, c domain.Column) interface{} {
	switch c {
	case domain.ColEpiWeek:
		return r.EpiWeek
	case domain.ColPopulation:
		return r.Population
	case domain.ColCumulativeCases:
		return r.CumulativeCases
	case domain.ColNewCases:
		return r.NewCases
	case domain.ColCumulativeDeaths:
		return r.CumulativeDeaths
	case domain.ColNewDeaths:
		return r.NewDeaths
	case domain.ColNewRecovered:
		return r.NewRecovered
	case domain.ColUnderFollowUp:
		return r.UnderFollowUp
	case domain.ColCityCode, domain.ColStateCode:
		v := r.Value(c)
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return v
	}
	return r.Value(c)
}
