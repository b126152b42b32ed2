package validation

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidcli/internal/errors"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func TestRecordValidator_FixtureIsValid(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	v := NewRecordValidator(logger)

	report := v.ValidateRecords(testutil.Dataset())

	assert.Equal(t, report.Rows, report.Valid)
	assert.Empty(t, report.Issues)
	testutil.AssertNoWarnings(t, handler)
}

func TestRecordValidator_Validate(t *testing.T) {
	day := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	valid := domain.Record{Region: "Sudeste", State: "SP", Date: day, CumulativeCases: 10, CumulativeDeaths: 1}

	tests := []struct {
		name      string
		mutate    func(r *domain.Record)
		wantField string
	}{
		{"valid", func(*domain.Record) {}, ""},
		{"missing region", func(r *domain.Record) { r.Region = "" }, "regiao"},
		{"missing date", func(r *domain.Record) { r.Date = time.Time{} }, "data"},
		{"negative cases", func(r *domain.Record) { r.CumulativeCases = -1; r.CumulativeDeaths = 0 }, "casosAcumulado"},
		{"city without state", func(r *domain.Record) { r.State = ""; r.CityCode = "350950" }, "estado"},
		{"national row with state", func(r *domain.Record) { r.Region = domain.NationalRegion }, "estado"},
		{"more deaths than cases", func(r *domain.Record) { r.CumulativeDeaths = 11 }, "obitosAcumulado"},
	}

	v := NewRecordValidator(slog.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)

			err := v.Validate(r)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestRecordValidator_ReportsInvalidRows(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	v := NewRecordValidator(logger)

	records := testutil.NationalRecords()[:5]
	records[2].Region = ""
	records[4].CumulativeCases = -7

	report := v.ValidateRecords(records)

	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 3, report.Valid)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, 2, report.Issues[0].Row)
	assert.Equal(t, "regiao", report.Issues[0].Field)
	assert.Equal(t, 4, report.Issues[1].Row)

	testutil.AssertLogContains(t, handler, slog.LevelWarn, "dataset rows failed validation")
	testutil.AssertLogAttr(t, handler, "invalid", int64(2))
}
