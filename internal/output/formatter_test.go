package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/dataprocessing"
	"covidcli/internal/exporter"
	"covidcli/internal/services"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

func nationResult(stale bool) *services.SliceResult {
	return &services.SliceResult{
		Meta: services.Meta{
			Stale:      stale,
			SourceDate: testutil.FixtureDate(testutil.FixtureDays - 1),
			Rows:       len(testutil.Dataset()),
		},
		Slice: dataprocessing.BuildNation(testutil.NationalRecords()),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"CSV", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSliceCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, FormatCSV).Slice(nationResult(true), 3))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, string(domain.ColRegion), rows[0][0])
	assert.Equal(t, "Brasil", rows[1][0])
	assert.NotContains(t, buf.String(), "STALE")
}

func TestSliceTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, FormatTable).Slice(nationResult(true), 2))

	out := buf.String()
	assert.Contains(t, out, "Brasil")
	assert.Contains(t, out, "2020-04-10")
	assert.Contains(t, out, "STALE")
	assert.NotContains(t, out, "2020-02-20")
}

func TestSliceJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, FormatJSON).Slice(nationResult(false), 0))

	var body struct {
		Granularity string                   `json:"granularity"`
		Stale       bool                     `json:"stale"`
		SourceDate  string                   `json:"source_date"`
		Count       int                      `json:"count"`
		Data        []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, "nation", body.Granularity)
	assert.False(t, body.Stale)
	assert.Equal(t, "2020-04-10", body.SourceDate)
	assert.Equal(t, testutil.FixtureDays, body.Count)
}

func TestThreshold(t *testing.T) {
	res := &services.ThresholdResult{
		Meta:  services.Meta{SourceDate: testutil.FixtureDate(testutil.FixtureDays - 1)},
		Key:   "BR",
		Cases: 100,
		Date:  time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, FormatCSV).Threshold(res))
	assert.Equal(t, "key,cases,date\nBR,100,2020-03-14\n", buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(&buf, FormatJSON).Threshold(res))
	assert.Contains(t, buf.String(), `"date": "2020-03-14"`)
}

func TestSummary(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	states := dataprocessing.BuildStates(testutil.Dataset(), dataprocessing.WithLogger(logger))
	res := &services.SummaryResult{
		Meta:        services.Meta{SourceDate: testutil.FixtureDate(testutil.FixtureDays - 1)},
		Granularity: domain.GranularityState,
		Thresholds:  states.Thresholds,
		Entities:    exporter.Summarize(states),
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf, FormatCSV).Summary(res))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exporter.SummaryHeaders(states.Thresholds), rows[0])
	assert.Equal(t, "SP", rows[1][0])
}

func TestPaths(t *testing.T) {
	var buf bytes.Buffer
	res := &services.ExportResult{Paths: []string{"/tmp/a.csv", "/tmp/b.csv"}}
	require.NoError(t, NewFormatter(&buf, FormatTable).Paths(res))
	assert.Equal(t, "/tmp/a.csv\n/tmp/b.csv\n", buf.String())
}
