package dataprocessing

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	apperrors "covidcli/internal/errors"
	"covidcli/internal/shared/testutil"
)

func testParseOptions() ParseOptions {
	opts := DefaultParseOptions()
	opts.Logger = quietLogger()
	return opts
}

func TestParseExcelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.xlsx")
	want := testutil.Dataset()
	testutil.WriteDatasetWorkbook(t, path, want)

	got, err := ParseFile(path, testParseOptions())
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed records differ (-want +got):\n%s", diff)
	}
}

func TestParsedWorkbookThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.xlsx")
	testutil.WriteDatasetWorkbook(t, path, testutil.Dataset())

	records, err := ParseExcel(path, testParseOptions())
	require.NoError(t, err)

	raw, err := ThresholdDate(NewTable(records), 0)
	require.NoError(t, err)
	grouped, err := ThresholdDate(AggregateByDate(records), 0)
	require.NoError(t, err)

	assert.Equal(t, date(2020, 2, 26), raw)
	assert.Equal(t, raw, grouped)
}

func TestParseExcelMissingSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.xlsx")
	testutil.WriteDatasetWorkbook(t, path, testutil.NationalRecords())

	opts := testParseOptions()
	opts.Sheet = "Missing"
	_, err := ParseExcel(path, opts)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseExcelCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dados.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

	_, err := ParseFile(path, testParseOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

const csvHeader = "regiao;estado;municipio;coduf;codmun;codRegiaoSaude;nomeRegiaoSaude;data;semanaEpi;populacaoTCU2019;casosAcumulado;casosNovos;obitosAcumulado;obitosNovos;Recuperadosnovos;emAcompanhamentoNovos;interior/metropolitana\n"

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		opts      func(*ParseOptions)
		wantLen   int
		wantCity  string
		wantCases int64
		wantErr   apperrors.ErrorType
	}{
		{
			name: "header after title rows",
			input: "Painel Coronavirus\n\n" + csvHeader +
				"Sudeste;SP;Campinas;35;350950.0;35016;CAMPINAS;2020-03-11;11;1204073;2;2;0;0;;;1\n",
			wantLen:   1,
			wantCity:  "Campinas",
			wantCases: 2,
		},
		{
			name: "undated and blank rows are dropped",
			input: csvHeader +
				"Brasil;;;76;;;;2020-02-26;9;210147125;1;1;0;0;;;\n" +
				";;;;;;;;;;;;;;;;\n" +
				"Brasil;;;76;;;;;9;210147125;1;0;0;0;;;\n",
			wantLen:   1,
			wantCases: 1,
		},
		{
			name: "comma delimiter and serial dates",
			input: strings.ReplaceAll(csvHeader, ";", ",") +
				"Brasil,,,76,,,,43887,9,210147125,1,1,0,0,,,\n",
			opts:      func(o *ParseOptions) { o.Delimiter = ',' },
			wantLen:   1,
			wantCases: 1,
		},
		{
			name:    "no header",
			input:   "a;b;c\n1;2;3\n",
			wantErr: apperrors.ErrTypeParsing,
		},
		{
			name: "invalid count",
			input: csvHeader +
				"Brasil;;;76;;;;2020-02-26;9;210147125;many;1;0;0;;;\n",
			wantErr: apperrors.ErrTypeParsing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testParseOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}

			records, err := ParseCSV(strings.NewReader(tt.input), opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			require.Len(t, records, tt.wantLen)
			assert.Equal(t, tt.wantCity, records[0].City)
			assert.Equal(t, tt.wantCases, records[0].CumulativeCases)
		})
	}
}

func TestParseCSVCodesAndDates(t *testing.T) {
	input := csvHeader +
		"Sudeste;SP;Campinas;35;350950.0;35016;CAMPINAS;2020-03-11;11;1204073;2;2;0;0;;;1\n" +
		"Brasil;;;76;;;;43887;9;210147125;1;1;0;0;;;\n"

	records, err := ParseCSV(strings.NewReader(input), testParseOptions())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "350950", records[0].CityCode)
	assert.True(t, records[0].IsCity())
	assert.Equal(t, "Quarta", records[0].Weekday)

	assert.Equal(t, time.Date(2020, 2, 26, 0, 0, 0, 0, time.UTC), records[1].Date)
	assert.True(t, records[1].IsNational())
}

func TestParseCSVLatin1(t *testing.T) {
	utf8 := csvHeader + "Sudeste;SP;São Paulo;35;355030;35016;GRANDE SÃO PAULO;2020-03-11;11;12252023;30;30;1;1;;;1\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(utf8)
	require.NoError(t, err)

	opts := testParseOptions()
	opts.Encoding = "latin-1"
	records, err := ParseCSV(bytes.NewReader([]byte(encoded)), opts)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "São Paulo", records[0].City)
	assert.Equal(t, "GRANDE SÃO PAULO", records[0].HealthRegionName)
}

func TestParseFileUnsupportedExtension(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "dados.json"), testParseOptions())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"42", 42, false},
		{"42.0", 42, false},
		{"-3", -3, false},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseCount(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
