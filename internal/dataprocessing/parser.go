package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	apperrors "covidcli/internal/errors"
	"covidcli/pkg/contracts/domain"
)

// headerScanRows bounds the search for the header row
const headerScanRows = 20

// dateLayouts are tried in order before falling back to spreadsheet serials
var dateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
}

// requiredColumns must be present in the header row
var requiredColumns = []domain.Column{domain.ColRegion, domain.ColDate, domain.ColCumulativeCases}

// ParseOptions configures how a dataset file is read
type ParseOptions struct {
	// Sheet to read from a workbook; empty means the first sheet
	Sheet string
	// Delimiter of delimited text files
	Delimiter rune
	// Encoding of delimited text files: "utf-8" or "latin-1"
	Encoding string
	Logger   *slog.Logger
}

// DefaultParseOptions returns the options matching the published files
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		Delimiter: ';',
		Encoding:  "utf-8",
		Logger:    slog.Default(),
	}
}

func (o ParseOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// ParseFile reads a dataset file, choosing the reader from the extension.
func ParseFile(filePath string, opts ParseOptions) ([]domain.Record, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xlsm":
		return ParseExcel(filePath, opts)
	case ".csv", ".txt":
		f, err := os.Open(filePath)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open file", err).WithContext("path", filePath)
		}
		defer f.Close()
		return ParseCSV(f, opts)
	}
	return nil, apperrors.NewParsingError(fmt.Sprintf("unsupported file type %q", filepath.Ext(filePath)), nil).
		WithContext("path", filePath)
}

// ParseExcel reads the dataset from a workbook. The header row is located
// by column name, so leading title rows and column order do not matter.
func ParseExcel(filePath string, opts ParseOptions) ([]domain.Record, error) {
	logger := opts.logger()

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("path", filePath)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewParsingError("workbook has no sheets", nil).WithContext("path", filePath)
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read sheet", err).WithContext("sheet", sheet)
	}
	defer rows.Close()

	p := newRowParser(logger)
	for rows.Next() {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read row", err).WithContext("row", p.line+1)
		}
		if err := p.add(cols); err != nil {
			return nil, err
		}
	}
	if err := rows.Error(); err != nil {
		return nil, apperrors.NewParsingError("failed to iterate rows", err).WithContext("sheet", sheet)
	}

	logger.Debug("workbook parsed",
		slog.String("path", filePath),
		slog.String("sheet", sheet),
		slog.Int("records", len(p.records)),
		slog.Int("undated_rows", p.undated))

	return p.finish()
}

// ParseCSV reads the dataset from delimited text.
func ParseCSV(r io.Reader, opts ParseOptions) ([]domain.Record, error) {
	logger := opts.logger()

	if strings.EqualFold(opts.Encoding, "latin-1") || strings.EqualFold(opts.Encoding, "iso-8859-1") {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	if reader.Comma == 0 {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	p := newRowParser(logger)
	for {
		cols, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read delimited row", err).WithContext("row", p.line+1)
		}
		if err := p.add(cols); err != nil {
			return nil, err
		}
	}

	logger.Debug("delimited file parsed",
		slog.Int("records", len(p.records)),
		slog.Int("undated_rows", p.undated))

	return p.finish()
}

// rowParser turns raw rows into records once the header row has been seen
type rowParser struct {
	logger    *slog.Logger
	columnMap map[domain.Column]int
	records   []domain.Record
	line      int
	undated   int
}

func newRowParser(logger *slog.Logger) *rowParser {
	return &rowParser{logger: logger}
}

func (p *rowParser) add(cols []string) error {
	p.line++

	if p.columnMap == nil {
		if p.line > headerScanRows {
			return apperrors.NewParsingError("could not find header row", nil).WithContext("scanned_rows", headerScanRows)
		}
		p.columnMap = mapHeader(cols)
		return nil
	}

	if isBlank(cols) {
		return nil
	}

	record, ok, err := p.parseRow(cols)
	if err != nil {
		return err
	}
	if !ok {
		p.undated++
		return nil
	}
	p.records = append(p.records, record)
	return nil
}

func (p *rowParser) finish() ([]domain.Record, error) {
	if p.columnMap == nil {
		return nil, apperrors.NewParsingError("could not find header row", nil)
	}
	if p.undated > 0 {
		p.logger.Debug("rows without a date dropped", slog.Int("count", p.undated))
	}
	return p.records, nil
}

// mapHeader returns the column positions when cols is the header row, nil
// otherwise
func mapHeader(cols []string) map[domain.Column]int {
	known := make(map[string]domain.Column, len(domain.RecordColumns))
	for _, c := range domain.RecordColumns {
		known[strings.ToLower(string(c))] = c
	}

	columnMap := make(map[domain.Column]int)
	for i, header := range cols {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
		if c, ok := known[name]; ok {
			if _, seen := columnMap[c]; !seen {
				columnMap[c] = i
			}
		}
	}

	for _, c := range requiredColumns {
		if _, ok := columnMap[c]; !ok {
			return nil
		}
	}
	return columnMap
}

// parseRow converts one data row. ok is false for rows without a date.
func (p *rowParser) parseRow(cols []string) (domain.Record, bool, error) {
	get := func(c domain.Column) string {
		if idx, ok := p.columnMap[c]; ok && idx < len(cols) {
			return strings.TrimSpace(cols[idx])
		}
		return ""
	}

	date, ok := parseDate(get(domain.ColDate))
	if !ok {
		return domain.Record{}, false, nil
	}

	var parseErr error
	num := func(c domain.Column) int64 {
		n, err := parseCount(get(c))
		if err != nil && parseErr == nil {
			parseErr = apperrors.NewParsingError(fmt.Sprintf("invalid %s value %q", c, get(c)), err).
				WithContext("row", p.line)
		}
		return n
	}

	r := domain.Record{
		Region:           get(domain.ColRegion),
		State:            get(domain.ColState),
		City:             get(domain.ColCity),
		StateCode:        normalizeCode(get(domain.ColStateCode)),
		CityCode:         normalizeCode(get(domain.ColCityCode)),
		HealthRegionCode: normalizeCode(get(domain.ColHealthRegionCode)),
		HealthRegionName: get(domain.ColHealthRegionName),
		Date:             date,
		EpiWeek:          int(num(domain.ColEpiWeek)),
		Population:       num(domain.ColPopulation),
		CumulativeCases:  num(domain.ColCumulativeCases),
		NewCases:         num(domain.ColNewCases),
		CumulativeDeaths: num(domain.ColCumulativeDeaths),
		NewDeaths:        num(domain.ColNewDeaths),
		NewRecovered:     num(domain.ColNewRecovered),
		UnderFollowUp:    num(domain.ColUnderFollowUp),
		Metropolitan:     normalizeCode(get(domain.ColMetropolitan)),
		Weekday:          domain.WeekdayName(date),
	}
	if parseErr != nil {
		return domain.Record{}, false, parseErr
	}
	return r, true, nil
}

// parseDate accepts text dates and spreadsheet serial numbers
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseCount reads an integer count; empty cells are zero
func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

// normalizeCode strips the fractional part spreadsheets add to numeric codes
func normalizeCode(s string) string {
	if s == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
