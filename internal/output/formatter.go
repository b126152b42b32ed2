// Package output renders dataset results for the command line.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"covidcli/internal/exporter"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// Format is a command output format
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name. Empty detects from the terminal.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return DetectFormat(os.Stdout), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, csv or json)", s)
	}
}

// DetectFormat picks a table for terminals and CSV for pipes and redirects
func DetectFormat(f *os.File) Format {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return FormatTable
	}
	return FormatCSV
}

// Data is a rendered table
type Data struct {
	Headers []string
	Rows    [][]string
	// Numeric marks right-aligned columns in table output
	Numeric []bool
}

// Formatter writes results in one format
type Formatter struct {
	w      io.Writer
	format Format
}

// NewFormatter creates a formatter writing to w
func NewFormatter(w io.Writer, format Format) *Formatter {
	return &Formatter{w: w, format: format}
}

// Slice writes a slice. tail > 0 keeps only the last tail rows.
func (f *Formatter) Slice(res *services.SliceResult, tail int) error {
	s := res.Slice
	if f.format == FormatJSON {
		rows := s.Objects()
		if tail > 0 && len(rows) > tail {
			rows = rows[len(rows)-tail:]
		}
		return f.json(map[string]interface{}{
			"granularity": s.Granularity,
			"stale":       res.Stale,
			"source_date": formatDate(res),
			"keys":        s.Keys,
			"thresholds":  s.Thresholds,
			"duplicates":  len(s.Duplicates),
			"count":       len(rows),
			"data":        rows,
		})
	}

	rows := s.Strings()
	if tail > 0 && len(rows) > tail {
		rows = rows[len(rows)-tail:]
	}
	numeric := make([]bool, len(s.Columns))
	for i, c := range s.Columns {
		numeric[i] = isNumericColumn(c)
	}
	return f.table(Data{Headers: s.Headers(), Rows: rows, Numeric: numeric}, res.Meta)
}

// Threshold writes a threshold-date answer
func (f *Formatter) Threshold(res *services.ThresholdResult) error {
	date := res.Date.Format(domain.DateLayout)
	if f.format == FormatJSON {
		return f.json(map[string]interface{}{
			"key":         res.Key,
			"cases":       res.Cases,
			"date":        date,
			"stale":       res.Stale,
			"source_date": res.SourceDate.Format(domain.DateLayout),
		})
	}
	return f.table(Data{
		Headers: []string{"key", "cases", "date"},
		Rows:    [][]string{{res.Key, strconv.FormatInt(res.Cases, 10), date}},
		Numeric: []bool{false, true, false},
	}, res.Meta)
}

// Summary writes the latest figures of each entity
func (f *Formatter) Summary(res *services.SummaryResult) error {
	if f.format == FormatJSON {
		return f.json(res)
	}
	headers := exporter.SummaryHeaders(res.Thresholds)
	data := Data{Headers: headers, Numeric: make([]bool, len(headers))}
	for i := 4; i < len(headers); i++ {
		data.Numeric[i] = true
	}
	for _, e := range res.Entities {
		data.Rows = append(data.Rows, e.Strings())
	}
	return f.table(data, res.Meta)
}

// Paths writes one path per line
func (f *Formatter) Paths(res *services.ExportResult) error {
	if f.format == FormatJSON {
		return f.json(map[string]interface{}{
			"paths":       res.Paths,
			"stale":       res.Stale,
			"source_date": res.SourceDate.Format(domain.DateLayout),
		})
	}
	for _, p := range res.Paths {
		if _, err := fmt.Fprintln(f.w, p); err != nil {
			return err
		}
	}
	return nil
}

// table renders data as CSV or an aligned table followed by the source
// footer. CSV carries no footer so it stays machine readable.
func (f *Formatter) table(data Data, meta services.Meta) error {
	if f.format == FormatCSV {
		cw := csv.NewWriter(f.w)
		if err := cw.Write(data.Headers); err != nil {
			return err
		}
		if err := cw.WriteAll(data.Rows); err != nil {
			return err
		}
		return cw.Error()
	}

	config := tablewriter.Config{}
	if len(data.Numeric) > 0 {
		align := make([]tw.Align, len(data.Numeric))
		for i, n := range data.Numeric {
			align[i] = tw.AlignLeft
			if n {
				align[i] = tw.AlignRight
			}
		}
		config.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}

	table := tablewriter.NewTable(f.w, tablewriter.WithConfig(config))
	headers := make([]any, len(data.Headers))
	for i, h := range data.Headers {
		headers[i] = h
	}
	table.Header(headers...)

	for _, row := range data.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	footer := fmt.Sprintf("source date %s, %d rows loaded", meta.SourceDate.Format(domain.DateLayout), meta.Rows)
	if meta.Stale {
		footer += " (STALE: refresh failed, showing the previous copy)"
	}
	_, err := fmt.Fprintln(f.w, footer)
	return err
}

func (f *Formatter) json(v interface{}) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDate(res *services.SliceResult) string {
	if res.SourceDate.IsZero() {
		return ""
	}
	return res.SourceDate.Format(domain.DateLayout)
}

func isNumericColumn(c domain.Column) bool {
	if _, ok := domain.ParseContaminationColumn(c); ok {
		return true
	}
	switch c {
	case domain.ColEpiWeek, domain.ColPopulation, domain.ColCumulativeCases, domain.ColNewCases,
		domain.ColCumulativeDeaths, domain.ColNewDeaths, domain.ColNewRecovered, domain.ColUnderFollowUp:
		return true
	}
	return false
}
