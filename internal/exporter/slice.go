package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"covidcli/internal/config"
	"covidcli/internal/dataprocessing"
	"covidcli/internal/validation"
)

// maxSheetName is the longest sheet name Excel accepts
const maxSheetName = 31

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// SliceExporter writes derived slices to report files
type SliceExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
	validator *validation.FileValidator
	logger    *slog.Logger
}

// NewSliceExporter creates a slice exporter writing under the reports
// directory
func NewSliceExporter(paths *config.Paths, logger *slog.Logger) *SliceExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SliceExporter{
		csvWriter: NewCSVWriter(paths, logger),
		paths:     paths,
		validator: validation.NewFileValidator(logger),
		logger:    logger,
	}
}

// Export writes s as name plus the extension of format and returns the
// path written.
func (e *SliceExporter) Export(s dataprocessing.Slice, name string, format Format) (string, error) {
	switch format {
	case FormatXLSX:
		return e.ExportXLSX(s, name+".xlsx")
	case FormatCSV, "":
		return e.ExportCSV(s, name+".csv")
	}
	return "", fmt.Errorf("unknown export format %q", format)
}

// ExportCSV writes every row of s to one CSV file
func (e *SliceExporter) ExportCSV(s dataprocessing.Slice, filePath string) (string, error) {
	stream, err := e.csvWriter.CreateStreamWriter(filePath, s.Headers())
	if err != nil {
		return "", err
	}

	for i, row := range s.Strings() {
		if err := stream.WriteRecord(row); err != nil {
			stream.Close()
			return "", fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", err
	}

	fullPath := e.csvWriter.resolvePath(filePath)
	e.logger.Info("slice exported",
		slog.String("granularity", string(s.Granularity)),
		slog.String("format", string(FormatCSV)),
		slog.String("path", fullPath),
		slog.Int("rows", s.Len()))
	return fullPath, nil
}

// ExportEntityFiles writes one CSV per entity of s into dir, named
// <prefix>_<key>.csv
func (e *SliceExporter) ExportEntityFiles(s dataprocessing.Slice, dir, prefix string) ([]string, error) {
	written := make([]string, 0, len(s.Keys))
	for _, key := range s.Keys {
		path, err := e.ExportCSV(s.Entity(key), filepath.Join(dir, fmt.Sprintf("%s_%s.csv", prefix, key)))
		if err != nil {
			return written, fmt.Errorf("failed to write file for %s: %w", key, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// ExportXLSX writes s to a workbook with one sheet per entity, in entity
// order. Count columns are written as numbers.
func (e *SliceExporter) ExportXLSX(s dataprocessing.Slice, filePath string) (string, error) {
	fullPath := e.csvWriter.resolvePath(filePath)

	f := excelize.NewFile()
	defer f.Close()

	keys := s.Keys
	if len(keys) == 0 {
		keys = []string{string(s.Granularity)}
	}

	headers := make([]interface{}, len(s.Columns))
	for i, h := range s.Headers() {
		headers[i] = h
	}

	for i, key := range keys {
		sheet := sheetName(key)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return "", fmt.Errorf("failed to name sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}

		sw, err := f.NewStreamWriter(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to open sheet %s: %w", sheet, err)
		}
		if err := sw.SetRow("A1", headers); err != nil {
			return "", fmt.Errorf("failed to write headers: %w", err)
		}

		entity := s.Entity(key)
		if len(s.Keys) == 0 {
			entity = s
		}
		for r, row := range entity.Rows {
			values := make([]interface{}, len(s.Columns))
			for c, col := range s.Columns {
				values[c] = s.TypedValue(row, col)
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := sw.SetRow(cell, values); err != nil {
				return "", fmt.Errorf("failed to write row %d of %s: %w", r, key, err)
			}
		}
		if err := sw.Flush(); err != nil {
			return "", fmt.Errorf("failed to flush sheet %s: %w", sheet, err)
		}
	}

	if err := e.validator.ValidateOutputDirectory(filepath.Dir(fullPath)); err != nil {
		return "", err
	}
	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("slice exported",
		slog.String("granularity", string(s.Granularity)),
		slog.String("format", string(FormatXLSX)),
		slog.String("path", fullPath),
		slog.Int("sheets", len(keys)),
		slog.Int("rows", s.Len()))
	return fullPath, nil
}

// sheetName makes key a valid, bounded sheet name
func sheetName(key string) string {
	name := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_").Replace(key)
	if name == "" {
		name = "dados"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}
