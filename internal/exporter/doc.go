// Package exporter writes derived slices to report files.
//
// CSVWriter is the low-level writer: headers, streaming, and a UTF-8 BOM so
// Excel shows accented names correctly.
//
// SliceExporter renders a dataprocessing.Slice as a single CSV, one CSV per
// entity, or an .xlsx workbook with one sheet per entity. Summarize and
// ExportSummary reduce a slice to the latest figures of each entity.
//
// Example usage:
//
//	exp := exporter.NewSliceExporter(paths, logger)
//	states := dataprocessing.BuildStates(records)
//	path, err := exp.Export(states, "states", exporter.FormatXLSX)
package exporter
