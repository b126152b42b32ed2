// Package dataprocessing turns the published COVID-19 table into derived
// per-entity time series. It reads the spreadsheet, isolates the national,
// state and city slices, drops repeated dates and derives daily deltas and
// contamination-day counters.
//
// # Architecture
//
// The package is organized into three parts:
//
// 1. Parser: reads .xlsx workbooks and delimited files into domain.Record rows
// 2. Processor: partitions rows by entity and derives each entity in isolation
// 3. Slices: the nation, state and city builders and their renderers
//
// # Usage
//
//	records, err := dataprocessing.ParseFile("data/dados.xlsx", dataprocessing.DefaultParseOptions())
//	if err != nil {
//	    return err
//	}
//
//	nation := dataprocessing.BuildNation(records, dataprocessing.WithLogger(logger))
//	states := dataprocessing.BuildStates(records, dataprocessing.WithThresholds(1, 100, 1000))
//
//	first, err := dataprocessing.ThresholdDate(dataprocessing.NewTable(records), 0)
//
// # Derived Columns
//
// casosNovos and obitosNovos are recomputed as the first difference of the
// cumulative columns, the first value being the first cumulative value, so
// a running sum of casosNovos gives back casosAcumulado. For every
// threshold K a diasDeContaminacao_K column counts 0 before the first date
// with at least K cumulative cases and 1, 2, 3, ... from that date on.
//
// # Dates
//
// A Table records whether its date is a column (DateColumn, several
// entities may share a date) or the row key (DateKey, one row per date as
// produced by AggregateByDate). The representation is chosen when the table
// is built.
//
// # Error Handling
//
// The builders never fail: a repeated date is logged at warning level,
// dropped and reported in Slice.Duplicates. Asking ThresholdDate for a
// threshold no row exceeds is a caller bug and yields an assertion error
// wrapping ErrThresholdNotReached.
package dataprocessing
