package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"covidcli/internal/acquisition"
	"covidcli/internal/dataprocessing"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/exporter"
	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/domain"
)

// DatasetLoader is the acquisition side of the service. *acquisition.Source
// implements it.
type DatasetLoader interface {
	Load(ctx context.Context) (*acquisition.Snapshot, error)
	Refresh(ctx context.Context) (*acquisition.Snapshot, error)
}

// Meta describes the snapshot a result was derived from.
type Meta struct {
	Stale      bool      `json:"stale"`
	SourceDate time.Time `json:"source_date"`
	LoadedAt   time.Time `json:"loaded_at"`
	Rows       int       `json:"rows"`
}

// SliceResult is a derived slice and the snapshot it came from.
type SliceResult struct {
	Meta
	Slice dataprocessing.Slice
}

// ThresholdResult is the first date a series passed a case count.
type ThresholdResult struct {
	Meta
	Key   string    `json:"key"`
	Cases int64     `json:"cases"`
	Date  time.Time `json:"date"`
}

// ExportResult lists the files written by an export.
type ExportResult struct {
	Meta
	Paths []string `json:"paths"`
}

// SummaryResult holds the per-entity summaries of one granularity.
type SummaryResult struct {
	Meta
	Granularity domain.Granularity      `json:"granularity"`
	Thresholds  []int                    `json:"thresholds"`
	Entities    []exporter.EntitySummary `json:"entities"`
}

// Dataset event statuses
const (
	StatusCached  = "cached"
	StatusFetched = "fetched"
	StatusStale   = "stale"
)

// DatasetEvent is published when the snapshot behind the results changes:
// a new download, a switch to the previous copy or a new source date.
type DatasetEvent struct {
	Status     string    `json:"status"`
	Path       string    `json:"path"`
	SourceDate string    `json:"source_date"`
	Stale      bool      `json:"stale"`
	Rows       int       `json:"rows"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// DatasetNotifier receives dataset events. It must not block.
type DatasetNotifier interface {
	DatasetChanged(ctx context.Context, ev DatasetEvent)
}

// DatasetService loads the dataset and derives slices from it.
type DatasetService struct {
	source     DatasetLoader
	exporter   *exporter.SliceExporter
	thresholds []int
	tracer     trace.Tracer
	metrics    *infrastructure.DatasetMetrics
	notifiers  []DatasetNotifier
	logger     *slog.Logger

	eventMu   sync.Mutex
	lastEvent DatasetEvent
}

// DatasetOption configures a DatasetService
type DatasetOption func(*DatasetService)

// WithThresholds sets the contamination thresholds attached to every slice
func WithThresholds(thresholds []int) DatasetOption {
	return func(s *DatasetService) {
		if len(thresholds) > 0 {
			s.thresholds = append([]int(nil), thresholds...)
		}
	}
}

// WithTracer sets the tracer used for service spans
func WithTracer(tracer trace.Tracer) DatasetOption {
	return func(s *DatasetService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithMetrics sets the dataset metrics
func WithMetrics(metrics *infrastructure.DatasetMetrics) DatasetOption {
	return func(s *DatasetService) {
		s.metrics = metrics
	}
}

// WithExporter sets the exporter used by Export
func WithExporter(exp *exporter.SliceExporter) DatasetOption {
	return func(s *DatasetService) {
		s.exporter = exp
	}
}

// WithNotifier adds a receiver of dataset events
func WithNotifier(n DatasetNotifier) DatasetOption {
	return func(s *DatasetService) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// NewDatasetService creates a dataset service reading through source
func NewDatasetService(source DatasetLoader, logger *slog.Logger, opts ...DatasetOption) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}

	s := &DatasetService{
		source:     source,
		thresholds: dataprocessing.DefaultThresholds,
		tracer:     noop.NewTracerProvider().Tracer(infrastructure.InstrumentationName),
		logger:     logger.With(slog.String("component", "dataset_service")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("DatasetService initialized", slog.Any("thresholds", s.thresholds))
	return s
}

// Load returns the current snapshot, refreshing it when outdated
func (s *DatasetService) Load(ctx context.Context) (*acquisition.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.load")
	defer span.End()
	return s.load(ctx, span, s.source.Load)
}

// Refresh forces a new download
func (s *DatasetService) Refresh(ctx context.Context) (*acquisition.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.refresh")
	defer span.End()
	return s.load(ctx, span, s.source.Refresh)
}

func (s *DatasetService) load(ctx context.Context, span trace.Span, fn func(context.Context) (*acquisition.Snapshot, error)) (*acquisition.Snapshot, error) {
	start := time.Now()
	snap, err := fn(ctx)
	if err != nil {
		fail(span, err)
		s.logger.ErrorContext(ctx, "dataset load failed", slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.RecordLoad(ctx, len(snap.Records), snap.Stale, time.Since(start))
	span.SetAttributes(
		attribute.Int("dataset.rows", len(snap.Records)),
		attribute.Bool("dataset.stale", snap.Stale),
		attribute.Bool("dataset.fetched", snap.Fetched),
	)
	if snap.Stale {
		s.logger.WarnContext(ctx, "serving stale dataset",
			slog.String("path", snap.Path),
			slog.Time("source_date", snap.SourceDate))
	}
	s.notify(ctx, snap)
	return snap, nil
}

// notify publishes an event when snap differs from the last one published.
// Every download is published even when nothing else changed.
func (s *DatasetService) notify(ctx context.Context, snap *acquisition.Snapshot) {
	if len(s.notifiers) == 0 {
		return
	}

	ev := DatasetEvent{
		Status:     StatusCached,
		Path:       snap.Path,
		SourceDate: snap.SourceDate.Format(domain.DateLayout),
		Stale:      snap.Stale,
		Rows:       len(snap.Records),
		LoadedAt:   snap.LoadedAt,
	}
	switch {
	case snap.Stale:
		ev.Status = StatusStale
	case snap.Fetched:
		ev.Status = StatusFetched
	}

	s.eventMu.Lock()
	last := s.lastEvent
	changed := snap.Fetched || last.Path != ev.Path || last.SourceDate != ev.SourceDate ||
		last.Stale != ev.Stale || last.Rows != ev.Rows
	if changed {
		s.lastEvent = ev
	}
	s.eventMu.Unlock()

	if !changed {
		return
	}
	for _, n := range s.notifiers {
		n.DatasetChanged(ctx, ev)
	}
}

// Nation returns the national series
func (s *DatasetService) Nation(ctx context.Context) (*SliceResult, error) {
	return s.build(ctx, domain.GranularityNation, "", func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error) {
		return dataprocessing.BuildNation(records, opts...), nil
	})
}

// States returns every state series
func (s *DatasetService) States(ctx context.Context) (*SliceResult, error) {
	return s.build(ctx, domain.GranularityState, "", func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error) {
		return dataprocessing.BuildStates(records, opts...), nil
	})
}

// State returns one state series
func (s *DatasetService) State(ctx context.Context, uf string) (*SliceResult, error) {
	return s.build(ctx, domain.GranularityState, uf, func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error) {
		return dataprocessing.BuildState(records, uf, opts...)
	})
}

// Cities returns the city series, restricted to uf when it is not empty. A
// state with no cities is a not-found error.
func (s *DatasetService) Cities(ctx context.Context, uf string) (*SliceResult, error) {
	return s.build(ctx, domain.GranularityCity, uf, func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error) {
		slice := dataprocessing.BuildCities(records, uf, opts...)
		if uf != "" && slice.Len() == 0 {
			return slice, apperrors.NewNotFoundError(fmt.Sprintf("cities of state %s", strings.ToUpper(uf))).WithContext("uf", uf)
		}
		return slice, nil
	})
}

// City returns one city series by municipality code
func (s *DatasetService) City(ctx context.Context, code string) (*SliceResult, error) {
	return s.build(ctx, domain.GranularityCity, code, func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error) {
		return dataprocessing.BuildCity(records, code, opts...)
	})
}

// Slice returns every entity of granularity g
func (s *DatasetService) Slice(ctx context.Context, g domain.Granularity) (*SliceResult, error) {
	switch g {
	case domain.GranularityNation:
		return s.Nation(ctx)
	case domain.GranularityState:
		return s.States(ctx)
	case domain.GranularityCity:
		return s.Cities(ctx, "")
	}
	return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown granularity %q", g))
}

type builder func(records []domain.Record, opts []dataprocessing.Option) (dataprocessing.Slice, error)

func (s *DatasetService) build(ctx context.Context, g domain.Granularity, key string, fn builder) (*SliceResult, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.slice", trace.WithAttributes(
		attribute.String("slice.granularity", string(g)),
		attribute.String("slice.key", key),
	))
	defer span.End()

	snap, err := s.load(ctx, span, s.source.Load)
	if err != nil {
		return nil, err
	}

	slice, err := fn(snap.Records, []dataprocessing.Option{
		dataprocessing.WithLogger(s.logger),
		dataprocessing.WithThresholds(s.thresholds...),
	})
	if err != nil {
		fail(span, err)
		return nil, err
	}

	s.metrics.RecordSlice(ctx, string(g), len(slice.Duplicates))
	span.SetAttributes(
		attribute.Int("slice.rows", slice.Len()),
		attribute.Int("slice.entities", len(slice.Keys)),
		attribute.Int("slice.duplicates", len(slice.Duplicates)),
	)

	return &SliceResult{Meta: metaOf(snap), Slice: slice}, nil
}

// Threshold returns the first date the cumulative cases of the national
// series, or of state uf when it is not empty, exceeded cases.
func (s *DatasetService) Threshold(ctx context.Context, cases int64, uf string) (*ThresholdResult, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.threshold", trace.WithAttributes(
		attribute.Int64("threshold.cases", cases),
		attribute.String("threshold.uf", uf),
	))
	defer span.End()

	if cases < 0 {
		err := apperrors.NewAppValidationError("cases must not be negative").WithContext("cases", cases)
		fail(span, err)
		return nil, err
	}

	snap, err := s.load(ctx, span, s.source.Load)
	if err != nil {
		return nil, err
	}

	key := dataprocessing.NationKey
	var records []domain.Record
	if uf == "" {
		for _, r := range snap.Records {
			if r.IsNational() {
				records = append(records, r)
			}
		}
	} else {
		key = strings.ToUpper(strings.TrimSpace(uf))
		records = dataprocessing.StateRecords(snap.Records, uf)
		if len(records) == 0 {
			err := apperrors.NewNotFoundError(fmt.Sprintf("state %s", key)).WithContext("uf", key)
			fail(span, err)
			return nil, err
		}
	}

	date, err := dataprocessing.ThresholdDate(dataprocessing.NewTable(records), cases)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	return &ThresholdResult{Meta: metaOf(snap), Key: key, Cases: cases, Date: date}, nil
}

// Summary returns the latest figures of each entity of granularity g
func (s *DatasetService) Summary(ctx context.Context, g domain.Granularity) (*SummaryResult, error) {
	res, err := s.Slice(ctx, g)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{
		Meta:        res.Meta,
		Granularity: g,
		Thresholds:  res.Slice.Thresholds,
		Entities:    exporter.Summarize(res.Slice),
	}, nil
}

// ExportRequest selects what Export writes.
type ExportRequest struct {
	Granularity domain.Granularity
	Format      exporter.Format
	// Name of the output file, without extension. Defaults to the
	// granularity.
	Name string
	// PerEntity writes one CSV per entity into a directory named Name
	PerEntity bool
	// Summary also writes <Name>_summary.csv
	Summary bool
}

// Export writes a slice to the reports directory
func (s *DatasetService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if s.exporter == nil {
		return nil, apperrors.NewConfigError("no exporter configured", nil)
	}

	ctx, span := s.tracer.Start(ctx, "dataset.export", trace.WithAttributes(
		attribute.String("export.granularity", string(req.Granularity)),
		attribute.String("export.format", string(req.Format)),
	))
	defer span.End()

	res, err := s.Slice(ctx, req.Granularity)
	if err != nil {
		fail(span, err)
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = string(req.Granularity)
	}

	var paths []string
	if req.PerEntity {
		paths, err = s.exporter.ExportEntityFiles(res.Slice, name, string(req.Granularity))
	} else {
		var path string
		path, err = s.exporter.Export(res.Slice, name, req.Format)
		paths = append(paths, path)
	}
	if err != nil {
		storageErr := apperrors.NewStorageError("failed to export slice", err)
		fail(span, storageErr)
		return nil, storageErr
	}

	if req.Summary {
		path, err := s.exporter.ExportSummary(res.Slice, name+"_summary.csv")
		if err != nil {
			storageErr := apperrors.NewStorageError("failed to export summary", err)
			fail(span, storageErr)
			return nil, storageErr
		}
		paths = append(paths, path)
	}

	s.logger.InfoContext(ctx, "export completed",
		slog.String("granularity", string(req.Granularity)),
		slog.Int("files", len(paths)),
		slog.Bool("stale", res.Stale))

	return &ExportResult{Meta: res.Meta, Paths: paths}, nil
}

func metaOf(snap *acquisition.Snapshot) Meta {
	return Meta{
		Stale:      snap.Stale,
		SourceDate: snap.SourceDate,
		LoadedAt:   snap.LoadedAt,
		Rows:       len(snap.Records),
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
