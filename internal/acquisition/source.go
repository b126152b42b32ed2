package acquisition

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"covidcli/internal/config"
	"covidcli/internal/dataprocessing"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/files"
	"covidcli/internal/validation"
	"covidcli/pkg/contracts/domain"
)

// Snapshot is one loaded copy of the dataset.
type Snapshot struct {
	Records []domain.Record
	// Path of the file the records were read from
	Path string
	// Stale is set when a refresh failed and the previous file was used
	Stale bool
	// Current is set when the newest row is dated today
	Current bool
	// Fetched is set when this load downloaded the file
	Fetched    bool
	LoadedAt   time.Time
	SourceDate time.Time
	Validation validation.Report

	modTime time.Time
}

// Source loads the dataset, refreshing the local copy when it is outdated.
//
// A data file whose newest row is dated today is used as is. Otherwise a
// download log younger than MaxAge also keeps the file. Past that, the file
// is moved to the backup path and the fetcher is asked for a new one. When
// the fetch fails the backup is read and the snapshot is marked Stale.
type Source struct {
	paths           *config.Paths
	fetcher         Fetcher
	files           *files.Manager
	fileValidator   *validation.FileValidator
	recordValidator *validation.RecordValidator
	parseOpts       dataprocessing.ParseOptions
	maxAge          time.Duration
	now             func() time.Time
	logger          *slog.Logger

	group  singleflight.Group
	loadMu sync.Mutex
	mu     sync.RWMutex
	last   *Snapshot
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithMaxAge sets how long a download is trusted
func WithMaxAge(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		s.now = now
	}
}

// WithParseOptions sets how the data file is read
func WithParseOptions(opts dataprocessing.ParseOptions) SourceOption {
	return func(s *Source) {
		s.parseOpts = opts
	}
}

// WithSourceLogger sets the logger
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSource creates a Source storing its files in paths and refreshing
// them with fetcher.
func NewSource(paths *config.Paths, fetcher Fetcher, opts ...SourceOption) *Source {
	s := &Source{
		paths:     paths,
		fetcher:   fetcher,
		parseOpts: dataprocessing.DefaultParseOptions(),
		maxAge:    config.DefaultDownloadMaxAge,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("component", "source"))
	s.files = files.NewManager(paths, s.logger)
	s.fileValidator = validation.NewFileValidator(s.logger)
	s.recordValidator = validation.NewRecordValidator(s.logger)
	if s.parseOpts.Logger == nil {
		s.parseOpts.Logger = s.logger
	}
	return s
}

// NewSourceFromConfig wires the fetchers and parse options described by
// cfg. The inbox is always tried first; the HTTP fetcher is added when a
// URL is configured.
func NewSourceFromConfig(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	manager := files.NewManager(paths, logger)

	fetchers := []Fetcher{NewInboxFetcher(paths.InboxDir, paths.OldDataFile, manager, logger)}
	if cfg.Source.URL != "" {
		fetchers = append(fetchers, NewHTTPFetcher(cfg.Source.URL, cfg.Source.Timeout, manager, logger))
	}

	parseOpts := dataprocessing.DefaultParseOptions()
	parseOpts.Sheet = cfg.Source.Sheet
	parseOpts.Encoding = cfg.Source.Encoding
	if d := []rune(cfg.Source.Delimiter); len(d) == 1 {
		parseOpts.Delimiter = d[0]
	}
	parseOpts.Logger = logger

	return NewSource(paths, FirstOf(logger, fetchers...),
		WithMaxAge(cfg.Source.MaxAge),
		WithParseOptions(parseOpts),
		WithSourceLogger(logger),
	)
}

// Load returns the dataset, refreshing the local file first when it is
// outdated. Concurrent calls share one load.
func (s *Source) Load(ctx context.Context) (*Snapshot, error) {
	return s.do(ctx, "load", false)
}

// Refresh fetches a new copy regardless of the freshness of the local one.
func (s *Source) Refresh(ctx context.Context) (*Snapshot, error) {
	return s.do(ctx, "refresh", true)
}

// Last returns the most recent snapshot without touching the disk. ok is
// false before the first successful load.
func (s *Source) Last() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

// do runs the shared load detached from the caller's cancellation: a caller
// that goes away stops waiting but the load finishes for everyone else.
func (s *Source) do(ctx context.Context, key string, force bool) (*Snapshot, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.load(detached, force)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "dataset load shared with a concurrent caller")
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *Source) load(ctx context.Context, force bool) (*Snapshot, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	now := s.now()
	backup := false

	if !force && s.files.FileExists(s.paths.DataFile) {
		snap, err := s.read(s.paths.DataFile)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "data file unreadable, fetching a new copy",
				slog.String("path", s.paths.DataFile),
				slog.String("error", err.Error()))
		case snap.Current:
			s.logger.DebugContext(ctx, "data file is current", slog.String("path", snap.Path))
			return s.keep(snap), nil
		case s.downloadedWithin(now):
			s.logger.DebugContext(ctx, "data file downloaded recently",
				slog.String("path", snap.Path),
				slog.Duration("max_age", s.maxAge))
			return s.keep(snap), nil
		default:
			backup = true
		}
	} else if force && s.files.FileExists(s.paths.DataFile) {
		backup = s.fileValidator.ValidateDatasetFile(s.paths.DataFile) == nil
	}

	if backup {
		if err := s.files.MoveFile(s.paths.DataFile, s.paths.OldDataFile); err != nil {
			return nil, apperrors.NewStorageError("failed to back up data file", err).
				WithContext("path", s.paths.DataFile)
		}
	}

	fetchErr := s.fetcher.Fetch(ctx, s.paths.DataFile)
	if fetchErr == nil {
		snap, err := s.read(s.paths.DataFile)
		if err == nil {
			s.writeDownloadLog(ctx, now)
			snap.Fetched = true
			s.logger.InfoContext(ctx, "dataset refreshed",
				slog.String("fetcher", s.fetcher.Name()),
				slog.Int("records", len(snap.Records)),
				slog.String("source_date", snap.SourceDate.Format(domain.DateLayout)))
			return s.keep(snap), nil
		}
		fetchErr = err
		// keep the bad download from replacing the backup on the next run
		if rmErr := s.files.DeleteFile(s.paths.DataFile); rmErr != nil {
			s.logger.WarnContext(ctx, "failed to remove unreadable download", slog.String("error", rmErr.Error()))
		}
	}

	if s.files.FileExists(s.paths.OldDataFile) {
		snap, err := s.read(s.paths.OldDataFile)
		if err == nil {
			snap.Stale = true
			s.logger.WarnContext(ctx, "dataset refresh failed, using previous copy",
				slog.String("fetcher", s.fetcher.Name()),
				slog.String("path", snap.Path),
				slog.String("source_date", snap.SourceDate.Format(domain.DateLayout)),
				slog.String("error", fetchErr.Error()))
			return s.keep(snap), nil
		}
		s.logger.ErrorContext(ctx, "previous dataset copy unreadable",
			slog.String("path", s.paths.OldDataFile),
			slog.String("error", err.Error()))
	}

	return nil, apperrors.NewNetworkError("dataset unavailable and no previous copy exists", fetchErr).
		WithContext("fetcher", s.fetcher.Name())
}

// read parses path, reusing the records of the last snapshot when the file
// has not changed since
func (s *Source) read(path string) (*Snapshot, error) {
	modTime, err := s.files.ModTime(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to stat data file", err).WithContext("path", path)
	}

	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	snap := &Snapshot{Path: path, modTime: modTime, LoadedAt: s.now()}
	if last != nil && last.Path == path && last.modTime.Equal(modTime) {
		snap.Records = last.Records
		snap.SourceDate = last.SourceDate
		snap.Validation = last.Validation
	} else {
		if err := s.fileValidator.ValidateDatasetFile(path); err != nil {
			return nil, err
		}
		records, err := dataprocessing.ParseFile(path, s.parseOpts)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, apperrors.NewParsingError("data file has no dated rows", nil).WithContext("path", path)
		}
		snap.Records = records
		snap.SourceDate = newestDate(records)
		snap.Validation = s.recordValidator.ValidateRecords(records)
	}

	snap.Current = sameDay(snap.SourceDate, s.now())
	return snap, nil
}

func (s *Source) keep(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	return snap
}

// downloadedWithin reports whether the download log is younger than maxAge
func (s *Source) downloadedWithin(now time.Time) bool {
	data, err := s.files.ReadFile(s.paths.DownloadLog)
	if err != nil {
		return false
	}
	at, err := time.ParseInLocation(config.DownloadLogLayout, strings.TrimSpace(string(data)), now.Location())
	if err != nil {
		s.logger.Warn("download log unreadable",
			slog.String("path", s.paths.DownloadLog),
			slog.String("error", err.Error()))
		return false
	}
	return now.Sub(at) < s.maxAge
}

func (s *Source) writeDownloadLog(ctx context.Context, at time.Time) {
	if err := s.files.WriteFile(s.paths.DownloadLog, []byte(at.Format(config.DownloadLogLayout))); err != nil {
		s.logger.WarnContext(ctx, "failed to write download log",
			slog.String("path", s.paths.DownloadLog),
			slog.String("error", err.Error()))
	}
}

func newestDate(records []domain.Record) time.Time {
	var newest time.Time
	for _, r := range records {
		if r.Date.After(newest) {
			newest = r.Date
		}
	}
	return newest
}

// sameDay compares a dataset date with the local calendar day of now
func sameDay(date, now time.Time) bool {
	y, m, d := now.Date()
	dy, dm, dd := date.Date()
	return y == dy && m == dm && d == dd
}
