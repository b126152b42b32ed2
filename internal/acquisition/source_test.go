package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, dest string) error {
	args := m.Called(ctx, dest)
	return args.Error(0)
}

func (m *mockFetcher) Name() string {
	return "mock"
}

// writes records to the fetch destination
func (m *mockFetcher) serves(t *testing.T, records []domain.Record) *mock.Call {
	return m.On("Fetch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		testutil.WriteDatasetWorkbook(t, args.String(1), records)
	}).Return(nil)
}

// lastDay is the newest date of the fixture dataset
var lastDay = testutil.FixtureDate(testutil.FixtureDays - 1)

func at(day time.Time, hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local)
	}
}

type sourceFixture struct {
	paths   *config.Paths
	fetcher *mockFetcher
	logs    *testutil.BufferedSlogHandler
	logger  *slog.Logger
}

func newSourceFixture(t *testing.T) *sourceFixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), config.DefaultDataDir, config.DefaultLogsDir, config.DataFileName)
	require.NoError(t, paths.EnsureDirectories())
	logger, handler := testutil.NewTestLogger(t)
	return &sourceFixture{paths: paths, fetcher: &mockFetcher{}, logs: handler, logger: logger}
}

func (f *sourceFixture) source(now func() time.Time) *Source {
	return NewSource(f.paths, f.fetcher, WithClock(now), WithSourceLogger(f.logger), WithMaxAge(time.Hour))
}

func (f *sourceFixture) writeDownloadLog(t *testing.T, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.paths.DownloadLog, []byte(at.Format(config.DownloadLogLayout)), 0o644))
}

func TestLoadUsesCurrentFile(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.Dataset())

	snap, err := f.source(at(lastDay, 18, 0)).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Current)
	assert.False(t, snap.Stale)
	assert.False(t, snap.Fetched)
	assert.Equal(t, f.paths.DataFile, snap.Path)
	assert.Len(t, snap.Records, len(testutil.Dataset()))
	assert.Equal(t, lastDay, snap.SourceDate)
	assert.Equal(t, snap.Validation.Rows, snap.Validation.Valid)
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestLoadUsesRecentDownload(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.Dataset())

	nextDay := lastDay.AddDate(0, 0, 1)
	now := at(nextDay, 12, 0)
	f.writeDownloadLog(t, now().Add(-30*time.Minute))

	snap, err := f.source(now).Load(context.Background())
	require.NoError(t, err)

	assert.False(t, snap.Current)
	assert.False(t, snap.Fetched)
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestLoadRefreshesOutdatedFile(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.NationalRecords()[:40])

	now := at(lastDay, 12, 0)
	f.writeDownloadLog(t, now().Add(-2*time.Hour))
	f.fetcher.serves(t, testutil.Dataset()).Once()

	snap, err := f.source(now).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Fetched)
	assert.True(t, snap.Current)
	assert.Len(t, snap.Records, len(testutil.Dataset()))
	f.fetcher.AssertExpectations(t)

	assert.FileExists(t, f.paths.OldDataFile)
	log, err := os.ReadFile(f.paths.DownloadLog)
	require.NoError(t, err)
	assert.Equal(t, now().Format(config.DownloadLogLayout), string(log))
	testutil.AssertLogContains(t, f.logs, slog.LevelInfo, "dataset refreshed")
}

func TestLoadFetchesWhenNoFileExists(t *testing.T) {
	f := newSourceFixture(t)
	f.fetcher.serves(t, testutil.Dataset()).Once()

	snap, err := f.source(at(lastDay, 9, 0)).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Fetched)
	assert.NoFileExists(t, f.paths.OldDataFile)
	f.fetcher.AssertExpectations(t)
}

func TestLoadFallsBackToPreviousCopy(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.NationalRecords())

	f.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	snap, err := f.source(at(lastDay.AddDate(0, 0, 3), 12, 0)).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Stale)
	assert.False(t, snap.Fetched)
	assert.Equal(t, f.paths.OldDataFile, snap.Path)
	assert.Len(t, snap.Records, testutil.FixtureDays)

	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "dataset refresh failed, using previous copy")
	testutil.AssertLogAttr(t, f.logs, "error", "connection refused")
}

func TestLoadFailsWithoutAnyCopy(t *testing.T) {
	f := newSourceFixture(t)
	fetchErr := errors.New("connection refused")
	f.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(fetchErr)

	src := f.source(at(lastDay, 12, 0))
	_, err := src.Load(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
	assert.ErrorIs(t, err, fetchErr)

	_, ok := src.Last()
	assert.False(t, ok)
}

func TestLoadDiscardsUnreadableDownload(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.NationalRecords())

	f.fetcher.On("Fetch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		require.NoError(t, os.WriteFile(args.String(1), []byte("<html>maintenance</html>"), 0o644))
	}).Return(nil)

	snap, err := f.source(at(lastDay.AddDate(0, 0, 1), 12, 0)).Load(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Stale)
	assert.NoFileExists(t, f.paths.DataFile)
	assert.NoFileExists(t, f.paths.DownloadLog)
	assert.FileExists(t, f.paths.OldDataFile)
}

func TestConcurrentLoadsFetchOnce(t *testing.T) {
	f := newSourceFixture(t)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		time.Sleep(50 * time.Millisecond)
		testutil.WriteDatasetWorkbook(t, args.String(1), testutil.Dataset())
	}).Return(nil)

	src := f.source(at(lastDay.AddDate(0, 0, 1), 12, 0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := src.Load(context.Background())
			assert.NoError(t, err)
			if snap != nil {
				assert.Len(t, snap.Records, len(testutil.Dataset()))
			}
		}()
	}
	wg.Wait()

	f.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

// blockingFetcher holds the download until released and fails when its
// context is cancelled first.
type blockingFetcher struct {
	t       *testing.T
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFetcher) Name() string { return "blocking" }

func (b *blockingFetcher) Fetch(ctx context.Context, dest string) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return apperrors.NewNetworkError("download cancelled", ctx.Err())
	case <-b.release:
		testutil.WriteDatasetWorkbook(b.t, dest, testutil.Dataset())
		return nil
	}
}

func TestLoadSurvivesCancelledCaller(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.NationalRecords()[:40])

	now := at(lastDay, 12, 0)
	f.writeDownloadLog(t, now().Add(-2*time.Hour))

	fetcher := &blockingFetcher{t: t, started: make(chan struct{}), release: make(chan struct{})}
	src := NewSource(f.paths, fetcher, WithClock(now), WithSourceLogger(f.logger), WithMaxAge(time.Hour))

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Load(firstCtx)
		firstErr <- err
	}()
	<-fetcher.started

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := src.Load(context.Background())
		second <- result{snap, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(fetcher.release)
	res := <-second
	require.NoError(t, res.err)
	assert.False(t, res.snap.Stale)
	assert.True(t, res.snap.Fetched)
	assert.Len(t, res.snap.Records, len(testutil.Dataset()))
	assert.Equal(t, f.paths.DataFile, res.snap.Path)
}

func TestRefreshForcesFetch(t *testing.T) {
	f := newSourceFixture(t)
	testutil.WriteDatasetWorkbook(t, f.paths.DataFile, testutil.NationalRecords())
	f.fetcher.serves(t, testutil.Dataset()).Once()

	src := f.source(at(lastDay, 8, 0))
	snap, err := src.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.Fetched)
	assert.Len(t, snap.Records, len(testutil.Dataset()))
	assert.FileExists(t, f.paths.OldDataFile)

	last, ok := src.Last()
	require.True(t, ok)
	assert.Same(t, snap, last)
}

func TestDownloadLogParsing(t *testing.T) {
	f := newSourceFixture(t)
	now := at(lastDay, 12, 0)
	src := f.source(now)

	assert.False(t, src.downloadedWithin(now()), "missing log")

	require.NoError(t, os.WriteFile(f.paths.DownloadLog, []byte("yesterday"), 0o644))
	assert.False(t, src.downloadedWithin(now()))
	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "download log unreadable")

	f.writeDownloadLog(t, now().Add(-59*time.Minute))
	assert.True(t, src.downloadedWithin(now()))

	f.writeDownloadLog(t, now().Add(-61*time.Minute))
	assert.False(t, src.downloadedWithin(now()))
}
