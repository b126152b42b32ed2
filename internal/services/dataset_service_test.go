package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"covidcli/internal/acquisition"
	"covidcli/internal/config"
	"covidcli/internal/dataprocessing"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/exporter"
	"covidcli/internal/infrastructure"
	"covidcli/internal/shared/testutil"
	"covidcli/pkg/contracts/domain"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context) (*acquisition.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*acquisition.Snapshot)
	return snap, args.Error(1)
}

func (m *mockLoader) Refresh(ctx context.Context) (*acquisition.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*acquisition.Snapshot)
	return snap, args.Error(1)
}

var sourceDate = testutil.FixtureDate(testutil.FixtureDays - 1)

func fixtureSnapshot(stale bool) *acquisition.Snapshot {
	return &acquisition.Snapshot{
		Records:    testutil.Dataset(),
		Path:       "dados.xlsx",
		Stale:      stale,
		SourceDate: sourceDate,
		LoadedAt:   time.Date(2020, 4, 10, 19, 0, 0, 0, time.UTC),
	}
}

func newService(t *testing.T, snap *acquisition.Snapshot, opts ...DatasetOption) (*DatasetService, *mockLoader) {
	t.Helper()
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(snap, nil)
	logger, _ := testutil.NewTestLogger(t)
	return NewDatasetService(loader, logger, opts...), loader
}

func TestDatasetServiceNation(t *testing.T) {
	svc, loader := newService(t, fixtureSnapshot(false))

	res, err := svc.Nation(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.GranularityNation, res.Slice.Granularity)
	assert.Equal(t, testutil.FixtureDays, res.Slice.Len())
	assert.False(t, res.Stale)
	assert.Equal(t, sourceDate, res.SourceDate)
	assert.Equal(t, len(testutil.Dataset()), res.Rows)
	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestDatasetServicePropagatesStale(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(true))

	res, err := svc.States(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, []string{"SP", "RJ"}, res.Slice.Keys)
}

func TestDatasetServiceThresholdsFromConfig(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(false), WithThresholds([]int{1, 100, 1000}))

	res, err := svc.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 100, 1000}, res.Slice.Thresholds)
	assert.Contains(t, res.Slice.Columns, domain.ContaminationColumn(1000))
}

func TestDatasetServiceSelectors(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(false))
	ctx := context.Background()

	t.Run("state", func(t *testing.T) {
		res, err := svc.State(ctx, "sp")
		require.NoError(t, err)
		assert.Equal(t, []string{"SP"}, res.Slice.Keys)
		assert.Equal(t, testutil.FixtureDays, res.Slice.Len())
	})

	t.Run("unknown state", func(t *testing.T) {
		_, err := svc.State(ctx, "AM")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("cities of state", func(t *testing.T) {
		res, err := svc.Cities(ctx, "SP")
		require.NoError(t, err)
		assert.Equal(t, []string{"350950"}, res.Slice.Keys)
	})

	t.Run("state without cities", func(t *testing.T) {
		_, err := svc.Cities(ctx, "RJ")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("all cities", func(t *testing.T) {
		res, err := svc.Cities(ctx, "")
		require.NoError(t, err)
		assert.Len(t, res.Slice.Keys, 1)
	})

	t.Run("city", func(t *testing.T) {
		res, err := svc.City(ctx, "350950")
		require.NoError(t, err)
		last, ok := res.Slice.Last()
		require.True(t, ok)
		assert.Equal(t, testutil.CityCases(testutil.FixtureDays-1), last.CumulativeCases)
	})

	t.Run("unknown city", func(t *testing.T) {
		_, err := svc.City(ctx, "999999")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("unknown granularity", func(t *testing.T) {
		_, err := svc.Slice(ctx, domain.Granularity("region"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestDatasetServiceThreshold(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(false))
	ctx := context.Background()

	tests := []struct {
		name  string
		cases int64
		uf    string
		key   string
		want  time.Time
	}{
		{"national first case", 0, "", dataprocessing.NationKey, time.Date(2020, 2, 26, 0, 0, 0, 0, time.UTC)},
		{"national hundred", 100, "", dataprocessing.NationKey, time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)},
		{"national ten thousand", 10000, "", dataprocessing.NationKey, time.Date(2020, 4, 4, 0, 0, 0, 0, time.UTC)},
		{"state first case", 0, "sp", "SP", time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Threshold(ctx, tt.cases, tt.uf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Date)
			assert.Equal(t, tt.key, res.Key)
			assert.Equal(t, tt.cases, res.Cases)
		})
	}
}

func TestDatasetServiceThresholdErrors(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(false))
	ctx := context.Background()

	_, err := svc.Threshold(ctx, 1_000_000, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAssertion))
	assert.ErrorIs(t, err, dataprocessing.ErrThresholdNotReached)

	_, err = svc.Threshold(ctx, -1, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = svc.Threshold(ctx, 0, "AM")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestDatasetServiceLoadFailure(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	fetchErr := apperrors.NewNetworkError("dataset could not be fetched and no previous copy exists", errors.New("connection refused"))
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(nil, fetchErr)

	logger, logs := testutil.NewTestLogger(t)
	svc := NewDatasetService(loader, logger, WithTracer(tp.Tracer("test")))

	_, err := svc.Nation(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
	assert.True(t, logs.ContainsMessage("dataset load failed"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "dataset.slice", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestDatasetServiceRefresh(t *testing.T) {
	loader := &mockLoader{}
	snap := fixtureSnapshot(false)
	snap.Fetched = true
	loader.On("Refresh", mock.Anything).Return(snap, nil).Once()

	svc := NewDatasetService(loader, nil)
	got, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Fetched)
	loader.AssertExpectations(t)
	loader.AssertNotCalled(t, "Load", mock.Anything)
}

func TestDatasetServiceRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := infrastructure.CreateDatasetMetrics(mp.Meter("test"))
	require.NoError(t, err)

	snap := fixtureSnapshot(true)
	// same SP date twice
	snap.Records = append(snap.Records, testutil.StateRecords()[0])

	svc, _ := newService(t, snap, WithMetrics(metrics))
	_, err = svc.States(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumOf(t, rm, "dataset_loads_total"))
	assert.Equal(t, int64(len(snap.Records)), sumOf(t, rm, "dataset_rows_loaded_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "dataset_duplicate_rows_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "dataset_slice_builds_total"))
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestDatasetServiceExport(t *testing.T) {
	paths := config.NewPaths(t.TempDir(), config.DefaultDataDir, config.DefaultLogsDir, config.DataFileName)
	require.NoError(t, paths.EnsureDirectories())
	logger, _ := testutil.NewTestLogger(t)

	svc, _ := newService(t, fixtureSnapshot(true), WithExporter(exporter.NewSliceExporter(paths, logger)))
	ctx := context.Background()

	t.Run("single file with summary", func(t *testing.T) {
		res, err := svc.Export(ctx, ExportRequest{
			Granularity: domain.GranularityState,
			Format:      exporter.FormatXLSX,
			Summary:     true,
		})
		require.NoError(t, err)
		assert.True(t, res.Stale)
		assert.Equal(t, []string{
			paths.GetReportPath("state.xlsx"),
			paths.GetReportPath("state_summary.csv"),
		}, res.Paths)
		for _, p := range res.Paths {
			assert.True(t, config.FileExists(p), p)
		}
	})

	t.Run("one file per entity", func(t *testing.T) {
		res, err := svc.Export(ctx, ExportRequest{
			Granularity: domain.GranularityState,
			Format:      exporter.FormatCSV,
			Name:        "estados",
			PerEntity:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(paths.ReportsDir, "estados", "state_SP.csv"),
			filepath.Join(paths.ReportsDir, "estados", "state_RJ.csv"),
		}, res.Paths)
	})

	t.Run("without exporter", func(t *testing.T) {
		bare, _ := newService(t, fixtureSnapshot(false))
		_, err := bare.Export(ctx, ExportRequest{Granularity: domain.GranularityNation})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})
}

func TestDatasetServiceSummary(t *testing.T) {
	svc, _ := newService(t, fixtureSnapshot(false))

	res, err := svc.Summary(context.Background(), domain.GranularityState)
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "SP", res.Entities[0].Key)
	assert.Equal(t, domain.GranularityState, res.Granularity)
}

type recordingNotifier struct {
	events []DatasetEvent
}

func (n *recordingNotifier) DatasetChanged(_ context.Context, ev DatasetEvent) {
	n.events = append(n.events, ev)
}

func TestDatasetServiceNotifiesOnChange(t *testing.T) {
	loader := &mockLoader{}
	stale := fixtureSnapshot(true)
	stale.Path = "dados_old.xlsx"
	fetched := fixtureSnapshot(false)
	fetched.Fetched = true

	loader.On("Load", mock.Anything).Return(stale, nil).Twice()
	loader.On("Refresh", mock.Anything).Return(fetched, nil).Twice()

	notifier := &recordingNotifier{}
	svc := NewDatasetService(loader, nil, WithNotifier(notifier))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Load(ctx)
		require.NoError(t, err)
	}
	require.Len(t, notifier.events, 1, "unchanged snapshot published twice")
	assert.Equal(t, StatusStale, notifier.events[0].Status)
	assert.Equal(t, "2020-04-10", notifier.events[0].SourceDate)
	assert.True(t, notifier.events[0].Stale)

	for i := 0; i < 2; i++ {
		_, err := svc.Refresh(ctx)
		require.NoError(t, err)
	}
	require.Len(t, notifier.events, 3)
	assert.Equal(t, StatusFetched, notifier.events[1].Status)
	assert.Equal(t, "dados.xlsx", notifier.events[2].Path)
	assert.Equal(t, len(testutil.Dataset()), notifier.events[2].Rows)
}
