package acquisition

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/files"
)

func newTestManager(t *testing.T) (*files.Manager, *config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), config.DefaultDataDir, config.DefaultLogsDir, config.DataFileName)
	require.NoError(t, paths.EnsureDirectories())
	return files.NewManager(paths, nil), paths
}

func TestHTTPFetcher(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantErr  bool
		wantBody string
	}{
		{
			name: "downloads the body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Contains(t, r.Header.Get("User-Agent"), "covidcli/")
				w.Write([]byte("PK\x03\x04payload"))
			},
			wantBody: "PK\x03\x04payload",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: true,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			manager, paths := newTestManager(t)
			fetcher := NewHTTPFetcher(server.URL+"/dados.xlsx", 5*time.Second, manager, nil)
			assert.Equal(t, "http", fetcher.Name())

			err := fetcher.Fetch(context.Background(), paths.DataFile)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNetwork))
				assert.NoFileExists(t, paths.DataFile)
			} else {
				require.NoError(t, err)
				data, err := os.ReadFile(paths.DataFile)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(data))
			}

			// no temporary files left next to the destination
			entries, err := os.ReadDir(paths.DataDir)
			require.NoError(t, err)
			for _, e := range entries {
				if !e.IsDir() {
					assert.Equal(t, config.DataFileName, e.Name())
				}
			}
		})
	}
}

func TestHTTPFetcherHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	manager, paths := newTestManager(t)
	fetcher := NewHTTPFetcher(server.URL, time.Minute, manager, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := fetcher.Fetch(ctx, paths.DataFile)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInboxFetcher(t *testing.T) {
	manager, paths := newTestManager(t)
	now := time.Now()

	write := func(name string, mod time.Time) string {
		path := filepath.Join(paths.InboxDir, name)
		require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"+name), 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
		return path
	}

	// the previous dataset
	require.NoError(t, os.WriteFile(paths.OldDataFile, []byte("old"), 0o644))
	require.NoError(t, os.Chtimes(paths.OldDataFile, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	write("older.xlsx", now.Add(-3*time.Hour))
	write("painel.csv", now)
	newest := write("HIST_PAINEL.xlsx", now.Add(-time.Hour))

	fetcher := NewInboxFetcher(paths.InboxDir, paths.OldDataFile, manager, nil)
	assert.Equal(t, "inbox", fetcher.Name())

	require.NoError(t, fetcher.Fetch(context.Background(), paths.DataFile))

	data, err := os.ReadFile(paths.DataFile)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04HIST_PAINEL.xlsx", string(data))
	assert.NoFileExists(t, newest)

	// only the file older than the previous dataset is left
	err = fetcher.Fetch(context.Background(), paths.DataFile)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestInboxFetcherMissingDirectory(t *testing.T) {
	manager, paths := newTestManager(t)
	fetcher := NewInboxFetcher(filepath.Join(paths.BaseDir, "nowhere"), paths.OldDataFile, manager, nil)

	err := fetcher.Fetch(context.Background(), paths.DataFile)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestInboxFetcherSkipsInvalidFiles(t *testing.T) {
	manager, paths := newTestManager(t)
	now := time.Now()

	valid := filepath.Join(paths.InboxDir, "HIST_PAINEL.xlsx")
	require.NoError(t, os.WriteFile(valid, []byte("PK\x03\x04valid"), 0o644))
	require.NoError(t, os.Chtimes(valid, now.Add(-time.Minute), now.Add(-time.Minute)))

	// a newer download that is still an HTML error page
	broken := filepath.Join(paths.InboxDir, "HIST_PAINEL (1).xlsx")
	require.NoError(t, os.WriteFile(broken, []byte("<html>"), 0o644))

	fetcher := NewInboxFetcher(paths.InboxDir, paths.OldDataFile, manager, nil)
	require.NoError(t, fetcher.Fetch(context.Background(), paths.DataFile))

	data, err := os.ReadFile(paths.DataFile)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04valid", string(data))
	assert.FileExists(t, broken)
}

type stubFetcher struct {
	name  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) error {
	s.calls++
	return s.err
}

func (s *stubFetcher) Name() string { return s.name }

func TestFirstOf(t *testing.T) {
	t.Run("stops at the first success", func(t *testing.T) {
		a := &stubFetcher{name: "a", err: errors.New("empty inbox")}
		b := &stubFetcher{name: "b"}
		c := &stubFetcher{name: "c"}

		f := FirstOf(nil, a, b, c)
		assert.Equal(t, "a,b,c", f.Name())
		require.NoError(t, f.Fetch(context.Background(), "dest"))
		assert.Equal(t, []int{1, 1, 0}, []int{a.calls, b.calls, c.calls})
	})

	t.Run("joins every error", func(t *testing.T) {
		errA := errors.New("empty inbox")
		errB := errors.New("connection refused")

		err := FirstOf(nil, &stubFetcher{name: "a", err: errA}, &stubFetcher{name: "b", err: errB}).
			Fetch(context.Background(), "dest")

		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.Contains(t, err.Error(), "b: connection refused")
	})

	t.Run("single fetcher is returned as is", func(t *testing.T) {
		a := &stubFetcher{name: "a"}
		assert.Same(t, Fetcher(a), FirstOf(nil, a))
	})
}
