package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "covidcli/internal/errors"
	"covidcli/internal/files"
	"covidcli/internal/validation"
	"covidcli/pkg/contracts"
)

// Fetcher places a fresh copy of the dataset at dest. Implementations must
// leave dest untouched when they fail.
type Fetcher interface {
	Fetch(ctx context.Context, dest string) error
	Name() string
}

// HTTPFetcher downloads the dataset from a fixed URL.
type HTTPFetcher struct {
	url    string
	client *http.Client
	files  *files.Manager
	logger *slog.Logger
}

// NewHTTPFetcher creates a fetcher for url. timeout bounds the whole
// download.
func NewHTTPFetcher(url string, timeout time.Duration, manager *files.Manager, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		files:  manager,
		logger: logger.With(slog.String("fetcher", "http")),
	}
}

// Name implements Fetcher
func (f *HTTPFetcher) Name() string {
	return "http"
}

// Fetch implements Fetcher. The body is streamed to a temporary file next
// to dest and renamed into place once complete.
func (f *HTTPFetcher) Fetch(ctx context.Context, dest string) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return apperrors.NewNetworkError("invalid dataset URL", err).WithContext("url", f.url)
	}
	req.Header.Set("User-Agent", "covidcli/"+contracts.Version)

	resp, err := f.client.Do(req)
	if err != nil {
		return apperrors.NewNetworkError("dataset download failed", err).WithContext("url", f.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewNetworkError(fmt.Sprintf("dataset download returned %s", resp.Status), nil).
			WithContext("url", f.url).
			WithContext("status", resp.StatusCode)
	}

	tmp, err := f.files.CreateTemp(dest)
	if err != nil {
		return apperrors.NewStorageError("failed to create download file", err).WithContext("dest", dest)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return apperrors.NewNetworkError("dataset download interrupted", err).WithContext("url", f.url)
	}
	if n == 0 {
		return apperrors.NewNetworkError("dataset download was empty", nil).WithContext("url", f.url)
	}

	if err := f.files.MoveFile(tmp.Name(), dest); err != nil {
		return apperrors.NewStorageError("failed to store download", err).WithContext("dest", dest)
	}

	f.logger.InfoContext(ctx, "dataset downloaded",
		slog.String("url", f.url),
		slog.Int64("bytes", n),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// InboxFetcher adopts a dataset file that a manual or external download
// dropped into the inbox directory. Only files with the extension of dest
// and newer than the reference file are considered.
type InboxFetcher struct {
	dir       string
	reference string
	discovery *files.Discovery
	files     *files.Manager
	validator *validation.FileValidator
	logger    *slog.Logger
}

// NewInboxFetcher creates a fetcher reading from dir. reference is the
// file whose modification time a candidate must beat, usually the backup
// of the previous dataset; a missing reference accepts any candidate.
func NewInboxFetcher(dir, reference string, manager *files.Manager, logger *slog.Logger) *InboxFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxFetcher{
		dir:       dir,
		reference: reference,
		discovery: files.NewDiscovery(dir),
		files:     manager,
		validator: validation.NewFileValidator(logger),
		logger:    logger.With(slog.String("fetcher", "inbox")),
	}
}

// Name implements Fetcher
func (f *InboxFetcher) Name() string {
	return "inbox"
}

// Fetch implements Fetcher. The adopted file is moved out of the inbox.
func (f *InboxFetcher) Fetch(ctx context.Context, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(dest))
	if err := f.validator.ValidateInputDirectory(f.dir, "*"+ext); err != nil {
		return err
	}

	candidates, err := f.discovery.FindDatasetFiles(f.dir)
	if err != nil {
		return apperrors.NewStorageError("failed to list inbox", err).WithContext("dir", f.dir)
	}

	matching := candidates[:0]
	for _, c := range candidates {
		if strings.ToLower(filepath.Ext(c.Name)) == ext {
			matching = append(matching, c)
		}
	}

	if since, err := f.files.ModTime(f.reference); err == nil {
		matching = files.ModifiedAfter(matching, since)
	}

	// newest first; half-written or lock files are skipped and left in place
	var latest files.FileInfo
	for {
		var ok bool
		latest, ok = files.GetLatestFile(matching)
		if !ok {
			return apperrors.NewNotFoundError("new dataset file in inbox").WithContext("dir", f.dir)
		}
		err := f.validator.ValidateDatasetFile(latest.Path)
		if err == nil {
			break
		}
		f.logger.WarnContext(ctx, "skipping invalid inbox file",
			slog.String("file", latest.Name),
			slog.String("error", err.Error()))
		matching = withoutPath(matching, latest.Path)
	}

	if err := f.files.MoveFile(latest.Path, dest); err != nil {
		return apperrors.NewStorageError("failed to adopt inbox file", err).WithContext("file", latest.Path)
	}

	f.logger.InfoContext(ctx, "dataset adopted from inbox",
		slog.String("file", latest.Name),
		slog.Int64("bytes", latest.Size),
		slog.Time("modified", latest.ModTime))
	return nil
}

func withoutPath(list []files.FileInfo, path string) []files.FileInfo {
	out := make([]files.FileInfo, 0, len(list))
	for _, fi := range list {
		if fi.Path != path {
			out = append(out, fi)
		}
	}
	return out
}

// chain tries each fetcher in turn until one succeeds
type chain struct {
	fetchers []Fetcher
	logger   *slog.Logger
}

// FirstOf returns a fetcher that tries fetchers in order. Its error joins
// the error of every fetcher.
func FirstOf(logger *slog.Logger, fetchers ...Fetcher) Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(fetchers) == 1 {
		return fetchers[0]
	}
	return &chain{fetchers: fetchers, logger: logger}
}

func (c *chain) Name() string {
	names := make([]string, len(c.fetchers))
	for i, f := range c.fetchers {
		names[i] = f.Name()
	}
	return strings.Join(names, ",")
}

func (c *chain) Fetch(ctx context.Context, dest string) error {
	var errs []error
	for _, f := range c.fetchers {
		err := f.Fetch(ctx, dest)
		if err == nil {
			return nil
		}
		c.logger.DebugContext(ctx, "fetcher failed",
			slog.String("fetcher", f.Name()),
			slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return apperrors.NewNetworkError("no fetcher configured", nil)
	}
	return errors.Join(errs...)
}
