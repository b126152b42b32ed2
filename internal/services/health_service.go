package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"covidcli/internal/acquisition"
	"covidcli/internal/config"
)

// SnapshotProvider exposes the last loaded snapshot without loading.
type SnapshotProvider interface {
	Last() (*acquisition.Snapshot, bool)
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	snapshots SnapshotProvider
	startTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
	Dataset   *DatasetHealth           `json:"dataset,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DatasetHealth describes the last loaded snapshot
type DatasetHealth struct {
	Loaded     bool      `json:"loaded"`
	Stale      bool      `json:"stale"`
	Current    bool      `json:"current"`
	Rows       int       `json:"rows"`
	Invalid    int       `json:"invalid_rows"`
	SourceDate time.Time `json:"source_date,omitempty"`
	LoadedAt   time.Time `json:"loaded_at,omitempty"`
	Path       string    `json:"path,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version string, paths *config.Paths, snapshots SnapshotProvider, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		paths:     paths,
		snapshots: snapshots,
		startTime: time.Now(),
		now:       time.Now,
		logger:    logger,
	}
}

// HealthCheck returns overall health status. A stale dataset degrades the
// status; a dataset that never loaded does not, since the first request
// triggers the load.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: hs.now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"data_dir": hs.checkDataDir(),
		},
		Dataset: hs.datasetHealth(),
	}

	if status.Services["data_dir"].Status != "ready" {
		status.Status = "unhealthy"
	} else if status.Dataset.Stale {
		status.Status = "degraded"
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Bool("dataset_loaded", status.Dataset.Loaded))

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: hs.now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.Format(time.RFC3339),
	}
}

func (hs *HealthService) datasetHealth() *DatasetHealth {
	if hs.snapshots == nil {
		return &DatasetHealth{}
	}
	snap, ok := hs.snapshots.Last()
	if !ok {
		return &DatasetHealth{}
	}
	return &DatasetHealth{
		Loaded:     true,
		Stale:      snap.Stale,
		Current:    snap.Current,
		Rows:       len(snap.Records),
		Invalid:    snap.Validation.Rows - snap.Validation.Valid,
		SourceDate: snap.SourceDate,
		LoadedAt:   snap.LoadedAt,
		Path:       snap.Path,
	}
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "ready"}
	}
	info, err := os.Stat(hs.paths.DataDir)
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not accessible: %v", err),
		}
	}
	if !info.IsDir() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data path is not a directory: %s", hs.paths.DataDir),
		}
	}
	return ServiceHealth{Status: "ready"}
}
