package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	BaseDir    string
	DataDir    string
	InboxDir   string
	ReportsDir string
	LogsDir    string

	// Acquisition files
	DataFile    string
	OldDataFile string
	DownloadLog string
}

// NewPaths lays out the directory tree under baseDir. Relative dataDir,
// logsDir and dataFile are resolved against baseDir and dataDir.
func NewPaths(baseDir, dataDir, logsDir, dataFile string) *Paths {
	p := &Paths{BaseDir: baseDir}
	p.DataDir = p.resolve(dataDir)
	p.LogsDir = p.resolve(logsDir)
	p.InboxDir = filepath.Join(p.DataDir, "downloads")
	p.ReportsDir = filepath.Join(p.DataDir, "reports")

	if filepath.IsAbs(dataFile) {
		p.DataFile = dataFile
	} else {
		p.DataFile = filepath.Join(p.DataDir, dataFile)
	}
	p.OldDataFile = oldFileName(p.DataFile)
	p.DownloadLog = filepath.Join(p.DataDir, DownloadLogName)
	return p
}

// GetPaths returns the default layout relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return NewPaths(filepath.Dir(exe), DefaultDataDir, DefaultLogsDir, DataFileName), nil
}

// resolve anchors a relative path at the base directory
func (p *Paths) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

// oldFileName maps dados.xlsx to dados_old.xlsx
func oldFileName(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + "_old" + ext
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.InboxDir,
		p.ReportsDir,
		p.LogsDir,
	}

	logger := slog.Default()

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetInboxPath returns the path for a file in the inbox directory
func (p *Paths) GetInboxPath(filename string) string {
	return filepath.Join(p.InboxDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs detailed path resolution information for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("inbox", p.InboxDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("data", p.DataFile),
			slog.String("old_data", p.OldDataFile),
			slog.String("download_log", p.DownloadLog),
		))
}
