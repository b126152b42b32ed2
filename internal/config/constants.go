package config

import "time"

// Application constants
const (
	AppName = "covid"

	// File names used by the acquisition layer
	DataFileName    = "dados.xlsx"
	OldDataFileName = "dados_old.xlsx"
	DownloadLogName = "last_download_time.log"

	// DownloadLogLayout is the timestamp format written to the download log
	DownloadLogLayout = "2006-01-02, 15:04:05"

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultInboxDir   = "data/downloads"
	DefaultReportsDir = "data/reports"
	DefaultLogFile    = "logs/covid.log"

	// Acquisition
	DefaultDownloadMaxAge = time.Hour
	DefaultHTTPTimeout    = time.Minute

	// Rate Limiting
	DefaultRateLimitRPS = 20
	DefaultBurstSize    = 40

	DefaultLogLevel = "info"
)
