// Package config provides centralized configuration management for the covid
// tool. It loads configuration from multiple sources, validates it and
// exposes the on-disk layout through the Paths type.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML configuration file (config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern COVID_<SECTION>_<FIELD>:
//
//	COVID_LOGGING_LEVEL=debug
//	COVID_SOURCE_URL=https://example.org/HIST_PAINEL_COVIDBR.xlsx
//	COVID_SOURCE_MAX_AGE=1h
//	COVID_TRANSFORM_THRESHOLDS=1,100,1000
//	COVID_SERVER_PORT=8080
//
// # Path Management
//
// Paths is the single source of truth for file locations:
//
//	data/dados.xlsx               current dataset
//	data/dados_old.xlsx           previous dataset, kept while refreshing
//	data/last_download_time.log   time of the last successful download
//	data/downloads/               inbox scanned for manually fetched files
//	data/reports/                 exported slices
//	logs/                         log files
//
// # Validation
//
// Load validates every section with go-playground/validator struct tags and
// reports all failing fields at once, named by their YAML path.
package config
