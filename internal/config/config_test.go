package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, time.Hour, cfg.Source.MaxAge)
				assert.Equal(t, ";", cfg.Source.Delimiter)
				assert.Equal(t, []int{1, 100}, cfg.Transform.Thresholds)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.True(t, cfg.Server.RateLimit.Enabled)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
			},
		},
		{
			name: "file overrides defaults",
			file: `
source:
  url: https://example.org/HIST_PAINEL_COVIDBR.xlsx
  max_age: 30m
transform:
  thresholds: [1, 100, 1000]
server:
  port: 9090
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://example.org/HIST_PAINEL_COVIDBR.xlsx", cfg.Source.URL)
				assert.Equal(t, 30*time.Minute, cfg.Source.MaxAge)
				assert.Equal(t, []int{1, 100, 1000}, cfg.Transform.Thresholds)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "env overrides file",
			file: "server:\n  port: 9090\nlogging:\n  level: warn\n",
			env: map[string]string{
				"COVID_SERVER_PORT":          "7070",
				"COVID_TRANSFORM_THRESHOLDS": "1,50",
				"COVID_SOURCE_ENCODING":      "latin-1",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, []int{1, 50}, cfg.Transform.Thresholds)
				assert.Equal(t, "latin-1", cfg.Source.Encoding)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"COVID_SERVER_PORT": "70000"},
			wantErr: "server.port",
		},
		{
			name:    "invalid threshold",
			file:    "transform:\n  thresholds: [0]\n",
			wantErr: "transform.thresholds[0]",
		},
		{
			name:    "invalid url",
			env:     map[string]string{"COVID_SOURCE_URL": "not a url"},
			wantErr: "source.url",
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"COVID_SOURCE_MAX_AGE": "soon"},
			wantErr: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateReportsAllFields(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Logging.Output = "syslog"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.output")
}

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.BaseDir = base
	cfg.Source.InboxDir = "inbox"

	p, err := cfg.ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data", "dados.xlsx"), p.DataFile)
	assert.Equal(t, filepath.Join(base, "inbox"), p.InboxDir)
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)

	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("example config drifted from Default() (-want +got):\n%s", diff)
	}
}
