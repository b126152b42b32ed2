package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidcli/internal/errors"
	"covidcli/internal/shared/testutil"
)

func TestFileValidator_ValidateInputDirectory(t *testing.T) {
	tests := []struct {
		name      string
		setupFunc func(t *testing.T) string
		pattern   string
		wantType  apperrors.ErrorType
	}{
		{
			name: "valid directory with files",
			setupFunc: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "dados.xlsx"), []byte("test"), 0o644))
				return dir
			},
			pattern: "*.xlsx",
		},
		{
			name: "valid directory without files",
			setupFunc: func(t *testing.T) string {
				return t.TempDir()
			},
			pattern: "*.xlsx",
		},
		{
			name: "non-existent directory",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing")
			},
			wantType: apperrors.ErrTypeNotFound,
		},
		{
			name: "path is file not directory",
			setupFunc: func(t *testing.T) string {
				file := filepath.Join(t.TempDir(), "test.txt")
				require.NoError(t, os.WriteFile(file, []byte("test"), 0o644))
				return file
			},
			wantType: apperrors.ErrTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			dir := tt.setupFunc(t)

			err := validator.ValidateInputDirectory(dir, tt.pattern)

			if tt.wantType != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantType), err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	validator := NewFileValidator(nil)
	dir := filepath.Join(t.TempDir(), "new", "nested", "dir")

	require.NoError(t, validator.ValidateOutputDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe must be removed")
}

func TestFileValidator_ValidateDatasetFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantErr       bool
		errorContains string
	}{
		{
			name: "workbook",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "dados.xlsx")
				testutil.WriteDatasetWorkbook(t, path, testutil.NationalRecords())
				return path
			},
		},
		{
			name: "csv",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "dados.csv")
				require.NoError(t, os.WriteFile(path, []byte("regiao;data;casosAcumulado\n"), 0o644))
				return path
			},
		},
		{
			name: "workbook that is not a zip",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "dados.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("<html>error page</html>"), 0o644))
				return path
			},
			wantErr:       true,
			errorContains: "not a valid workbook",
		},
		{
			name: "empty file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "dados.csv")
				require.NoError(t, os.WriteFile(path, nil, 0o644))
				return path
			},
			wantErr:       true,
			errorContains: "empty",
		},
		{
			name: "temp Excel file",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "~$dados.xlsx")
				require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o644))
				return path
			},
			wantErr:       true,
			errorContains: "temporary",
		},
		{
			name: "unsupported extension",
			setupFunc: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "dados.json")
				require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
				return path
			},
			wantErr:       true,
			errorContains: "not a dataset file",
		},
		{
			name: "non-existent file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "dados.xlsx")
			},
			wantErr:       true,
			errorContains: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := NewFileValidator(slog.Default())
			path := tt.setupFunc(t)

			err := validator.ValidateDatasetFile(path)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileValidator_CountFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("dados%d.xlsx", i)), []byte("test"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("test"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.xlsx"), 0o755))

	validator := NewFileValidator(slog.Default())

	count, err := validator.CountFiles(dir, "*.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = validator.CountFiles(dir, "[")
	assert.Error(t, err)
}
