package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are read by LoadEnvFiles when no files are given.
// Earlier files win because godotenv never overwrites a variable.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles copies KEY=value pairs from dotenv files into the process
// environment so Load picks them up. Missing files are skipped; variables
// already set in the environment are kept. It returns the files read.
func LoadEnvFiles(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}

	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
