package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const defaultAppEnv = "dev"

// loadEnvFiles loads <dir>/.env and then <dir>/.env.<APP_ENV> over it.
// Missing files are skipped; the returned list names the files that loaded.
func loadEnvFiles(dir string) ([]string, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = defaultAppEnv
	}

	var loaded []string

	base := filepath.Join(dir, ".env")
	if err := godotenv.Load(base); err == nil {
		loaded = append(loaded, base)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", base, err)
	}

	envFile := filepath.Join(dir, ".env."+appEnv)
	if err := godotenv.Overload(envFile); err == nil {
		loaded = append(loaded, envFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	return loaded, nil
}
