package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from the first .env file found in the
// working directory, its parents, or next to the executable. Variables already
// present in the environment take precedence. It returns the loaded path, or
// "" when no file was found.
func LoadDotEnv() (string, error) {
	envFiles := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		envFiles = append(envFiles,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		// godotenv.Load never overrides variables that are already set
		if err := godotenv.Load(envFile); err != nil {
			return envFile, err
		}
		return envFile, nil
	}

	return "", nil
}
