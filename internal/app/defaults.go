package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - STUDYLINK_CONFIG_PATH: config file location (default: ~/.config/studylink.toml)
//   - STUDYLINK_HOME: base directory for studylink data (default: ~/.local/share/studylink)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// getConfigPath returns the config file path, checking STUDYLINK_CONFIG_PATH env var first,
// then falling back to the default ~/.config/studylink.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("STUDYLINK_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "studylink.toml"), nil
}

// getBaseDir returns the base directory for studylink data, checking STUDYLINK_HOME env var first,
// then falling back to the XDG default ~/.local/share/studylink.
func getBaseDir() (string, error) {
	if path := os.Getenv("STUDYLINK_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "studylink"), nil
}
