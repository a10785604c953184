package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("STUDYLINK_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("STUDYLINK_HOME", "/custom/studylink")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/studylink" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/studylink")
		}
		if defaults["log_dir"] != "/custom/studylink/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/studylink/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("STUDYLINK_CONFIG_PATH", "")
		t.Setenv("STUDYLINK_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "studylink.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "studylink")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("LoadEnvFile() error = %v, want nil", err)
		}
	})

	t.Run("sets unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		content := "STUDYLINK_HOME=/from/dotenv\nSTUDYLINK_CONFIG_PATH=/from/dotenv.toml\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		t.Setenv("STUDYLINK_CONFIG_PATH", "/already/set.toml")
		t.Setenv("STUDYLINK_HOME", "")
		os.Unsetenv("STUDYLINK_HOME")

		if err := LoadEnvFile(path); err != nil {
			t.Fatalf("LoadEnvFile() error = %v", err)
		}

		if got := os.Getenv("STUDYLINK_HOME"); got != "/from/dotenv" {
			t.Errorf("STUDYLINK_HOME = %q, want /from/dotenv", got)
		}
		if got := os.Getenv("STUDYLINK_CONFIG_PATH"); got != "/already/set.toml" {
			t.Errorf("STUDYLINK_CONFIG_PATH = %q, want the existing value", got)
		}
	})
}
