package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/config.toml")
		t.Setenv(EnvHome, "/custom/drive")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/drive" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/drive")
		}
		if defaults["log_dir"] != "/custom/drive/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/drive/log")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "drive.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "drive")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}
	})
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(EnvEmail, "a@example.com")
	t.Setenv(EnvPassword, "")
	t.Setenv(EnvAdminEmail, "root@example.com")
	t.Setenv(EnvAdminPassword, "secret")

	if c := CredentialsFromEnv(); c.Email != "a@example.com" || c.Complete() {
		t.Errorf("CredentialsFromEnv() = %+v", c)
	}
	if c := AdminCredentialsFromEnv(); !c.Complete() {
		t.Errorf("AdminCredentialsFromEnv() = %+v", c)
	}
}
