package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables read by the CLI. Credential variables let scripts
// run commands without a terminal prompt.
const (
	EnvConfigPath    = "DRIVE_CONFIG_PATH"
	EnvHome          = "DRIVE_HOME"
	EnvEmail         = "DRIVE_EMAIL"
	EnvPassword      = "DRIVE_PASSWORD"
	EnvPassphrase    = "DRIVE_PASSPHRASE"
	EnvAdminEmail    = "DRIVE_ADMIN_EMAIL"
	EnvAdminPassword = "DRIVE_ADMIN_PASSWORD"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DRIVE_CONFIG_PATH: config file location (default: ~/.config/drive.toml)
//   - DRIVE_HOME: base directory for drive data (default: ~/.local/share/drive)
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

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "drive.toml"), nil
}

// getBaseDir falls back to the XDG data directory.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "drive"), nil
}

// Credentials are an email and password pair, typically from the environment.
type Credentials struct {
	Email    string
	Password string
}

// Complete reports whether both fields are set.
func (c Credentials) Complete() bool {
	return c.Email != "" && c.Password != ""
}

// CredentialsFromEnv reads DRIVE_EMAIL and DRIVE_PASSWORD.
func CredentialsFromEnv() Credentials {
	return Credentials{Email: os.Getenv(EnvEmail), Password: os.Getenv(EnvPassword)}
}

// AdminCredentialsFromEnv reads DRIVE_ADMIN_EMAIL and DRIVE_ADMIN_PASSWORD.
func AdminCredentialsFromEnv() Credentials {
	return Credentials{Email: os.Getenv(EnvAdminEmail), Password: os.Getenv(EnvAdminPassword)}
}
