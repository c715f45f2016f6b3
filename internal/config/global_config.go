package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalConfigDir returns the per-user configuration directory. Settings
// there apply to every repository unless a repository config overrides them.
func GlobalConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "mendbot"), nil
}

// GlobalConfigPath returns the per-user configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureGlobalConfigFile ensures the per-user configuration file exists.
// If it does not, it is created from DefaultConfigYAML. The returned bool
// reports whether the file was created.
func EnsureGlobalConfigFile() (string, bool, error) {
	path, err := GlobalConfigPath()
	if err != nil {
		return "", false, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		return path, false, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, fmt.Errorf("checking global config: %w", statErr)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", false, fmt.Errorf("creating global config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigYAML), 0o600); err != nil {
		return "", false, fmt.Errorf("creating global config: %w", err)
	}
	return path, true, nil
}
