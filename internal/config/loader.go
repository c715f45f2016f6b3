package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v           *viper.Viper
	configFile  string
	envPrefix   string
	searchPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "MENDBOT",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithRepo adds the repository's .mendbot directory to the search path.
func (l *Loader) WithRepo(repoPath string) *Loader {
	l.searchPaths = append(l.searchPaths, filepath.Join(repoPath, ".mendbot"))
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (MENDBOT_*)
// 3. Repository config (<repo>/.mendbot/config.yaml)
// 4. User config (~/.config/mendbot/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")

		for _, p := range l.searchPaths {
			l.v.AddConfigPath(p)
		}
		if dir, err := GlobalConfigDir(); err == nil {
			l.v.AddConfigPath(dir)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
	l.v.SetDefault("log.redact", []string{})

	l.v.SetDefault("tests.command", "uv run pytest")
	l.v.SetDefault("tests.paths", []string{"tests"})
	l.v.SetDefault("tests.args", []string{})
	l.v.SetDefault("tests.suite_timeout", "10m")
	l.v.SetDefault("tests.test_timeout", "60s")

	l.v.SetDefault("agent.name", "claude")
	l.v.SetDefault("agent.path", "")
	l.v.SetDefault("agent.model", "")
	l.v.SetDefault("agent.args", []string{})
	l.v.SetDefault("agent.timeout", "30m")
	l.v.SetDefault("agent.continue", false)

	l.v.SetDefault("loop.max_iterations", 0)
	l.v.SetDefault("loop.delay", "0s")
	l.v.SetDefault("loop.regression", RegressionFull)
	l.v.SetDefault("loop.dry_run", false)

	l.v.SetDefault("selection.seed", 0)

	l.v.SetDefault("prompt.file", "")
	l.v.SetDefault("prompt.watch", false)

	l.v.SetDefault("state.enabled", true)
	l.v.SetDefault("state.path", ".mendbot/history.db")

	l.v.SetDefault("report.path", "")
	l.v.SetDefault("metrics.path", "")

	l.v.SetDefault("diagnostics.preflight", true)
	l.v.SetDefault("diagnostics.min_free_memory_mb", 256)
	l.v.SetDefault("diagnostics.min_free_disk_mb", 512)
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}
