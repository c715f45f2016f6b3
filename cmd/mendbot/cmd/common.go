package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// flagBinding maps a command-line flag to a config key. Only flags the user
// actually set override the loaded configuration.
type flagBinding struct {
	flag string
	key  string
}

var persistentBindings = []flagBinding{
	{"log-level", "log.level"},
	{"log-format", "log.format"},
}

// resolveRepo returns the absolute target directory.
func resolveRepo(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("target path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("target path %s is not a directory", abs)
	}
	return abs, nil
}

// loadConfig loads and validates configuration for repo, applying any flags
// the user set.
func loadConfig(cmd *cobra.Command, repo string, bindings ...flagBinding) (*config.Config, error) {
	loader := config.NewLoader().WithRepo(repo)
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}

	all := append(append([]flagBinding{}, persistentBindings...), bindings...)
	for _, b := range all {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := loader.Viper().BindPFlag(b.key, f); err != nil {
			return nil, fmt.Errorf("binding --%s: %w", b.flag, err)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger.
func newLogger(cfg *config.Config, verbose bool) *logging.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		Output:  os.Stderr,
		NoColor: noColor,
		Redact:  cfg.Log.Redact,
	})
}

// resolvePath places a configured output path under the repository's state
// directory. key names the setting in errors.
func resolvePath(repo, key, path string) (string, error) {
	out, err := fsutil.StatePath(repo, path)
	if err != nil {
		return "", core.ErrValidation(core.CodeInvalidConfig, key+": "+err.Error())
	}
	return out, nil
}

// useColor reports whether w is a terminal and colour is allowed.
func useColor(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
