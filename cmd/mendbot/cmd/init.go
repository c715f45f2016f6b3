package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
)

var (
	initForce  bool
	initGlobal bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Create .mendbot/config.yaml in the target repository with the default
settings. The .mendbot directory ignores itself, so nothing written there
shows up in git status.

With --global the per-user configuration (~/.config/mendbot/config.yaml) is
created instead; it applies to every repository.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "create the per-user configuration instead")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if initGlobal {
		path, created, err := config.EnsureGlobalConfigFile()
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	}

	repo, err := resolveRepo(args)
	if err != nil {
		return err
	}
	dir, err := fsutil.EnsureStateDir(repo)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := fsutil.WriteFileAtomic(path, []byte(config.DefaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
