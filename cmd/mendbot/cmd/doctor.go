package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/cli"
	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/git"
	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/pytest"
	"github.com/hugo-lorenzo-mato/mendbot/internal/config"
	"github.com/hugo-lorenzo-mato/mendbot/internal/diagnostics"
)

var doctorSystem bool

var doctorCmd = &cobra.Command{
	Use:   "doctor [path]",
	Short: "Check that a repository is ready for a fix session",
	Long: `Verify the target is a clean git repository, the test command and the
configured agent can be found, and the host has enough free memory and disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorSystem, "system", true, "print host information")
	rootCmd.AddCommand(doctorCmd)
}

type doctorCheck struct {
	name     string
	required bool
	run      func(ctx context.Context) (string, error)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	repo, err := resolveRepo(args)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Validating configuration...")
	cfg, err := loadConfig(cmd, repo)
	if err != nil {
		fmt.Fprintf(w, "  ✗ %v\n", err)
		return fmt.Errorf("configuration check failed")
	}
	fmt.Fprintln(w, "  ✓ configuration valid")
	fmt.Fprintln(w)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	fmt.Fprintln(w, "Checking dependencies...")
	requiredOk := true
	for _, check := range doctorChecks(cfg, repo) {
		detail, err := check.run(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(w, "  ✓ %s%s\n", check.name, suffix(detail))
		case check.required:
			requiredOk = false
			fmt.Fprintf(w, "  ✗ %s: %v\n", check.name, err)
		default:
			fmt.Fprintf(w, "  ○ %s: %v (optional)\n", check.name, err)
		}
	}
	fmt.Fprintln(w)

	if doctorSystem {
		printSystemInfo(w, repo)
	}

	if !requiredOk {
		fmt.Fprintln(w, "Some required checks failed")
		return fmt.Errorf("dependency check failed")
	}
	fmt.Fprintln(w, "Ready to run")
	return nil
}

func doctorChecks(cfg *config.Config, repo string) []doctorCheck {
	return []doctorCheck{
		{
			name:     "git repository",
			required: true,
			run: func(ctx context.Context) (string, error) {
				client, err := git.NewClient(repo)
				if err != nil {
					return "", err
				}
				clean, err := client.IsClean(ctx)
				if err != nil {
					return "", err
				}
				if !clean {
					return "", fmt.Errorf("working tree has uncommitted changes")
				}
				commits, err := client.Log(ctx, 1)
				if err != nil || len(commits) == 0 {
					return "clean", nil
				}
				return fmt.Sprintf("clean at %.8s %s", commits[0].Hash, commits[0].Subject), nil
			},
		},
		{
			name:     "test command",
			required: true,
			run: func(ctx context.Context) (string, error) {
				runner, err := pytest.NewRunner(pytest.Config{Command: cfg.Tests.CommandArgs(), RepoPath: repo}, nil)
				if err != nil {
					return "", err
				}
				return cfg.Tests.Command, runner.Ping(ctx)
			},
		},
		{
			name:     "agent " + cfg.Agent.Name,
			required: true,
			run: func(ctx context.Context) (string, error) {
				registry := cli.NewRegistry()
				if err := registry.ConfigureFromConfig(cfg, repo); err != nil {
					return "", err
				}
				if err := registry.Ping(ctx, cfg.Agent.Name); err != nil {
					return "", err
				}
				return agentVersion(ctx, registry, cfg.Agent.Name), nil
			},
		},
		{
			name:     "host resources",
			required: false,
			run: func(context.Context) (string, error) {
				res := diagnostics.NewPreflight(diagnostics.PreflightConfig{
					Enabled:         true,
					MinFreeMemoryMB: cfg.Diagnostics.MinFreeMemoryMB,
					MinFreeDiskMB:   cfg.Diagnostics.MinFreeDiskMB,
					Path:            repo,
				}).Run()
				if !res.OK {
					return "", fmt.Errorf("%s", res.Summary())
				}
				return fmt.Sprintf("%d MB memory, %d MB disk free", res.Snapshot.FreeMemoryMB, res.Snapshot.FreeDiskMB), nil
			},
		},
	}
}

// agentVersion returns the CLI version of the built-in agents. Custom
// commands are not probed since they may not understand --version.
func agentVersion(ctx context.Context, registry *cli.Registry, name string) string {
	if name == "command" {
		return ""
	}
	agent, err := registry.Get(name)
	if err != nil {
		return ""
	}
	v, ok := agent.(interface {
		GetVersion(ctx context.Context, versionArg string) (string, error)
	})
	if !ok {
		return ""
	}
	version, err := v.GetVersion(ctx, "--version")
	if err != nil {
		return ""
	}
	return version
}

func printSystemInfo(w io.Writer, repo string) {
	fmt.Fprintln(w, "System:")
	for _, line := range diagnostics.CollectSystemInfo(repo).Lines() {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintln(w)
}

func suffix(detail string) string {
	if detail == "" {
		return ""
	}
	return " (" + detail + ")"
}
