package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/mendbot/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

var (
	historyFormat  string
	historySession string
	historyTest    string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show past fix sessions and their attempts",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "output format (table, json, yaml)")
	historyCmd.Flags().StringVar(&historySession, "session", "", "show the attempts of one session")
	historyCmd.Flags().StringVar(&historyTest, "test", "", "show every recorded attempt on one test")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum sessions to list (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	switch historyFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", historyFormat)
	}
	if historySession != "" && historyTest != "" {
		return fmt.Errorf("--session and --test cannot be combined")
	}

	repo, err := resolveRepo(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, repo)
	if err != nil {
		return err
	}

	dbPath, err := resolvePath(repo, "state.path", cfg.State.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
		return nil
	}
	store, err := state.NewSQLiteHistoryStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	var attempts []core.AttemptRecord
	switch {
	case historySession != "":
		if _, err := store.GetSession(ctx, historySession); err != nil {
			return err
		}
		attempts, err = store.ListAttempts(ctx, historySession)
	case historyTest != "":
		attempts, err = store.ListAttemptsForTest(ctx, core.TestName(historyTest))
	default:
		return printSessions(ctx, w, store)
	}
	if err != nil {
		return err
	}
	if historyFormat == "table" {
		return printAttemptsTable(w, attempts)
	}
	return encode(w, historyFormat, attempts)
}

func printSessions(ctx context.Context, w io.Writer, store *state.SQLiteHistoryStore) error {
	sessions, err := store.ListSessions(ctx, historyLimit)
	if err != nil {
		return err
	}
	if historyFormat == "table" {
		return printSessionsTable(w, sessions)
	}
	return encode(w, historyFormat, sessionViews(sessions))
}

// sessionView is the serialised form of a session summary.
type sessionView struct {
	ID         string     `json:"id" yaml:"id"`
	RepoPath   string     `json:"repo_path" yaml:"repo_path"`
	Agent      string     `json:"agent" yaml:"agent"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	StopReason string     `json:"stop_reason" yaml:"stop_reason"`
	Iterations int        `json:"iterations" yaml:"iterations"`
	Fixed      int        `json:"fixed" yaml:"fixed"`
	Passing    int        `json:"passing" yaml:"passing"`
	Failing    int        `json:"failing" yaml:"failing"`
}

func sessionViews(sessions []core.SessionSummary) []sessionView {
	out := make([]sessionView, len(sessions))
	for i, s := range sessions {
		out[i] = sessionView(s)
	}
	return out
}

func encode(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSessionsTable(w io.Writer, sessions []core.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions recorded yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tAGENT\tSTOP\tITER\tFIXED\tPASSING\tFAILING")
	for _, s := range sessions {
		stop := s.StopReason
		if s.FinishedAt == nil {
			stop = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04"), s.Agent, stop,
			s.Iterations, s.Fixed, s.Passing, s.Failing)
	}
	return tw.Flush()
}

func printAttemptsTable(w io.Writer, attempts []core.AttemptRecord) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTEST\tOUTCOME\tCOMMIT\tDURATION\tDETAIL")
	for _, a := range attempts {
		commit := "-"
		if a.Committed && a.CommitID != "" {
			commit = a.CommitID
			if len(commit) > 8 {
				commit = commit[:8]
			}
		}
		detail := a.Detail
		if len(a.Regressions) > 0 {
			names := make([]string, len(a.Regressions))
			for i, n := range a.Regressions {
				names[i] = string(n)
			}
			detail = "regressed: " + strings.Join(names, ", ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			a.Iteration, a.Test, a.Outcome, commit, a.Duration.Round(time.Second), detail)
	}
	return tw.Flush()
}
