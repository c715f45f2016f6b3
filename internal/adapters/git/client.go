package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// Client wraps git CLI operations and implements core.TreeState.
//
// The client remembers the last known-good commit: the HEAD it was created
// on, advanced by every successful Commit. Rollback returns there, so commits
// made by an agent behind the controller's back are discarded as well.
type Client struct {
	repoPath string
	timeout  time.Duration

	mu   sync.Mutex
	base string
}

// NewClient creates a new git client for the work tree at repoPath.
func NewClient(repoPath string) (*Client, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	client := &Client{
		repoPath: absPath,
		timeout:  30 * time.Second,
	}

	if err := client.verifyRepo(); err != nil {
		return nil, err
	}

	head, err := client.CurrentCommit(context.Background())
	if err != nil {
		return nil, core.ErrValidation(core.CodeNotGitRepo,
			fmt.Sprintf("%s has no commits", absPath)).WithCause(err)
	}
	client.base = head

	return client, nil
}

// verifyRepo checks if path is inside a git work tree.
func (c *Client) verifyRepo() error {
	out, err := c.run(context.Background(), "rev-parse", "--is-inside-work-tree")
	if err != nil || out != "true" {
		return core.ErrValidation(core.CodeNotGitRepo, fmt.Sprintf("%s is not a git repository", c.repoPath)).WithCause(err)
	}
	return nil
}

// run executes a git command and returns its trimmed stdout.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	out, err := c.runRaw(ctx, args...)
	return strings.TrimSpace(out), err
}

// runRaw executes a git command and returns stdout untouched.
func (c *Client) runRaw(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", core.ErrTimeout("git command timed out")
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}

	return stdout.String(), nil
}

// Base returns the last known-good commit.
func (c *Client) Base() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// Status returns the working tree status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	output, err := c.runRaw(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}

	return parseStatus(output), nil
}

// Status represents git working tree status.
type Status struct {
	Staged    []string
	Modified  []string
	Untracked []string
}

// IsClean returns true if there are no changes.
func (s *Status) IsClean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 && len(s.Untracked) == 0
}

// parseStatus parses `git status --porcelain` (v1) output.
func parseStatus(output string) *Status {
	status := &Status{
		Staged:    make([]string, 0),
		Modified:  make([]string, 0),
		Untracked: make([]string, 0),
	}

	for _, line := range strings.Split(output, "\n") {
		if len(line) < 4 {
			continue
		}
		xy, path := line[:2], line[3:]
		if _, to, ok := strings.Cut(path, " -> "); ok {
			path = to
		}
		path = strings.Trim(path, `"`)

		if xy == "??" {
			status.Untracked = append(status.Untracked, path)
			continue
		}
		if xy[0] != ' ' {
			status.Staged = append(status.Staged, path)
		}
		if xy[1] != ' ' {
			status.Modified = append(status.Modified, path)
		}
	}

	return status
}

// IsClean reports whether the tree matches the last known-good commit: no
// uncommitted changes and HEAD not moved.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	if !status.IsClean() {
		return false, nil
	}
	head, err := c.CurrentCommit(ctx)
	if err != nil {
		return false, err
	}
	return head == c.Base(), nil
}

// CurrentCommit returns the current commit hash.
func (c *Client) CurrentCommit(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "HEAD")
}

// Commit stages every change and records it as one commit on top of the last
// known-good commit. A clean tree yields NOTHING_TO_COMMIT.
func (c *Client) Commit(ctx context.Context, message string) (string, error) {
	clean, err := c.IsClean(ctx)
	if err != nil {
		return "", err
	}
	if clean {
		return "", core.ErrNothingToCommit()
	}

	base := c.Base()
	head, err := c.CurrentCommit(ctx)
	if err != nil {
		return "", err
	}
	if head != base {
		// Fold commits made during the attempt into ours.
		if _, err := c.run(ctx, "reset", "--soft", base); err != nil {
			return "", err
		}
	}

	if _, err := c.run(ctx, "add", "-A"); err != nil {
		return "", err
	}
	staged, err := c.run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return "", err
	}
	if staged == "" {
		return "", core.ErrNothingToCommit()
	}
	if _, err := c.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	id, err := c.CurrentCommit(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.base = id
	c.mu.Unlock()
	return id, nil
}

// Rollback discards every change since the last known-good commit, tracked
// and untracked. Ignored files are kept. Calling it on a clean tree is a no-op.
func (c *Client) Rollback(ctx context.Context) error {
	if _, err := c.run(ctx, "reset", "--hard", c.Base()); err != nil {
		return err
	}
	_, err := c.run(ctx, "clean", "-fd")
	return err
}

// DiffStat summarizes the pending change relative to the last known-good
// commit. It stages the working tree as a side effect.
func (c *Client) DiffStat(ctx context.Context) (core.DiffStat, error) {
	if _, err := c.run(ctx, "add", "-A"); err != nil {
		return core.DiffStat{}, err
	}
	raw, err := c.run(ctx, "diff", "--cached", "--no-color", "--no-ext-diff", c.Base())
	if err != nil {
		return core.DiffStat{}, err
	}
	return parseDiffStat(raw)
}

func parseDiffStat(raw string) (core.DiffStat, error) {
	var stat core.DiffStat
	if strings.TrimSpace(raw) == "" {
		return stat, nil
	}

	files, err := diff.ParseMultiFileDiff([]byte(raw + "\n"))
	if err != nil {
		return stat, fmt.Errorf("parsing diff: %w", err)
	}
	for _, f := range files {
		name := strings.TrimPrefix(f.NewName, "b/")
		if f.NewName == "/dev/null" {
			name = strings.TrimPrefix(f.OrigName, "a/")
		}
		stat.Files = append(stat.Files, name)

		s := f.Stat()
		stat.LinesAdded += int(s.Added + s.Changed)
		stat.LinesRemoved += int(s.Deleted + s.Changed)
	}
	return stat, nil
}

// Log returns recent commit history.
func (c *Client) Log(ctx context.Context, count int) ([]Commit, error) {
	output, err := c.run(ctx, "log", fmt.Sprintf("-n%d", count),
		"--format=%H|%an|%ae|%s|%ci")
	if err != nil {
		return nil, err
	}

	commits := make([]Commit, 0)
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 5)
		if len(parts) == 5 {
			date, _ := time.Parse("2006-01-02 15:04:05 -0700", parts[4])
			commits = append(commits, Commit{
				Hash:        parts[0],
				AuthorName:  parts[1],
				AuthorEmail: parts[2],
				Subject:     parts[3],
				Date:        date,
			})
		}
	}
	return commits, nil
}

// Commit represents a git commit.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Subject     string
	Date        time.Time
}

// RepoPath returns the repository path.
func (c *Client) RepoPath() string {
	return c.repoPath
}

// WithTimeout sets the command timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}
