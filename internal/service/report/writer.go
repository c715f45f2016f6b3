package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

// Format selects the report encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// FormatForPath picks the format from the file extension. Anything that is
// not .json is written as markdown.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatMarkdown
}

// Redactor masks secrets in free text. *logging.Logger satisfies it with the
// patterns the session was configured with.
type Redactor interface {
	Sanitize(input string) string
}

// Write renders s and replaces the file at path atomically. A nil redactor
// uses the default secret patterns.
func Write(path string, s *Session, r Redactor) error {
	if path == "" {
		return nil
	}
	data, err := Render(s, FormatForPath(path), r)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// Render encodes s in the given format.
func Render(s *Session, format Format, r Redactor) ([]byte, error) {
	if r == nil {
		r = logging.NewSanitizer()
	}
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(redacted(s, r), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		return append(data, '\n'), nil
	case FormatMarkdown:
		fm := NewFrontmatter()
		fm.Set("type", "fix-session")
		fm.Set("session_id", s.ID)
		fm.Set("repo_path", s.RepoPath)
		fm.Set("agent", s.Agent)
		fm.Set("started_at", s.StartedAt.UTC().Format(time.RFC3339))
		fm.Set("finished_at", s.FinishedAt.UTC().Format(time.RFC3339))
		fm.Set("stop_reason", s.StopReason)
		fm.Set("iterations", s.Iterations())
		fm.Set("fixed", s.Fixed())
		fm.Set("passing", len(s.PreviouslyPassing))
		fm.Set("failing", len(s.Failing))
		header, err := fm.Render()
		if err != nil {
			return nil, err
		}
		// Attempt details quote agent errors and test output.
		body := r.Sanitize(renderSessionMarkdown(s))
		return []byte(header + body), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// redacted returns a copy of s with the free-text fields masked. Masking the
// encoded document instead could break its quoting.
func redacted(s *Session, r Redactor) *Session {
	out := *s
	out.RepoPath = r.Sanitize(s.RepoPath)
	out.Attempts = make([]core.AttemptRecord, len(s.Attempts))
	for i, a := range s.Attempts {
		a.Detail = r.Sanitize(a.Detail)
		out.Attempts[i] = a
	}
	return &out
}
