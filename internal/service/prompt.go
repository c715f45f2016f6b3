package service

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
	"github.com/hugo-lorenzo-mato/mendbot/internal/fsutil"
	"github.com/hugo-lorenzo-mato/mendbot/internal/logging"
)

//go:embed prompts/fix-test.md
var defaultFixPrompt string

// Placeholders recognised in fix prompt templates. Any other brace sequence
// is left untouched.
const (
	PlaceholderTestName   = "{test_name}"
	PlaceholderTestOutput = "{test_output}"
)

// DefaultPromptFile is looked up in the repository root when no prompt file
// is configured explicitly.
const DefaultPromptFile = "prompt-fix.md"

// noOutput is substituted when the failing run captured nothing.
const noOutput = "No previous output available"

// PromptTemplate is a fix prompt with the two placeholders.
type PromptTemplate struct {
	Text string
	// Source is the file the template came from, or "builtin".
	Source string
}

// DefaultPromptTemplate returns the built-in template.
func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{Text: defaultFixPrompt, Source: "builtin"}
}

// LoadPromptTemplate reads a template from path.
func LoadPromptTemplate(path string) (PromptTemplate, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("reading prompt template: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return PromptTemplate{}, core.ErrValidation(core.CodeEmptyPrompt, "prompt template is empty: "+path)
	}
	return PromptTemplate{Text: string(data), Source: path}, nil
}

// Render substitutes the test name and failure output in a single pass, so
// placeholder-like text inside the output is never expanded again.
func (t PromptTemplate) Render(name core.TestName, output string) (string, error) {
	if strings.TrimSpace(output) == "" {
		output = noOutput
	}
	rendered := strings.NewReplacer(
		PlaceholderTestName, string(name),
		PlaceholderTestOutput, output,
	).Replace(t.Text)

	if strings.TrimSpace(rendered) == "" {
		return "", core.ErrValidation(core.CodeEmptyPrompt, "rendered prompt is empty")
	}
	if len(rendered) > core.MaxPromptLength {
		return "", core.ErrValidation(core.CodePromptTooLong,
			fmt.Sprintf("rendered prompt is %d bytes (max %d)", len(rendered), core.MaxPromptLength))
	}
	return rendered, nil
}

// PromptSource resolves the active template and, when watching, reloads the
// file after it changes on disk. Reloads are applied lazily by Current so a
// template never changes in the middle of an iteration.
type PromptSource struct {
	path    string
	logger  *logging.Logger
	mu      sync.RWMutex
	current PromptTemplate

	watcher *fsnotify.Watcher
	stale   atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPromptSource resolves the template for repoPath. An explicit file must
// exist; otherwise DefaultPromptFile is used when present and the built-in
// template when not.
func NewPromptSource(repoPath, file string, logger *logging.Logger) (*PromptSource, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	explicit := file != ""
	if !explicit {
		file = DefaultPromptFile
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(repoPath, file)
	}

	src := &PromptSource{logger: logger}
	tmpl, err := LoadPromptTemplate(file)
	switch {
	case err == nil:
		src.path = file
		src.current = tmpl
		logger.Info("using prompt template", "path", file)
	case !explicit && errors.Is(err, fs.ErrNotExist):
		logger.Warn("prompt file not found, using built-in template", "path", file)
		src.current = DefaultPromptTemplate()
	case errors.Is(err, fs.ErrNotExist):
		return nil, core.ErrValidation(core.CodeInvalidConfig, "prompt file not found: "+file).WithCause(err)
	default:
		return nil, err
	}
	return src, nil
}

// Path returns the template file, or "" for the built-in template.
func (p *PromptSource) Path() string {
	return p.path
}

// Current returns the active template, reloading it first if the file
// changed since the last call. A failed reload keeps the previous template.
func (p *PromptSource) Current() PromptTemplate {
	if p.stale.Swap(false) {
		tmpl, err := LoadPromptTemplate(p.path)
		if err != nil {
			p.logger.Warn("prompt reload failed, keeping previous template", "path", p.path, "error", err)
		} else {
			p.mu.Lock()
			p.current = tmpl
			p.mu.Unlock()
			p.logger.Info("prompt template reloaded", "path", p.path)
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Watch starts watching the template file. It is a no-op for the built-in
// template. The parent directory is watched because editors usually replace
// files instead of writing them in place.
func (p *PromptSource) Watch() error {
	if p.path == "" || p.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating prompt watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(p.path), err)
	}
	p.watcher = watcher
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.watchLoop()
	return nil
}

func (p *PromptSource) watchLoop() {
	defer close(p.done)
	target := filepath.Clean(p.path)
	for {
		select {
		case <-p.stop:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				p.stale.Store(true)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Debug("prompt watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (p *PromptSource) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.stop)
	err := p.watcher.Close()
	<-p.done
	p.watcher = nil
	return err
}
