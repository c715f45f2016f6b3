package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	tmpl := PromptTemplate{Text: "fix {test_name}\n---\n{test_output}\n{other}"}

	got, err := tmpl.Render("tests/test_a.py::test_x", "assert 1 == 2")
	require.NoError(t, err)
	assert.Equal(t, "fix tests/test_a.py::test_x\n---\nassert 1 == 2\n{other}", got)
}

func TestRender_SinglePass(t *testing.T) {
	tmpl := PromptTemplate{Text: "{test_output} / {test_name}"}

	got, err := tmpl.Render("t::a", "saw {test_name} in output")
	require.NoError(t, err)
	assert.Equal(t, "saw {test_name} in output / t::a", got)
}

func TestRender_EmptyOutputPlaceholder(t *testing.T) {
	got, err := DefaultPromptTemplate().Render("t::a", "  \n")
	require.NoError(t, err)
	assert.Contains(t, got, noOutput)
	assert.Contains(t, got, "Test to fix: t::a")
}

func TestRender_TooLong(t *testing.T) {
	tmpl := PromptTemplate{Text: "{test_output}"}

	_, err := tmpl.Render("t::a", strings.Repeat("x", core.MaxPromptLength+1))
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodePromptTooLong))
}

func TestRender_Empty(t *testing.T) {
	_, err := PromptTemplate{Text: "   "}.Render("t::a", "out")
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeEmptyPrompt))
}

func TestLoadPromptTemplate_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.md")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o600))

	_, err := LoadPromptTemplate(path)
	assert.True(t, core.IsCode(err, core.CodeEmptyPrompt))
}

func TestNewPromptSource_DefaultFileMissing(t *testing.T) {
	src, err := NewPromptSource(t.TempDir(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "", src.Path())
	assert.Equal(t, "builtin", src.Current().Source)
	assert.NoError(t, src.Watch())
	assert.NoError(t, src.Close())
}

func TestNewPromptSource_DefaultFilePresent(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(repo, DefaultPromptFile), []byte("custom {test_name}"), 0o600))

	src, err := NewPromptSource(repo, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom {test_name}", src.Current().Text)
}

func TestNewPromptSource_ExplicitMissing(t *testing.T) {
	_, err := NewPromptSource(t.TempDir(), "nope.md", nil)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeInvalidConfig))
}

func TestPromptSource_WatchReloads(t *testing.T) {
	repo := t.TempDir()
	path := filepath.Join(repo, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("v1 {test_name}"), 0o600))

	src, err := NewPromptSource(repo, path, nil)
	require.NoError(t, err)
	require.NoError(t, src.Watch())
	defer src.Close()

	require.NoError(t, os.WriteFile(path, []byte("v2 {test_name}"), 0o600))
	require.Eventually(t, src.stale.Load, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "v2 {test_name}", src.Current().Text)
	assert.False(t, src.stale.Load())
}

func TestPromptSource_FailedReloadKeepsPrevious(t *testing.T) {
	repo := t.TempDir()
	path := filepath.Join(repo, "prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	src, err := NewPromptSource(repo, path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	src.stale.Store(true)
	assert.Equal(t, "v1", src.Current().Text)
}
