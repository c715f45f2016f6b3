package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileScoped reads a file by opening a root at the file's directory.
// This scopes access to the intended directory and avoids path traversal.
func ReadFileScoped(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// StateDirName is the per-repository directory holding mendbot's private files.
const StateDirName = ".mendbot"

// EnsureStateDir creates <repo>/.mendbot with a self-ignoring .gitignore so
// nothing written there makes the working tree dirty or gets removed by
// `git clean -fd`.
func EnsureStateDir(repoPath string) (string, error) {
	dir := filepath.Join(repoPath, StateDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	ignore := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return dir, nil
	}
	if err := os.WriteFile(ignore, []byte("*\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing state dir .gitignore: %w", err)
	}
	return dir, nil
}

// StatePath places a configured output file so that writing it never dirties
// the working tree. Relative paths land under the state directory; a leading
// ".mendbot/" is accepted as-is. Absolute paths must lie outside the work
// tree or inside its state directory.
func StatePath(repoPath, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	stateDir := filepath.Join(repoPath, StateDirName)
	if !filepath.IsAbs(path) {
		cleaned := filepath.Clean(path)
		if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path %q escapes the repository", path)
		}
		if cleaned == StateDirName || strings.HasPrefix(cleaned, StateDirName+string(filepath.Separator)) {
			return filepath.Join(repoPath, cleaned), nil
		}
		return filepath.Join(stateDir, cleaned), nil
	}

	cleaned := filepath.Clean(path)
	if within(stateDir, cleaned) || !within(repoPath, cleaned) {
		return cleaned, nil
	}
	return "", fmt.Errorf("path %q is inside the working tree; use a relative path or one under %s", path, StateDirName)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
