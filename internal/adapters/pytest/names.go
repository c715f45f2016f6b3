package pytest

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

const (
	nodeSep   = "::"
	moduleExt = ".py"
)

// DottedToSelector converts a canonical test name into a pytest node id.
//
//	tests.unit.test_lexer::TestNumbers::test_float[1.5]
//	tests/unit/test_lexer.py::TestNumbers::test_float[1.5]
//
// Only the module part, before the first "::", is rewritten. Names without
// "::" are returned unchanged.
func DottedToSelector(name core.TestName) string {
	module, rest, ok := strings.Cut(string(name), nodeSep)
	if !ok {
		return string(name)
	}
	return strings.ReplaceAll(module, ".", "/") + moduleExt + nodeSep + rest
}

// SelectorToDotted is the inverse of DottedToSelector.
func SelectorToDotted(selector string) core.TestName {
	path, rest, ok := strings.Cut(selector, nodeSep)
	if !ok {
		return core.TestName(selector)
	}
	path = strings.TrimSuffix(filepath.ToSlash(path), moduleExt)
	return core.TestName(strings.ReplaceAll(path, "/", ".") + nodeSep + rest)
}

// nameResolver maps JUnit testcase attributes onto canonical test names.
// Resolutions of classnames through the filesystem are memoized per run.
type nameResolver struct {
	root  string
	cache map[string]int
	// files remembers the file attribute of module-level entries.
	files map[core.TestName]string
}

func newNameResolver(root string) *nameResolver {
	return &nameResolver{
		root:  root,
		cache: make(map[string]int),
		files: make(map[core.TestName]string),
	}
}

// selector returns the pytest argument that runs name. A module-level name,
// which is how pytest reports a module that failed to import, selects the
// module's file or package directory.
func (r *nameResolver) selector(name core.TestName) string {
	if !name.IsModule() {
		return DottedToSelector(name)
	}
	if file, ok := r.files[name]; ok {
		return file
	}
	path := strings.ReplaceAll(string(name), ".", "/")
	for _, candidate := range []string{path + moduleExt, path} {
		if _, err := os.Stat(filepath.Join(r.root, candidate)); err == nil {
			return candidate
		}
	}
	return string(name)
}

// resolve builds the canonical name for one testcase. The xunit1 file
// attribute is authoritative for where the module ends; without it the
// longest classname prefix that exists as a module under the root wins, and
// as a last resort the first capitalised segment starts the class groups.
func (r *nameResolver) resolve(classname, name, file string) core.TestName {
	if classname == "" {
		if file != "" {
			r.files[core.TestName(name)] = filepath.ToSlash(file)
		}
		return core.TestName(name)
	}
	segments := strings.Split(classname, ".")

	split := -1
	if file != "" {
		module := strings.Split(strings.TrimSuffix(filepath.ToSlash(file), moduleExt), "/")
		if hasPrefix(segments, module) {
			split = len(module)
		}
	}
	if split < 0 {
		split = r.probe(classname, segments)
	}
	if split < 0 {
		split = len(segments)
		for i, seg := range segments {
			if i > 0 && startsUpper(seg) {
				split = i
				break
			}
		}
	}

	parts := []string{strings.Join(segments[:split], ".")}
	parts = append(parts, segments[split:]...)
	parts = append(parts, name)
	return core.TestName(strings.Join(parts, nodeSep))
}

func (r *nameResolver) probe(classname string, segments []string) int {
	if r.root == "" {
		return -1
	}
	if split, ok := r.cache[classname]; ok {
		return split
	}
	split := -1
	for i := len(segments); i >= 1; i-- {
		candidate := filepath.Join(r.root, filepath.Join(segments[:i]...)+moduleExt)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			split = i
			break
		}
	}
	r.cache[classname] = split
	return split
}

func hasPrefix(segments, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(segments) {
		return false
	}
	for i := range prefix {
		if segments[i] != prefix[i] {
			return false
		}
	}
	return true
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
