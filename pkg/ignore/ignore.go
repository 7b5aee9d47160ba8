// Package ignore filters workspace paths during a project scan: a
// .gitignore, a handful of directories that are never worth descending
// into regardless of what the ignore file says, and Composer's own
// vendor-exclusion conventions.
package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// alwaysSkipDirs are pruned during workspace discovery even with no
// .gitignore present: directories a PHP project never wants indexed.
var alwaysSkipDirs = map[string]bool{
	".git":   true,
	".hg":    true,
	".svn":   true,
	"vendor": true,
	"node_modules": true,
}

// Matcher filters relative file paths against a workspace's .gitignore.
type Matcher struct {
	gi          *gitignore.GitIgnore
	allowVendor bool
}

// SetAllowVendor controls whether the "vendor" directory is pruned. Off by
// default: a workspace scan skips vendor unless the indexVendor
// configuration option asks for it.
func (m *Matcher) SetAllowVendor(allow bool) {
	if m == nil {
		return
	}
	m.allowVendor = allow
}

// Load reads and compiles the .gitignore at root, if one exists. A missing
// file is not an error: Match then only applies the built-in skip list.
func Load(root string) (*Matcher, error) {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}
		return nil, err
	}

	gi, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		return nil, err
	}
	return &Matcher{gi: gi}, nil
}

// ParseLines builds a Matcher directly from ignore-pattern lines, for tests
// and for honoring an explicit workspace configuration instead of a file on disk.
func ParseLines(lines []string) *Matcher {
	return &Matcher{gi: gitignore.CompileIgnoreLines(lines...)}
}

// Match reports whether rel (slash-separated, relative to the workspace
// root) should be skipped during a scan.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	if isDir {
		base := filepath.Base(rel)
		if base == "vendor" && m != nil && m.allowVendor {
			// fall through to the .gitignore check only
		} else if alwaysSkipDirs[base] {
			return true
		}
	}
	if m == nil || m.gi == nil {
		return false
	}
	if isDir && m.gi.MatchesPath(rel+"/") {
		// directory-only patterns such as "build/" match only with the slash
		return true
	}
	return m.gi.MatchesPath(rel)
}
