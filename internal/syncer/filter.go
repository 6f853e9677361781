package syncer

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultInclude selects the note files indexed when no include patterns
// are configured.
var DefaultInclude = []string{"**/*.md", "**/*.markdown", "**/*.txt"}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
	// root matches files at the corpus root for "**/" patterns, which
	// gobwas/glob would otherwise require to sit in a subdirectory.
	root glob.Glob
}

// PathFilter decides which corpus paths are indexed.
type PathFilter struct {
	include []compiledPattern
	ignore  []compiledPattern
}

// NewPathFilter compiles include and ignore glob patterns. An empty
// include list uses DefaultInclude.
func NewPathFilter(include, ignore []string) (*PathFilter, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	f := &PathFilter{}
	var err error
	if f.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if f.ignore, err = compilePatterns(ignore); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if strings.HasPrefix(pattern, "**/") {
			if cp.root, err = glob.Compile(strings.TrimPrefix(pattern, "**/"), '/'); err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
		}
		compiled = append(compiled, cp)
	}
	return compiled, nil
}

// Match reports whether path is included and not ignored.
func (f *PathFilter) Match(path string) bool {
	if !matchesAny(path, f.include) {
		return false
	}
	if matchesAny(path, f.ignore) {
		return false
	}
	// An ignored directory ("drafts", "**/archive") covers its files.
	for dir := path; strings.Contains(dir, "/"); {
		dir = dir[:strings.LastIndex(dir, "/")]
		if matchesAny(dir, f.ignore) {
			return false
		}
	}
	return true
}

func matchesAny(path string, patterns []compiledPattern) bool {
	rootLevel := !strings.Contains(path, "/")
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
		if rootLevel && cp.root != nil && cp.root.Match(path) {
			return true
		}
	}
	return false
}
