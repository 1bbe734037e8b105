package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the ignore file read from the top of an indexed root.
const IgnoreFileName = ".sstignore"

// builtinRules apply to every root. Only the root's own ignore file is read,
// so only that one is hidden.
var builtinRules = []string{"/" + IgnoreFileName}

// ignoreRule is one parsed line of an ignore list.
//
//	*.log               any entry named *.log, at any depth
//	/FactoryGame.exe    only the top-level FactoryGame.exe
//	FactoryGame/Saved/  the directory FactoryGame/Saved and everything below it
//	Saved/              every directory named Saved
type ignoreRule struct {
	glob     string
	anchored bool // glob is matched against the path from the root
	dirOnly  bool
}

func parseIgnoreRule(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	var r ignoreRule
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimLeft(line, "/")
	}
	if line == "" {
		return ignoreRule{}, false
	}
	r.anchored = r.anchored || strings.Contains(line, "/")
	r.glob = line
	return r, true
}

// IgnoreMatcher decides which entries of an install tree the indexer skips.
// An ignored directory hides everything below it.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses lines in .sstignore syntax. Blank lines and lines
// starting with '#' are skipped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range append(append([]string(nil), builtinRules...), lines...) {
		if r, ok := parseIgnoreRule(line); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Match reports whether the entry at rel, a path relative to the indexed
// root, is ignored. isDir tells whether the entry itself is a directory.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." || len(m.rules) == 0 {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		dir := isDir || i < len(parts)-1
		for _, r := range m.rules {
			if r.dirOnly && !dir {
				continue
			}
			name := parts[i]
			if r.anchored {
				name = prefix
			}
			if ok, err := path.Match(r.glob, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// ParseIgnoreFile returns the raw lines of the ignore file at path, or nil
// when there is none.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
