package collect

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ignoreMatcher applies the root .gitignore to walked paths. It covers
// the common pattern forms (names, globs, anchored paths, directory-only
// rules, negation); nested .gitignore files and `**` globs are not
// supported.
type ignoreMatcher struct {
	rules []ignoreRule
}

type ignoreRule struct {
	pattern  string
	negation bool
	dirOnly  bool
	anchored bool
}

// loadIgnoreMatcher parses <root>/.gitignore. A missing file yields an
// empty matcher.
func loadIgnoreMatcher(root string) *ignoreMatcher {
	m := &ignoreMatcher{}

	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return m
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.addPattern(scanner.Text())
	}
	return m
}

func (m *ignoreMatcher) addPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	r := ignoreRule{}
	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = strings.TrimPrefix(pattern, "!")
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		// An internal slash anchors the pattern to the root.
		r.anchored = true
	}

	r.pattern = pattern
	m.rules = append(m.rules, r)
}

// Ignored reports whether the slash-separated path relative to the root
// is excluded. Later rules win, so negations can re-include files.
func (m *ignoreMatcher) Ignored(rel string, isDir bool) bool {
	if len(m.rules) == 0 {
		return false
	}
	rel = filepath.ToSlash(rel)

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			// A dir-only rule still covers files under a matched dir.
			if !m.underMatchedDir(r, rel) {
				continue
			}
		} else if !r.matches(rel) {
			continue
		}
		ignored = !r.negation
	}
	return ignored
}

func (r ignoreRule) matches(rel string) bool {
	if r.anchored {
		if ok, _ := path.Match(r.pattern, rel); ok {
			return true
		}
		return strings.HasPrefix(rel, r.pattern+"/")
	}
	// Unanchored: match the base name or any path segment.
	if ok, _ := path.Match(r.pattern, path.Base(rel)); ok {
		return true
	}
	for _, segment := range strings.Split(rel, "/") {
		if ok, _ := path.Match(r.pattern, segment); ok {
			return true
		}
	}
	return false
}

func (m *ignoreMatcher) underMatchedDir(r ignoreRule, rel string) bool {
	segments := strings.Split(rel, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		if r.matches(prefix) {
			return true
		}
	}
	return false
}
