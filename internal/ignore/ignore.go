// Package ignore reads the .tdmignore file at the root of a source tree and
// decides which entries stay out of a snapshot.
//
// Each non-empty line that does not start with '#' is a glob pattern. A
// leading '/' is dropped. A pattern ending in '/' or containing a '/' also
// matches everything below the path it names. A path is ignored when a
// pattern matches the whole slash-separated relative path or any single
// element of it, so "node_modules" ignores that directory at any depth.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tdmcli/tdmcli/internal/log"
)

// FileName is the ignore file looked up at the root of a source tree.
const FileName = ".tdmignore"

// Rules is a parsed ignore file. The zero value ignores nothing.
type Rules struct {
	patterns []string
}

// Parse reads patterns from r. Invalid patterns are reported with their
// line number.
func Parse(r io.Reader) (*Rules, error) {
	rules := &Rules{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := strings.TrimPrefix(line, "/")
		dir := strings.HasSuffix(p, "/")
		p = strings.TrimRight(p, "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("line %d: invalid pattern %q", n, line)
		}
		rules.patterns = append(rules.patterns, p)
		if dir || strings.Contains(p, "/") {
			rules.patterns = append(rules.patterns, p+"/**")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Load parses root/.tdmignore. A missing file yields empty rules.
func Load(root string) (*Rules, error) {
	path := filepath.Join(root, FileName)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Rules{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug(log.CatCopy, "loaded ignore file", "path", path, "patterns", len(rules.patterns))
	return rules, nil
}

// Len returns the number of compiled patterns.
func (r *Rules) Len() int {
	return len(r.patterns)
}

// Match reports whether the slash-separated relative path rel is ignored.
func (r *Rules) Match(rel string) bool {
	if len(r.patterns) == 0 {
		return false
	}
	elems := strings.Split(rel, "/")
	for _, p := range r.patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
		for _, el := range elems {
			if doublestar.MatchUnvalidated(p, el) {
				return true
			}
		}
	}
	return false
}
