// Package filter decides which source entries participate in a projection
// and which projected links get hidden afterwards, based on shell-style
// glob patterns collected from flags and list files.
package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

// Category selects one of the independent pattern lists.
type Category int

const (
	// Exclude short-circuits traversal into a matching entry entirely.
	Exclude Category = iota
	// Hide adds the entry but removes its ISO9660 link afterwards.
	Hide
	// HideJoliet adds the entry but removes its Joliet link afterwards.
	HideJoliet
	// Hidden sets the hidden attribute bit without affecting linkage.
	Hidden
)

// Rules holds the compiled pattern lists. Patterns match the bare entry
// name, never the full path.
type Rules struct {
	lists [4][]glob.Glob
}

// New returns an empty rule set.
func New() *Rules {
	return &Rules{}
}

// Add compiles patterns into the given category. A malformed pattern is a
// configuration error.
func (r *Rules) Add(cat Category, patterns ...string) error {
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		r.lists[cat] = append(r.lists[cat], g)
	}
	return nil
}

// AddFile loads one pattern per line from a list file, stripping trailing
// whitespace. Blank lines are skipped.
func (r *Rules) AddFile(cat Category, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pattern list %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		if err := r.Add(cat, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pattern list %s: %w", path, err)
	}
	return nil
}

// AddBackupPatterns excludes editor backup files (the --nobak behavior).
func (r *Rules) AddBackupPatterns() {
	// These are fixed literals; Compile cannot fail on them.
	_ = r.Add(Exclude, "*~", "*#", "*.bak")
}

// Match reports whether name matches any pattern in the category.
func (r *Rules) Match(cat Category, name string) bool {
	for _, g := range r.lists[cat] {
		if g.Match(name) {
			return true
		}
	}
	return false
}
