// Package identifier turns arbitrary file and directory names into valid
// ISO9660 d-character identifiers for a given interchange level.
package identifier

import (
	"fmt"
	"strings"
)

// Level length ceilings. Level 1 caps both files and directories at 8
// characters; levels 2 and 3 allow 30 for file basenames and 31 for
// directories. Level 4 (ISO9660:1999) lifts the restrictions entirely.
const (
	level1Max    = 8
	levelDirMax  = 31
	levelFileMax = 30
)

// IsValid reports whether c is permitted in a d-character identifier.
// Lowercase letters are accepted here; Truncate folds them upward.
func IsValid(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c == '_':
		return true
	}
	return false
}

// Truncate substitutes '_' for every invalid character, folds the result to
// upper case and enforces the level's length ceiling. Shorter names pass
// through otherwise unchanged.
func Truncate(name string, level int, isDir bool) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if IsValid(name[i]) {
			b.WriteByte(name[i])
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.ToUpper(b.String())

	max := level1Max
	if level != 1 {
		if isDir {
			max = levelDirMax
		} else {
			max = levelFileMax
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// MangleFile splits name into a basename and an extension suitable for the
// interchange level. For levels 1-3 the returned extension carries the fixed
// ";1" version suffix, so full identifiers take the form NAME.EXT;1 (or
// NAME.;1 when no extension survives validation). At level 4 the name is
// split on the last dot and returned otherwise untouched.
func MangleFile(name string, level int) (base, ext string, err error) {
	if level == 4 {
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			return name[:i], name[i+1:], nil
		}
		return name, "", nil
	}

	base = name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		cand := name[i+1:]
		if validExtension(cand) {
			base, ext = name[:i], cand
		}
	}

	base = Truncate(base, level, false)
	ext = strings.ToUpper(ext) + ";1"

	if base == "" && ext == ";1" {
		return "", "", fmt.Errorf("name %q mangles to an empty identifier", name)
	}
	return base, ext, nil
}

// MangleDir produces the directory identifier for name at the given level.
// Level 4 leaves directory names untouched.
func MangleDir(name string, level int) string {
	if level == 4 {
		return name
	}
	return Truncate(name, level, true)
}

// validExtension reports whether cand can stand as an ISO9660 extension:
// 1-3 characters, all from the d-character repertoire.
func validExtension(cand string) bool {
	if len(cand) < 1 || len(cand) > 3 {
		return false
	}
	for i := 0; i < len(cand); i++ {
		if !IsValid(cand[i]) {
			return false
		}
	}
	return true
}
