// Package namespace tracks the set of identifiers finalized inside one
// projected directory and disambiguates collisions produced by mangling.
package namespace

import "fmt"

// prefixLen is the disambiguation bucket key size: any two basenames sharing
// their first five characters are numbered apart, not only exact collisions,
// because truncation tends to produce exact-prefix clusters.
const prefixLen = 5

// Dir is the namespace state of a single projected directory. One instance
// is created when the projector first visits a directory and discarded once
// its children are processed; siblings never share state.
type Dir struct {
	ISOPath    string // projected ISO9660 path of this directory
	JolietPath string // parallel Joliet path, empty when Joliet is off

	used     map[string]struct{}
	counters map[string]int
}

// NewDir returns namespace state for a directory projected at isoPath, with
// jolietPath carrying the parallel Joliet location (or "").
func NewDir(isoPath, jolietPath string) *Dir {
	return &Dir{
		ISOPath:    isoPath,
		JolietPath: jolietPath,
		used:       make(map[string]struct{}),
		counters:   make(map[string]int),
	}
}

// Resolve finalizes the identifier for a mangled basename and extension
// (ext already carries the ";1" version suffix for levels 1-3 and is empty
// for directories). The returned identifier is guaranteed unique within
// this directory. Resolution is order-dependent: the first entry under a
// prefix keeps its name, later ones are numbered.
func (d *Dir) Resolve(base, ext string) string {
	candidate := join(base, ext)
	prefix := base
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}

	var final string
	if _, taken := d.used[candidate]; taken {
		if n, ok := d.counters[prefix]; ok {
			n = d.nextFree(prefix, ext, n)
			final = join(numbered(prefix, n), ext)
			d.counters[prefix] = n + 1
		} else {
			// A prefix that was never pre-registered by a non-colliding
			// sibling does not advance past 0 on its first forced
			// collision. Suspect upstream asymmetry, kept for
			// compatibility.
			n := d.nextFree(prefix, ext, 0)
			final = join(numbered(prefix, n), ext)
			d.counters[prefix] = n
		}
	} else if n, ok := d.counters[prefix]; ok {
		// A different-named earlier sibling already shares this prefix;
		// disambiguate proactively.
		n = d.nextFree(prefix, ext, n)
		final = join(numbered(prefix, n), ext)
		d.counters[prefix] = n + 1
	} else {
		final = candidate
		d.counters[prefix] = 0
	}

	d.used[final] = struct{}{}
	return final
}

// nextFree advances past numbered slots already occupied by literal
// siblings (a source file named like PREFIX000 takes its slot on arrival),
// so a counter assignment can never duplicate a finalized identifier.
func (d *Dir) nextFree(prefix, ext string, n int) int {
	for {
		if _, taken := d.used[join(numbered(prefix, n), ext)]; !taken {
			return n
		}
		n++
	}
}

func numbered(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

func join(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// jolietSegmentMax caps each Joliet path segment; Joliet imposes no
// character repertoire beyond that.
const jolietSegmentMax = 64

// JolietSegment caps a raw name at 64 characters for use as one Joliet path
// segment.
func JolietSegment(name string) string {
	r := []rune(name)
	if len(r) > jolietSegmentMax {
		r = r[:jolietSegmentMax]
	}
	return string(r)
}

// JolietJoin extends a parent Joliet path by one raw (unmangled) name.
// Uniqueness follows from source-tree uniqueness; no resolution happens.
func JolietJoin(parent, name string) string {
	seg := JolietSegment(name)
	if parent == "/" {
		return "/" + seg
	}
	return parent + "/" + seg
}
