package namespace_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mkiso/mkiso/internal/identifier"
	"github.com/mkiso/mkiso/internal/namespace"
)

func TestResolveOrder(t *testing.T) {
	// Three level-1 files sharing the ALPHA prefix, added in declaration
	// order: the first keeps its name, later ones are numbered.
	dir := namespace.NewDir("", "")

	var got []string
	for _, name := range []string{"alphafoo.txt", "alphabar.txt", "alphazzz.txt"} {
		base, ext, err := identifier.MangleFile(name, 1)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, dir.Resolve(base, ext))
	}

	exp := []string{"ALPHAFOO.TXT;1", "ALPHA000.TXT;1", "ALPHA001.TXT;1"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected identifiers (-want +got):\n%s", diff)
	}
}

func TestResolveExactCollision(t *testing.T) {
	// Distinct names that mangle to the same canonical identifier.
	dir := namespace.NewDir("", "")

	var got []string
	for _, name := range []string{"a b.txt", "a_b.txt", "a?b.txt"} {
		base, ext, err := identifier.MangleFile(name, 2)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, dir.Resolve(base, ext))
	}

	exp := []string{"A_B.TXT;1", "A_B000.TXT;1", "A_B001.TXT;1"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected identifiers (-want +got):\n%s", diff)
	}
}

func TestResolveNumberedNameTaken(t *testing.T) {
	// A source file whose name already looks like a numbered identifier
	// claims that slot; later counter assignments must step past it.
	dir := namespace.NewDir("", "")

	var got []string
	for _, name := range []string{"colli000.txt", "collision.txt", "collisioz.txt"} {
		base, ext, err := identifier.MangleFile(name, 1)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, dir.Resolve(base, ext))
	}

	exp := []string{"COLLI000.TXT;1", "COLLI001.TXT;1", "COLLI002.TXT;1"}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected identifiers (-want +got):\n%s", diff)
	}
}

func TestResolveUniqueness(t *testing.T) {
	// Any sequence of entries in one directory yields pairwise distinct
	// identifiers, here forced through heavy truncation at level 1.
	dir := namespace.NewDir("", "")
	seen := make(map[string]string)

	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("collision-heavy-name-%03d.txt", i)
		base, ext, err := identifier.MangleFile(name, 1)
		if err != nil {
			t.Fatal(err)
		}
		id := dir.Resolve(base, ext)
		if prev, ok := seen[id]; ok {
			t.Fatalf("identifier %q produced for both %q and %q", id, prev, name)
		}
		seen[id] = name
	}
}

func TestResolveDirectories(t *testing.T) {
	dir := namespace.NewDir("", "")

	if got := dir.Resolve("PHOTOS_2", ""); got != "PHOTOS_2" {
		t.Fatalf("got %q, want PHOTOS_2", got)
	}
	// Same mangled name again: numbered, no dot, no version.
	if got := dir.Resolve("PHOTOS_2", ""); got != "PHOTO000" {
		t.Fatalf("got %q, want PHOTO000", got)
	}
}

func TestJolietSegment(t *testing.T) {
	long := strings.Repeat("é", 100)
	seg := namespace.JolietSegment(long)
	if n := len([]rune(seg)); n != 64 {
		t.Fatalf("segment has %d characters, want 64", n)
	}
	if short := namespace.JolietSegment("hello.txt"); short != "hello.txt" {
		t.Fatalf("short segment modified: %q", short)
	}
}

func TestJolietJoin(t *testing.T) {
	cases := []struct {
		note   string
		parent string
		name   string
		exp    string
	}{
		{note: "root parent", parent: "/", name: "Documents", exp: "/Documents"},
		{note: "nested parent", parent: "/a/b", name: "c", exp: "/a/b/c"},
		{
			note: "long leaf capped at 64", parent: "/d",
			name: strings.Repeat("x", 80),
			exp:  "/d/" + strings.Repeat("x", 64),
		},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			if got := namespace.JolietJoin(tc.parent, tc.name); got != tc.exp {
				t.Fatalf("got %q, want %q", got, tc.exp)
			}
		})
	}
}
