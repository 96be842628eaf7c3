package projector_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mkiso/mkiso/internal/eltorito"
	"github.com/mkiso/mkiso/internal/filter"
	"github.com/mkiso/mkiso/internal/logging"
	"github.com/mkiso/mkiso/internal/projector"
	"github.com/mkiso/mkiso/internal/volume"
)

// fakeVolume records the operation sequence the projector emits.
type fakeVolume struct {
	ops []string
	boot []volume.BootEntry
}

func (f *fakeVolume) record(parts ...string) {
	f.ops = append(f.ops, strings.Join(parts, " "))
}

func (f *fakeVolume) AddDirectory(target, extended, joliet string) error {
	f.record("dir", target, extended, joliet)
	return nil
}

func (f *fakeVolume) AddFile(source, target, extended, joliet string) error {
	f.record("file", filepath.Base(source), target, extended, joliet)
	return nil
}

func (f *fakeVolume) AddSymlink(target, extended, linkTarget, joliet string) error {
	f.record("symlink", target, extended, linkTarget, joliet)
	return nil
}

func (f *fakeVolume) RemoveLink(path string, joliet bool) error {
	ns := "iso"
	if joliet {
		ns = "joliet"
	}
	f.record("remove", ns, path)
	return nil
}

func (f *fakeVolume) SetHidden(target string) error {
	f.record("hidden", target)
	return nil
}

func (f *fakeVolume) AddBootEntry(entry volume.BootEntry) error {
	f.boot = append(f.boot, entry)
	return nil
}

func (f *fakeVolume) Serialize(string, func(float64)) error { return nil }

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.LevelError, Output: io.Discard, Format: logging.FormatJSON})
}

func write(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProjectTree(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "readme.txt"), "hi")
	write(t, filepath.Join(root, "Documents", "alphabar.txt"), "1")
	write(t, filepath.Join(root, "Documents", "alphafoo.txt"), "2")
	write(t, filepath.Join(root, "Documents", "alphazzz.txt"), "3")

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{Level: 1, Joliet: true, Log: testLogger()})
	require.NoError(t, p.Project([]projector.Root{{Source: root}}))

	// Directory listings enumerate lexically, so alphabar.txt arrives first
	// and keeps its name; the later ALPHA-prefixed siblings are numbered.
	exp := []string{
		"dir /DOCUMENT  /Documents",
		"file alphabar.txt /DOCUMENT/ALPHABAR.TXT;1  /Documents/alphabar.txt",
		"file alphafoo.txt /DOCUMENT/ALPHA000.TXT;1  /Documents/alphafoo.txt",
		"file alphazzz.txt /DOCUMENT/ALPHA001.TXT;1  /Documents/alphazzz.txt",
		"file readme.txt /README.TXT;1  /readme.txt",
	}
	if diff := cmp.Diff(exp, vol.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestProjectExtendedNames(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "My Report.pdf"), "x")

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{Level: 2, ExtendedNaming: true, Log: testLogger()})
	require.NoError(t, p.Project([]projector.Root{{Source: root}}))

	exp := []string{"file My Report.pdf /MY_REPORT.PDF;1 My Report.pdf "}
	if diff := cmp.Diff(exp, vol.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestProjectFilters(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "keep.txt"), "x")
	write(t, filepath.Join(root, "skip.o"), "x")
	write(t, filepath.Join(root, "secret.txt"), "x")
	write(t, filepath.Join(root, "ghost.txt"), "x")

	rules := filter.New()
	require.NoError(t, rules.Add(filter.Exclude, "*.o"))
	require.NoError(t, rules.Add(filter.Hide, "secret*"))
	require.NoError(t, rules.Add(filter.Hidden, "ghost*"))

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{Level: 1, Filters: rules, Log: testLogger()})
	require.NoError(t, p.Project([]projector.Root{{Source: root}}))

	exp := []string{
		"file ghost.txt /GHOST.TXT;1  ",
		"hidden /GHOST.TXT;1",
		"file keep.txt /KEEP.TXT;1  ",
		"file secret.txt /SECRET.TXT;1  ",
		"remove iso /SECRET.TXT;1",
	}
	if diff := cmp.Diff(exp, vol.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestProjectHideJoliet(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "windows.txt"), "x")

	rules := filter.New()
	require.NoError(t, rules.Add(filter.HideJoliet, "windows*"))

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{Level: 1, Joliet: true, Filters: rules, Log: testLogger()})
	require.NoError(t, p.Project([]projector.Root{{Source: root}}))

	exp := []string{
		"file windows.txt /WINDOWS.TXT;1  /windows.txt",
		"remove joliet /windows.txt",
	}
	if diff := cmp.Diff(exp, vol.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestProjectSymlinks(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "target.txt"), "x")
	require.NoError(t, os.Symlink("target.txt", filepath.Join(root, "link.txt")))

	t.Run("skipped without extended naming", func(t *testing.T) {
		vol := &fakeVolume{}
		p := projector.New(vol, projector.Options{Level: 1, Log: testLogger()})
		require.NoError(t, p.Project([]projector.Root{{Source: root}}))

		exp := []string{"file target.txt /TARGET.TXT;1  "}
		if diff := cmp.Diff(exp, vol.ops); diff != "" {
			t.Fatalf("unexpected operations (-want +got):\n%s", diff)
		}
	})

	t.Run("projected with extended naming", func(t *testing.T) {
		vol := &fakeVolume{}
		p := projector.New(vol, projector.Options{Level: 1, ExtendedNaming: true, Log: testLogger()})
		require.NoError(t, p.Project([]projector.Root{{Source: root}}))

		exp := []string{
			"symlink /LINK.TXT;1 link.txt target.txt ",
			"file target.txt /TARGET.TXT;1 target.txt ",
		}
		if diff := cmp.Diff(exp, vol.ops); diff != "" {
			t.Fatalf("unexpected operations (-want +got):\n%s", diff)
		}
	})
}

func TestProjectDepthCeiling(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8")
	write(t, filepath.Join(deep, "toodeep.txt"), "x")

	t.Run("deep branch skipped without extended naming", func(t *testing.T) {
		vol := &fakeVolume{}
		p := projector.New(vol, projector.Options{Level: 1, Log: testLogger()})
		require.NoError(t, p.Project([]projector.Root{{Source: root}}))

		for _, op := range vol.ops {
			if strings.Contains(op, "D8") || strings.Contains(op, "TOODEEP") {
				t.Fatalf("entry below the depth ceiling was projected: %s", op)
			}
		}
		require.Len(t, vol.ops, 7)
	})

	t.Run("no ceiling with extended naming", func(t *testing.T) {
		vol := &fakeVolume{}
		p := projector.New(vol, projector.Options{Level: 1, ExtendedNaming: true, Log: testLogger()})
		require.NoError(t, p.Project([]projector.Root{{Source: root}}))
		require.Len(t, vol.ops, 9) // eight directories and the file
	})
}

func TestProjectGraftPoints(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "vmlinuz"), "x")

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{Level: 1, Log: testLogger()})
	require.NoError(t, p.Project([]projector.Root{
		{Source: root, Target: "boot/kernels"},
		{Source: filepath.Join(root, "vmlinuz"), Target: "boot"},
	}))

	exp := []string{
		"dir /BOOT  ",
		"dir /BOOT/KERNELS  ",
		"file vmlinuz /BOOT/KERNELS/VMLINUZ.;1  ",
		"file vmlinuz /BOOT/VMLINUZ.;1  ",
	}
	if diff := cmp.Diff(exp, vol.ops); diff != "" {
		t.Fatalf("unexpected operations (-want +got):\n%s", diff)
	}
}

func TestProjectBootResolution(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "isolinux", "isolinux.bin"), "x")
	write(t, filepath.Join(root, "boot.cat"), "")

	entries := []*eltorito.Entry{
		{BootFile: "isolinux/isolinux.bin", Media: eltorito.MediaNoEmulation, Bootable: true, LoadSegment: 4},
	}

	vol := &fakeVolume{}
	p := projector.New(vol, projector.Options{
		Level:       1,
		BootEntries: entries,
		Catalog:     "boot.cat",
		Log:         testLogger(),
	})
	require.NoError(t, p.Project([]projector.Root{{Source: root}}))

	expBoot := []volume.BootEntry{
		{
			BootFilePath: "/ISOLINUX/ISOLINUX.BIN;1",
			CatalogPath:  "/BOOT.CAT;1",
			Bootable:     true,
			Media:        eltorito.MediaNoEmulation,
			LoadSegment:  4,
		},
	}
	if diff := cmp.Diff(expBoot, vol.boot); diff != "" {
		t.Fatalf("unexpected boot entries (-want +got):\n%s", diff)
	}
}

func TestProjectBootUnresolved(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "readme.txt"), "x")

	entries := []*eltorito.Entry{{BootFile: "missing.bin", Bootable: true}}

	p := projector.New(&fakeVolume{}, projector.Options{Level: 1, BootEntries: entries, Log: testLogger()})
	err := p.Project([]projector.Root{{Source: root}})

	var bootErr *projector.BootResolutionError
	require.ErrorAs(t, err, &bootErr)
	require.Equal(t, "missing.bin", bootErr.Path)
}
