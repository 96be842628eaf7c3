package volume

import (
	"fmt"
	"io"
	"os"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"

	"github.com/mkiso/mkiso/internal/eltorito"
	"github.com/mkiso/mkiso/internal/logging"
)

const sectorSize = 2048

// DiskWriter implements Writer on top of go-diskfs. Operations are buffered
// in order and replayed into a go-diskfs ISO9660 filesystem at Serialize
// time, because the image size has to be known before the backing file is
// created.
//
// The backend cannot express everything in the operation set: Joliet
// records, the per-record hidden bit and symlink encoding are not
// serialized by go-diskfs. Those operations are accepted, logged and
// dropped at serialization, so the operation stream stays faithful even
// where the image does not.
type DiskWriter struct {
	opts CreateOptions
	log  *logging.Logger

	dirs       []dirOp
	files      []fileOp
	symlinks   []symlinkOp
	boot       []BootEntry
	hidden     []string
	removedISO map[string]struct{}
	targets    map[string]struct{}
	totalBytes int64
}

type dirOp struct {
	target, extended, joliet string
}

type fileOp struct {
	source, target, extended, joliet string
	size                             int64
}

type symlinkOp struct {
	target, extended, linkTarget, joliet string
}

// NewDiskWriter returns a Writer that serializes through go-diskfs.
func NewDiskWriter(opts CreateOptions, log *logging.Logger) *DiskWriter {
	return &DiskWriter{
		opts:       opts,
		log:        log,
		removedISO: make(map[string]struct{}),
		targets:    make(map[string]struct{}),
	}
}

func (w *DiskWriter) reserve(target string) error {
	if _, ok := w.targets[target]; ok {
		return fmt.Errorf("%s: %w", target, ErrPathConflict)
	}
	w.targets[target] = struct{}{}
	return nil
}

func (w *DiskWriter) AddDirectory(target, extended, joliet string) error {
	if err := w.reserve(target); err != nil {
		return err
	}
	w.dirs = append(w.dirs, dirOp{target: target, extended: extended, joliet: joliet})
	return nil
}

func (w *DiskWriter) AddFile(source, target, extended, joliet string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", source, ErrSourceUnreadable, err)
	}
	if err := w.reserve(target); err != nil {
		return err
	}
	w.files = append(w.files, fileOp{source: source, target: target, extended: extended, joliet: joliet, size: info.Size()})
	w.totalBytes += info.Size()
	return nil
}

func (w *DiskWriter) AddSymlink(target, extended, linkTarget, joliet string) error {
	if w.opts.RockRidge == "" {
		return fmt.Errorf("symlink %s: %w", target, ErrUnsupportedNamespace)
	}
	if err := w.reserve(target); err != nil {
		return err
	}
	w.symlinks = append(w.symlinks, symlinkOp{target: target, extended: extended, linkTarget: linkTarget, joliet: joliet})
	return nil
}

func (w *DiskWriter) RemoveLink(path string, joliet bool) error {
	if joliet {
		w.log.Debugf("remove joliet link %s: joliet records are not serialized by this backend", path)
		return nil
	}
	w.removedISO[path] = struct{}{}
	return nil
}

func (w *DiskWriter) SetHidden(target string) error {
	w.hidden = append(w.hidden, target)
	return nil
}

func (w *DiskWriter) AddBootEntry(entry BootEntry) error {
	w.boot = append(w.boot, entry)
	return nil
}

func (w *DiskWriter) Serialize(destination string, progress func(float64)) error {
	if len(w.hidden) > 0 {
		w.log.Warnf("%d hidden-attribute requests cannot be serialized by this backend", len(w.hidden))
	}
	if len(w.symlinks) > 0 {
		w.log.Warnf("%d symlinks cannot be serialized by this backend and are dropped from the image", len(w.symlinks))
	}
	if w.opts.XA {
		w.log.Warnf("XA extension signatures cannot be serialized by this backend")
	}

	d, err := diskfs.Create(destination, w.imageSize(), diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("creating image %s: %w", destination, err)
	}
	defer d.Close()

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeISO9660,
		VolumeLabel: w.opts.Identifiers.Volume,
	})
	if err != nil {
		return fmt.Errorf("creating filesystem: %w", err)
	}
	iso, ok := fs.(*iso9660.FileSystem)
	if !ok {
		return fmt.Errorf("unexpected filesystem type %T", fs)
	}

	for _, op := range w.dirs {
		if err := iso.Mkdir(stripVersions(op.target)); err != nil {
			return fmt.Errorf("mkdir %s: %w", op.target, err)
		}
	}

	total := w.survivingBytes()
	var copied int64
	for _, op := range w.files {
		if _, removed := w.removedISO[op.target]; removed {
			w.log.Warnf("link %s was removed from the ISO9660 namespace; omitting its data from the image", op.target)
			continue
		}
		if err := w.copyFile(iso, op); err != nil {
			return err
		}
		copied += op.size
		if progress != nil && total > 0 {
			progress(0.95 * float64(copied) / float64(total))
		}
	}

	opts := iso9660.FinalizeOptions{
		RockRidge:        w.opts.RockRidge != "",
		DeepDirectories:  w.opts.RockRidge != "",
		VolumeIdentifier: w.opts.Identifiers.Volume,
	}
	if len(w.boot) > 0 {
		opts.ElTorito = w.elTorito()
	}
	if err := iso.Finalize(opts); err != nil {
		return fmt.Errorf("finalizing image: %w", err)
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

func (w *DiskWriter) copyFile(iso *iso9660.FileSystem, op fileOp) error {
	src, err := os.Open(op.source)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op.source, ErrSourceUnreadable, err)
	}
	defer src.Close()

	dst, err := iso.OpenFile(stripVersions(op.target), os.O_CREATE|os.O_RDWR)
	if err != nil {
		return fmt.Errorf("adding %s: %w", op.target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying %s: %w", op.source, err)
	}
	return nil
}

func (w *DiskWriter) elTorito() *iso9660.ElTorito {
	et := &iso9660.ElTorito{}
	for i, b := range w.boot {
		if i == 0 && b.CatalogPath != "" {
			et.BootCatalog = stripVersions(b.CatalogPath)
		}
		entry := &iso9660.ElToritoEntry{
			Platform:    iso9660.BIOS,
			Emulation:   emulation(b.Media),
			BootFile:    stripVersions(b.BootFilePath),
			LoadSegment: b.LoadSegment,
			LoadSize:    b.LoadSize,
		}
		if b.Platform == eltorito.PlatformEFI {
			entry.Platform = iso9660.EFI
		}
		if !b.Bootable {
			w.log.Warnf("non-bootable catalog entry %s is recorded as bootable by this backend", b.BootFilePath)
		}
		if b.InfoTable {
			w.log.Warnf("boot info table for %s is not supported by this backend", b.BootFilePath)
		}
		et.Entries = append(et.Entries, entry)
	}
	return et
}

func emulation(m eltorito.Media) iso9660.Emulation {
	switch m {
	case eltorito.MediaNoEmulation:
		return iso9660.NoEmulation
	case eltorito.MediaHardDisk:
		return iso9660.HardDiskEmulation
	default:
		return iso9660.Floppy144Emulation
	}
}

// survivingBytes is the data volume actually copied into the image. Files
// whose ISO9660 link was removed are skipped during the copy loop, so their
// sizes must not count toward the progress denominator.
func (w *DiskWriter) survivingBytes() int64 {
	var total int64
	for _, op := range w.files {
		if _, removed := w.removedISO[op.target]; removed {
			continue
		}
		total += op.size
	}
	return total
}

// imageSize over-allocates generously; the image file is truncated to its
// real extent when the filesystem is finalized.
func (w *DiskWriter) imageSize() int64 {
	size := w.totalBytes
	size += size / 10
	size += int64(len(w.dirs)+len(w.files)+len(w.boot)) * sectorSize
	size += 8 << 20 // descriptors, path tables, catalog, slack
	return size
}

// stripVersions removes the ";1" version suffix from every path segment.
// go-diskfs appends versions itself when it lays the records out, so the
// suffix must not reach it as part of the name.
func stripVersions(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = strings.TrimSuffix(s, ";1")
	}
	return strings.Join(segs, "/")
}
