// Package volume defines the operation set the tree projector hands to a
// volume-authoring backend, and provides an implementation built on
// go-diskfs. The projector only ever produces validated identifiers and an
// ordered operation sequence; everything about on-disk byte layout belongs
// to the backend.
package volume

import (
	"errors"

	"github.com/mkiso/mkiso/internal/eltorito"
)

// Sentinel errors for operation failures.
var (
	ErrPathConflict         = errors.New("target path already exists")
	ErrSourceUnreadable     = errors.New("source file is not readable")
	ErrUnsupportedNamespace = errors.New("extended naming is not active")
)

// Identifiers is the volume metadata recorded in the volume descriptors.
type Identifiers struct {
	System        string `yaml:"system"`
	Volume        string `yaml:"volume"`
	Set           string `yaml:"set"`
	Publisher     string `yaml:"publisher"`
	Preparer      string `yaml:"preparer"`
	Application   string `yaml:"application"`
	CopyrightFile string `yaml:"copyright_file"`
	AbstractFile  string `yaml:"abstract_file"`
	BibliographicFile string `yaml:"bibliographic_file"`
}

// CreateOptions configures the volume at creation time.
type CreateOptions struct {
	Level       int // ISO9660 interchange level, 1-4
	Identifiers Identifiers
	JolietLevel int    // UCS level 1-3, 0 disables the Joliet namespace
	RockRidge   string // Rock Ridge version ("1.09"), empty disables
	XA          bool
}

// BootEntry is one finalized El Torito catalog entry, with projected paths.
type BootEntry struct {
	BootFilePath string // projected path of the boot image
	CatalogPath  string // projected path of the boot catalog
	Bootable     bool
	Platform     eltorito.Platform
	Media        eltorito.Media
	LoadSegment  uint16
	LoadSize     uint16
	InfoTable    bool
}

// Writer is the collaborator operation set. Implementations may defer real
// work until Serialize; every Add/Remove/Set operation must still validate
// its arguments eagerly.
type Writer interface {
	// AddDirectory records a directory at targetPath. extendedName is the
	// Rock Ridge name (empty when extended naming is off), jolietPath the
	// parallel Joliet location (empty when Joliet is off).
	AddDirectory(targetPath, extendedName, jolietPath string) error

	// AddFile records a regular file whose content comes from sourcePath.
	AddFile(sourcePath, targetPath, extendedName, jolietPath string) error

	// AddSymlink records a symbolic link. Fails with
	// ErrUnsupportedNamespace when extended naming is inactive.
	AddSymlink(targetPath, extendedName, linkTarget, jolietPath string) error

	// RemoveLink removes the directory record for path from the ISO9660
	// namespace, or from the Joliet namespace when joliet is true. The
	// entry's data remains reachable through the other namespace.
	RemoveLink(path string, joliet bool) error

	// SetHidden sets the hidden attribute bit on the record at targetPath.
	SetHidden(targetPath string) error

	// AddBootEntry appends one entry to the El Torito boot catalog.
	AddBootEntry(entry BootEntry) error

	// Serialize writes the volume to destination. The progress callback,
	// when non-nil, is invoked synchronously with the fraction done and
	// must not block indefinitely.
	Serialize(destination string, progress func(fraction float64)) error
}
