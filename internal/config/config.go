// Package config holds the run configuration assembled from the command
// line and the optional YAML settings file, and validates it before any
// traversal begins.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mkiso/mkiso/internal/volume"
)

// Errors that decide the process exit code. ErrMissingOutput exits 1,
// ErrUnsupported exits 255; everything else is an ordinary fatal error.
var (
	ErrMissingOutput = errors.New("no output destination specified")
	ErrUnsupported   = errors.New("unsupported option")
)

// rockRidgeVersion is the Rock Ridge revision recorded in the extension
// records when extended naming is active.
const rockRidgeVersion = "1.09"

// Config is the validated run configuration.
type Config struct {
	Output       string
	Level        int  // ISO9660 interchange level, 1-4
	Joliet       bool // build the parallel Joliet namespace
	UCSLevel     int  // Joliet UCS level, 1-3
	RockRidge    bool // -R: Rock Ridge with full POSIX attributes
	RationalRock bool // -r: Rock Ridge with normalized ownership
	GraftPoints  bool // pathspecs take the TARGET=SOURCE form
	NoBak        bool // exclude editor backup files
	XA           bool // record CD-ROM XA signatures in the directory records
	Catalog      string
	Identifiers  volume.Identifiers
}

// Default returns the configuration genisoimage-compatible runs start from.
func Default() *Config {
	return &Config{
		Level:    1,
		UCSLevel: 3,
		Identifiers: volume.Identifiers{
			Volume:      "CDROM",
			Application: "mkiso",
		},
	}
}

// settings is the shape of the optional YAML settings file.
type settings struct {
	Identifiers volume.Identifiers `yaml:"identifiers"`
}

// LoadSettings merges volume identifiers from a YAML settings file.
// Values present in the file override the built-in defaults but not
// explicit flags, so callers apply it before copying flag values in.
func (c *Config) LoadSettings(path string) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings %s: %w", path, err)
	}
	var s settings
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return fmt.Errorf("settings %s: %w", path, err)
	}
	merge(&c.Identifiers.System, s.Identifiers.System)
	merge(&c.Identifiers.Volume, s.Identifiers.Volume)
	merge(&c.Identifiers.Set, s.Identifiers.Set)
	merge(&c.Identifiers.Publisher, s.Identifiers.Publisher)
	merge(&c.Identifiers.Preparer, s.Identifiers.Preparer)
	merge(&c.Identifiers.Application, s.Identifiers.Application)
	merge(&c.Identifiers.CopyrightFile, s.Identifiers.CopyrightFile)
	merge(&c.Identifiers.AbstractFile, s.Identifiers.AbstractFile)
	merge(&c.Identifiers.BibliographicFile, s.Identifiers.BibliographicFile)
	return nil
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the configuration against the number of declared boot
// descriptors. It runs before the source tree is touched.
func (c *Config) Validate(bootEntries int) error {
	if c.Output == "" {
		return ErrMissingOutput
	}
	if c.Level < 1 || c.Level > 4 {
		return fmt.Errorf("iso-level must be between 1 and 4, got %d", c.Level)
	}
	if c.UCSLevel < 1 || c.UCSLevel > 3 {
		return fmt.Errorf("ucs-level must be between 1 and 3, got %d", c.UCSLevel)
	}
	if c.Catalog != "" && bootEntries == 0 {
		return fmt.Errorf("%w: a boot catalog was requested but no boot images were declared", ErrUnsupported)
	}
	return nil
}

// ExtendedNaming reports whether the Rock Ridge namespace is active.
func (c *Config) ExtendedNaming() bool {
	return c.RockRidge || c.RationalRock
}

// CreateOptions maps the configuration onto the collaborator's volume
// creation parameters.
func (c *Config) CreateOptions() volume.CreateOptions {
	opts := volume.CreateOptions{
		Level:       c.Level,
		Identifiers: c.Identifiers,
		XA:          c.XA,
	}
	if c.Joliet {
		opts.JolietLevel = c.UCSLevel
	}
	if c.ExtendedNaming() {
		opts.RockRidge = rockRidgeVersion
	}
	return opts
}
