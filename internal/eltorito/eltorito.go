// Package eltorito reconstructs grouped El Torito boot descriptors from the
// flat, repeated-flag command surface. A structured flag parser collapses
// repeated options into independent per-flag lists and loses which instance
// belongs to which boot image; this package replays the raw argument tokens
// to recover the grouping while still sourcing values from the structured
// parse.
package eltorito

import (
	"fmt"
	"strconv"
	"strings"
)

// Media is the El Torito boot media emulation type.
type Media int

const (
	MediaFloppy Media = iota
	MediaNoEmulation
	MediaHardDisk
)

func (m Media) String() string {
	switch m {
	case MediaNoEmulation:
		return "no-emulation"
	case MediaHardDisk:
		return "hard-disk"
	default:
		return "floppy"
	}
}

// Platform is the El Torito platform ID of a boot entry.
type Platform int

const (
	PlatformBIOS Platform = iota
	PlatformEFI
)

// Entry is one boot image descriptor. A run produces an ordered sequence of
// these; the first entry becomes the initial/default catalog entry.
type Entry struct {
	BootFile    string // source-relative path of the boot image
	Platform    Platform
	Media       Media
	Bootable    bool
	LoadSegment uint16
	LoadSize    uint16
	InfoTable   bool

	// TargetPath is the projected path of the boot image, filled in by the
	// projector once the matching source file is visited.
	TargetPath string
}

func newEntry() *Entry {
	return &Entry{Media: MediaFloppy, Bootable: true}
}

// Values carries the per-flag value lists produced by the structured
// parser. Only their grouping is reconstructed from the raw tokens; the
// values themselves are consumed from these lists in order.
type Values struct {
	Boot     []string // --eltorito-boot / -b
	EFIBoot  []string // --efi-boot / -e
	LoadSeg  []string // --boot-load-seg
	LoadSize []string // --boot-load-size
}

// Group replays the raw argument tokens and returns the ordered boot
// descriptors. Tokens this resolver does not recognize are ignored; they
// are handled by the structured parser.
func Group(rawArgs []string, vals Values) ([]*Entry, error) {
	var (
		entries []*Entry
		current *Entry
		boot, efi, seg, size int // cursors into the structured lists
	)

	ensure := func() *Entry {
		if current == nil {
			current = newEntry()
			entries = append(entries, current)
		}
		return current
	}

	for i := 0; i < len(rawArgs); i++ {
		name, _, hasValue := cutFlag(rawArgs[i])
		skipValue := func() {
			// "--flag value" spends the next token; "--flag=value" does not.
			if !hasValue {
				i++
			}
		}

		switch name {
		case "eltorito-alt-boot":
			current = newEntry()
			entries = append(entries, current)
		case "eltorito-boot", "b":
			if boot >= len(vals.Boot) {
				return nil, fmt.Errorf("boot flag order does not match parsed values")
			}
			ensure().BootFile = vals.Boot[boot]
			boot++
			skipValue()
		case "efi-boot", "e":
			if efi >= len(vals.EFIBoot) {
				return nil, fmt.Errorf("boot flag order does not match parsed values")
			}
			e := ensure()
			e.BootFile = vals.EFIBoot[efi]
			e.Platform = PlatformEFI
			efi++
			skipValue()
		case "no-emul-boot":
			ensure().Media = MediaNoEmulation
		case "hard-disk-boot":
			ensure().Media = MediaHardDisk
		case "no-boot":
			ensure().Bootable = false
		case "boot-info-table":
			ensure().InfoTable = true
		case "boot-load-seg":
			v, err := parseUint16(vals.LoadSeg, &seg)
			if err != nil {
				return nil, fmt.Errorf("boot-load-seg: %w", err)
			}
			ensure().LoadSegment = v
			skipValue()
		case "boot-load-size":
			v, err := parseUint16(vals.LoadSize, &size)
			if err != nil {
				return nil, fmt.Errorf("boot-load-size: %w", err)
			}
			ensure().LoadSize = v
			skipValue()
		}
	}

	if boot != len(vals.Boot) || efi != len(vals.EFIBoot) ||
		seg != len(vals.LoadSeg) || size != len(vals.LoadSize) {
		return nil, fmt.Errorf("boot flag order does not match parsed values")
	}

	for _, e := range entries {
		if e.BootFile == "" {
			return nil, fmt.Errorf("boot image declared without a boot file")
		}
	}
	return entries, nil
}

// valueShorthands lists the one-letter flags of the command surface that
// consume a value. A shorthand cluster like -Jb stops at the first of
// these; the remainder of the token (or the next token) is its value.
const valueShorthands = "beocmVAp"

// cutFlag strips the dashes off a token and splits off an attached value
// ("--flag=v", "-xv", "-x=v"). The returned name is empty for non-flag
// tokens and for clusters of boolean shorthands.
func cutFlag(token string) (name, value string, hasValue bool) {
	if strings.HasPrefix(token, "--") {
		name = token[2:]
		if i := strings.IndexByte(name, '='); i >= 0 {
			return name[:i], name[i+1:], true
		}
		return name, "", false
	}
	if !strings.HasPrefix(token, "-") || len(token) < 2 {
		return "", "", false
	}
	for i := 1; i < len(token); i++ {
		if strings.IndexByte(valueShorthands, token[i]) < 0 {
			// boolean shorthand inside a cluster, e.g. the J in -Jb
			continue
		}
		rest := token[i+1:]
		if strings.HasPrefix(rest, "=") {
			rest = rest[1:]
		}
		if rest == "" {
			return token[i : i+1], "", false
		}
		return token[i : i+1], rest, true
	}
	return "", "", false
}

func parseUint16(list []string, cursor *int) (uint16, error) {
	if *cursor >= len(list) {
		return 0, fmt.Errorf("flag order does not match parsed values")
	}
	raw := list[*cursor]
	*cursor++
	// Base 0 admits the historical hex spellings like 0x7c0.
	v, err := strconv.ParseUint(raw, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	return uint16(v), nil
}
