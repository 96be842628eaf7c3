// Command mkiso projects source trees onto an ISO9660 (optionally Joliet)
// namespace and writes the resulting volume image.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/mkiso/mkiso/internal/config"
	"github.com/mkiso/mkiso/internal/eltorito"
	"github.com/mkiso/mkiso/internal/filter"
	"github.com/mkiso/mkiso/internal/logging"
	"github.com/mkiso/mkiso/internal/progress"
	"github.com/mkiso/mkiso/internal/projector"
	"github.com/mkiso/mkiso/internal/volume"
)

const (
	exitFatal       = 1
	exitUnsupported = 255
)

var (
	cfg      = config.Default()
	settings string
	quiet    bool

	logLevel  = logging.LevelInfo
	logFormat = logging.FormatText

	excludes, excludeLists       []string
	hides, hideLists             []string
	hiddens, hiddenLists         []string
	hideJoliets, hideJolietLists []string

	bootImages, efiImages    []string
	bootLoadSegs, bootLoadSizes []string
	altBoot, noEmulBoot, hardDiskBoot, noBoot, bootInfoTable bool

	// Recognized for genisoimage compatibility but not implemented; using
	// any of them terminates with exit code 255.
	optUDF, optHFS, optApple bool
	optSort                  string
)

var logLevelIDs = map[logging.Level][]string{
	logging.LevelError: {"error"},
	logging.LevelWarn:  {"warn", "warning"},
	logging.LevelInfo:  {"info"},
	logging.LevelDebug: {"debug"},
}

var logFormatIDs = map[logging.Format][]string{
	logging.FormatText: {"text"},
	logging.FormatJSON: {"json"},
}

func main() {
	cmd := newCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, config.ErrUnsupported):
			os.Exit(exitUnsupported)
		default:
			os.Exit(exitFatal)
		}
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mkiso [flags] pathspec...",
		Short:         "Create an ISO9660 volume image from source trees",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Output, "output", "o", "", "output image file (required)")
	f.IntVar(&cfg.Level, "iso-level", cfg.Level, "ISO9660 interchange level (1-4)")
	f.BoolVarP(&cfg.Joliet, "joliet", "J", false, "generate the parallel Joliet namespace")
	f.IntVar(&cfg.UCSLevel, "ucs-level", cfg.UCSLevel, "Joliet UCS level (1-3)")
	f.BoolVarP(&cfg.RockRidge, "rock", "R", false, "generate Rock Ridge records")
	f.BoolVarP(&cfg.RationalRock, "rational-rock", "r", false, "Rock Ridge with normalized ownership")
	f.BoolVar(&cfg.GraftPoints, "graft-points", false, "pathspecs take the TARGET=SOURCE form")
	f.BoolVar(&cfg.NoBak, "nobak", false, "do not include editor backup files")
	f.BoolVar(&cfg.XA, "xa", false, "record CD-ROM XA extension signatures")
	f.StringVar(&settings, "settings", "", "YAML file with volume identifiers")
	f.BoolVar(&quiet, "quiet", false, "suppress the progress bar")

	f.StringVarP(&cfg.Identifiers.Volume, "volume-id", "V", cfg.Identifiers.Volume, "volume identifier")
	f.StringVarP(&cfg.Identifiers.Application, "application-id", "A", cfg.Identifiers.Application, "application identifier")
	f.StringVarP(&cfg.Identifiers.Preparer, "preparer-id", "p", cfg.Identifiers.Preparer, "data preparer identifier")
	f.StringVar(&cfg.Identifiers.Publisher, "publisher", "", "publisher identifier")
	f.StringVar(&cfg.Identifiers.System, "sysid", "", "system identifier")
	f.StringVar(&cfg.Identifiers.Set, "volset", "", "volume set identifier")
	f.StringVar(&cfg.Identifiers.CopyrightFile, "copyright", "", "copyright file identifier")
	f.StringVar(&cfg.Identifiers.AbstractFile, "abstract", "", "abstract file identifier")
	f.StringVar(&cfg.Identifiers.BibliographicFile, "biblio", "", "bibliographic file identifier")

	f.StringArrayVarP(&excludes, "exclude", "m", nil, "glob pattern of names to exclude (repeatable)")
	f.StringArrayVar(&excludeLists, "exclude-list", nil, "file with exclude patterns, one per line")
	f.StringArrayVar(&hides, "hide", nil, "glob pattern of names to hide from the ISO9660 tree")
	f.StringArrayVar(&hideLists, "hide-list", nil, "file with hide patterns")
	f.StringArrayVar(&hiddens, "hidden", nil, "glob pattern of names to mark with the hidden attribute")
	f.StringArrayVar(&hiddenLists, "hidden-list", nil, "file with hidden patterns")
	f.StringArrayVar(&hideJoliets, "hide-joliet", nil, "glob pattern of names to hide from the Joliet tree")
	f.StringArrayVar(&hideJolietLists, "hide-joliet-list", nil, "file with hide-joliet patterns")

	f.StringArrayVarP(&bootImages, "eltorito-boot", "b", nil, "boot image (repeatable, see --eltorito-alt-boot)")
	f.StringArrayVarP(&efiImages, "efi-boot", "e", nil, "EFI boot image")
	f.BoolVar(&altBoot, "eltorito-alt-boot", false, "start a new boot image entry")
	f.BoolVar(&noEmulBoot, "no-emul-boot", false, "boot image requires no emulation")
	f.BoolVar(&hardDiskBoot, "hard-disk-boot", false, "boot image is a hard disk image")
	f.BoolVar(&noBoot, "no-boot", false, "mark the boot entry not bootable")
	f.BoolVar(&bootInfoTable, "boot-info-table", false, "patch a boot info table into the image")
	f.StringArrayVar(&bootLoadSegs, "boot-load-seg", nil, "load segment for the boot image")
	f.StringArrayVar(&bootLoadSizes, "boot-load-size", nil, "number of virtual sectors to load")
	f.StringVarP(&cfg.Catalog, "eltorito-catalog", "c", "", "boot catalog path")

	f.BoolVar(&optUDF, "udf", false, "not supported")
	f.BoolVar(&optHFS, "hfs", false, "not supported")
	f.BoolVar(&optApple, "apple", false, "not supported")
	f.StringVar(&optSort, "sort", "", "not supported")

	f.Var(enumflag.New(&logLevel, "log-level", logLevelIDs, enumflag.EnumCaseInsensitive),
		"log-level", "log verbosity: debug, info, warn, error")
	f.Var(enumflag.New(&logFormat, "log-format", logFormatIDs, enumflag.EnumCaseInsensitive),
		"log-format", "log output format: text, json")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if optUDF || optHFS || optApple || optSort != "" {
		return fmt.Errorf("%w: udf, hfs, apple and sort are not implemented", config.ErrUnsupported)
	}

	if settings != "" {
		// Explicit identifier flags win over the settings file.
		fromFlags := cfg.Identifiers
		if err := cfg.LoadSettings(settings); err != nil {
			return err
		}
		restoreChanged(cmd, &cfg.Identifiers, fromFlags)
	}

	rules, err := buildRules()
	if err != nil {
		return err
	}

	entries, err := eltorito.Group(os.Args[1:], eltorito.Values{
		Boot:     bootImages,
		EFIBoot:  efiImages,
		LoadSeg:  bootLoadSegs,
		LoadSize: bootLoadSizes,
	})
	if err != nil {
		return err
	}

	if err := cfg.Validate(len(entries)); err != nil {
		return err
	}

	roots, err := parseRoots(args)
	if err != nil {
		return err
	}

	log := logging.NewLogger(logging.Config{Level: logLevel, Format: logFormat})
	vol := volume.NewDiskWriter(cfg.CreateOptions(), log)

	proj := projector.New(vol, projector.Options{
		Level:          cfg.Level,
		Joliet:         cfg.Joliet,
		ExtendedNaming: cfg.ExtendedNaming(),
		Filters:        rules,
		BootEntries:    entries,
		Catalog:        cfg.Catalog,
		Log:            log,
	})
	if err := proj.Project(roots); err != nil {
		return err
	}

	bar := progress.New("writing "+cfg.Output, !quiet)
	err = vol.Serialize(cfg.Output, bar.Set)
	bar.Finish()
	if err != nil {
		return err
	}

	log.Infof("wrote %s", cfg.Output)
	return nil
}

// restoreChanged puts back identifier values the user set explicitly on the
// command line, undoing any override from the settings file.
func restoreChanged(cmd *cobra.Command, ids *volume.Identifiers, fromFlags volume.Identifiers) {
	for name, pair := range map[string]struct {
		dst *string
		val string
	}{
		"volume-id":      {&ids.Volume, fromFlags.Volume},
		"application-id": {&ids.Application, fromFlags.Application},
		"preparer-id":    {&ids.Preparer, fromFlags.Preparer},
		"publisher":      {&ids.Publisher, fromFlags.Publisher},
		"sysid":          {&ids.System, fromFlags.System},
		"volset":         {&ids.Set, fromFlags.Set},
		"copyright":      {&ids.CopyrightFile, fromFlags.CopyrightFile},
		"abstract":       {&ids.AbstractFile, fromFlags.AbstractFile},
		"biblio":         {&ids.BibliographicFile, fromFlags.BibliographicFile},
	} {
		if cmd.Flags().Changed(name) {
			*pair.dst = pair.val
		}
	}
}

func buildRules() (*filter.Rules, error) {
	rules := filter.New()
	for _, group := range []struct {
		cat      filter.Category
		patterns []string
		lists    []string
	}{
		{filter.Exclude, excludes, excludeLists},
		{filter.Hide, hides, hideLists},
		{filter.Hidden, hiddens, hiddenLists},
		{filter.HideJoliet, hideJoliets, hideJolietLists},
	} {
		if err := rules.Add(group.cat, group.patterns...); err != nil {
			return nil, err
		}
		for _, list := range group.lists {
			if err := rules.AddFile(group.cat, list); err != nil {
				return nil, err
			}
		}
	}
	if cfg.NoBak {
		rules.AddBackupPatterns()
	}
	return rules, nil
}

// parseRoots turns pathspec arguments into projection roots. With
// --graft-points a pathspec of the form TARGET=SOURCE projects SOURCE under
// TARGET inside the volume; a backslash escapes a literal '=' in paths.
func parseRoots(args []string) ([]projector.Root, error) {
	roots := make([]projector.Root, 0, len(args))
	for _, arg := range args {
		if !cfg.GraftPoints {
			roots = append(roots, projector.Root{Source: arg})
			continue
		}
		target, source, found := cutUnescaped(arg, '=')
		if !found {
			roots = append(roots, projector.Root{Source: unescape(arg)})
			continue
		}
		if source == "" {
			return nil, fmt.Errorf("malformed graft point %q", arg)
		}
		roots = append(roots, projector.Root{Source: unescape(source), Target: unescape(target)})
	}
	return roots, nil
}

func cutUnescaped(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "\\=", "=")
}
