// Package projector walks source trees and projects them onto the
// constrained ISO9660 namespace (and the parallel Joliet namespace),
// emitting an ordered operation sequence to a volume.Writer.
package projector

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mkiso/mkiso/internal/eltorito"
	"github.com/mkiso/mkiso/internal/filter"
	"github.com/mkiso/mkiso/internal/identifier"
	"github.com/mkiso/mkiso/internal/logging"
	"github.com/mkiso/mkiso/internal/namespace"
	"github.com/mkiso/mkiso/internal/volume"
)

// maxDepth is the ISO9660 directory nesting ceiling that applies when no
// extended-naming namespace is active. Deeper branches are skipped with a
// diagnostic.
const maxDepth = 7

// BootResolutionError reports a boot descriptor or catalog request that
// never matched a source file during projection.
type BootResolutionError struct {
	Path string
}

func (e *BootResolutionError) Error() string {
	return fmt.Sprintf("boot path %q did not match any projected file", e.Path)
}

// Root is one pathspec: a source tree (or single file) and the target
// directory it grafts onto inside the volume. An empty Target projects onto
// the volume root.
type Root struct {
	Source string
	Target string
}

// Options configures a projection run.
type Options struct {
	Level          int  // ISO9660 interchange level
	Joliet         bool // maintain the parallel Joliet path
	ExtendedNaming bool // Rock Ridge active: symlinks allowed, no depth ceiling
	Filters        *filter.Rules
	BootEntries    []*eltorito.Entry
	Catalog        string // source-relative boot catalog path, "" when none
	Log            *logging.Logger
}

// Projector drives a traversal and the per-directory namespace state.
type Projector struct {
	vol  volume.Writer
	opts Options

	catalogTarget string
	grafts        map[string]graftDir
}

type graftDir struct {
	ns    *namespace.Dir
	depth int
}

// New returns a Projector emitting operations to vol.
func New(vol volume.Writer, opts Options) *Projector {
	if opts.Filters == nil {
		opts.Filters = filter.New()
	}
	return &Projector{vol: vol, opts: opts, grafts: make(map[string]graftDir)}
}

// Project walks every root in order and, once the whole tree is projected,
// submits the finalized boot descriptors in declaration order. Directory
// listings are processed in their enumeration order; the collision resolver
// depends on it.
func (p *Projector) Project(roots []Root) error {
	jolietRoot := ""
	if p.opts.Joliet {
		jolietRoot = "/"
	}
	rootNS := namespace.NewDir("", jolietRoot)

	for _, root := range roots {
		ns, depth := rootNS, 0
		if root.Target != "" {
			var err error
			ns, depth, err = p.graft(rootNS, root.Target)
			if err != nil {
				return err
			}
		}

		info, err := os.Lstat(root.Source)
		if err != nil {
			return fmt.Errorf("pathspec %s: %w", root.Source, err)
		}
		if info.IsDir() {
			if err := p.projectDir(root.Source, ns, depth, ""); err != nil {
				return err
			}
		} else {
			if err := p.projectFile(root.Source, filepath.Base(root.Source), ns, filepath.Base(root.Source)); err != nil {
				return err
			}
		}
	}

	return p.submitBoot()
}

// graft materializes the target directory chain of a TARGET=SOURCE
// pathspec, reusing directories shared between graft points.
func (p *Projector) graft(rootNS *namespace.Dir, target string) (*namespace.Dir, int, error) {
	ns, depth, sofar := rootNS, 0, ""
	for _, seg := range strings.Split(strings.Trim(path.Clean(target), "/"), "/") {
		sofar = path.Join(sofar, seg)
		if g, ok := p.grafts[sofar]; ok {
			ns, depth = g.ns, g.depth
			continue
		}

		final := ns.Resolve(identifier.MangleDir(seg, p.opts.Level), "")
		targetPath := ns.ISOPath + "/" + final
		jolietPath := ""
		if p.opts.Joliet {
			jolietPath = namespace.JolietJoin(ns.JolietPath, seg)
		}
		if err := p.vol.AddDirectory(targetPath, p.extendedName(seg), jolietPath); err != nil {
			return nil, 0, fmt.Errorf("graft point %s: %w", target, err)
		}

		ns = namespace.NewDir(targetPath, jolietPath)
		depth++
		p.grafts[sofar] = graftDir{ns: ns, depth: depth}
	}
	return ns, depth, nil
}

func (p *Projector) projectDir(srcDir string, ns *namespace.Dir, depth int, rootRel string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if p.opts.Filters.Match(filter.Exclude, name) {
			// Skip the path join for every excluded entry unless the message
			// would actually be emitted.
			if p.opts.Log.Enabled(logging.LevelDebug) {
				p.opts.Log.Debugf("excluding %s", filepath.Join(srcDir, name))
			}
			continue
		}

		src := filepath.Join(srcDir, name)
		rel := path.Join(rootRel, name)

		switch mode := entry.Type(); {
		case mode&os.ModeSymlink != 0:
			if err := p.projectSymlink(src, name, ns); err != nil {
				return err
			}
		case mode.IsDir():
			if depth+1 > maxDepth && !p.opts.ExtendedNaming {
				p.opts.Log.Warnf("skipping %s: directory nesting exceeds %d levels without Rock Ridge", src, maxDepth)
				continue
			}
			child, err := p.projectSubdir(name, ns)
			if err != nil {
				return err
			}
			if err := p.projectDir(src, child, depth+1, rel); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := p.projectFile(src, name, ns, rel); err != nil {
				return err
			}
		default:
			p.opts.Log.Warnf("skipping %s: not a regular file, directory or symlink", src)
		}
	}
	return nil
}

func (p *Projector) projectSubdir(name string, ns *namespace.Dir) (*namespace.Dir, error) {
	final := ns.Resolve(identifier.MangleDir(name, p.opts.Level), "")
	targetPath := ns.ISOPath + "/" + final
	jolietPath := ""
	if p.opts.Joliet {
		jolietPath = namespace.JolietJoin(ns.JolietPath, name)
	}
	if err := p.vol.AddDirectory(targetPath, p.extendedName(name), jolietPath); err != nil {
		return nil, fmt.Errorf("adding directory %s: %w", targetPath, err)
	}
	if err := p.applyHiding(name, targetPath, jolietPath); err != nil {
		return nil, err
	}
	return namespace.NewDir(targetPath, jolietPath), nil
}

func (p *Projector) projectFile(src, name string, ns *namespace.Dir, rel string) error {
	base, ext, err := identifier.MangleFile(name, p.opts.Level)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	final := ns.Resolve(base, ext)
	targetPath := ns.ISOPath + "/" + final
	jolietPath := ""
	if p.opts.Joliet {
		jolietPath = namespace.JolietJoin(ns.JolietPath, name)
	}

	if err := p.vol.AddFile(src, targetPath, p.extendedName(name), jolietPath); err != nil {
		return fmt.Errorf("adding %s: %w", src, err)
	}
	if err := p.applyHiding(name, targetPath, jolietPath); err != nil {
		return err
	}

	p.resolveBoot(rel, targetPath)
	return nil
}

func (p *Projector) projectSymlink(src, name string, ns *namespace.Dir) error {
	if !p.opts.ExtendedNaming {
		p.opts.Log.Warnf("skipping symlink %s: the target namespace does not support symlinks without Rock Ridge", src)
		return nil
	}
	linkTarget, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("reading symlink %s: %w", src, err)
	}

	base, ext, err := identifier.MangleFile(name, p.opts.Level)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	final := ns.Resolve(base, ext)
	targetPath := ns.ISOPath + "/" + final
	jolietPath := ""
	if p.opts.Joliet {
		jolietPath = namespace.JolietJoin(ns.JolietPath, name)
	}
	return p.vol.AddSymlink(targetPath, name, linkTarget, jolietPath)
}

// applyHiding runs the hide / hide-joliet / hidden decisions after an entry
// has been added: hiding removes the link from one namespace, hidden only
// sets the attribute bit.
func (p *Projector) applyHiding(name, targetPath, jolietPath string) error {
	if p.opts.Filters.Match(filter.Hidden, name) {
		if err := p.vol.SetHidden(targetPath); err != nil {
			return fmt.Errorf("hiding %s: %w", targetPath, err)
		}
	}
	if p.opts.Filters.Match(filter.Hide, name) {
		if err := p.vol.RemoveLink(targetPath, false); err != nil {
			return fmt.Errorf("removing link %s: %w", targetPath, err)
		}
	}
	if p.opts.Joliet && p.opts.Filters.Match(filter.HideJoliet, name) {
		if err := p.vol.RemoveLink(jolietPath, true); err != nil {
			return fmt.Errorf("removing joliet link %s: %w", jolietPath, err)
		}
	}
	return nil
}

// resolveBoot fills in the projected paths of boot descriptors and the boot
// catalog whose declared source-relative paths match the visited file.
func (p *Projector) resolveBoot(rel, targetPath string) {
	for _, e := range p.opts.BootEntries {
		if e.TargetPath == "" && samePath(e.BootFile, rel) {
			e.TargetPath = targetPath
		}
	}
	if p.opts.Catalog != "" && p.catalogTarget == "" && samePath(p.opts.Catalog, rel) {
		p.catalogTarget = targetPath
	}
}

// submitBoot checks descriptor completeness and hands the finalized entries
// to the collaborator in declaration order.
func (p *Projector) submitBoot() error {
	if len(p.opts.BootEntries) == 0 {
		return nil
	}
	for _, e := range p.opts.BootEntries {
		if e.TargetPath == "" {
			return &BootResolutionError{Path: e.BootFile}
		}
	}
	if p.opts.Catalog != "" && p.catalogTarget == "" {
		return &BootResolutionError{Path: p.opts.Catalog}
	}

	for _, e := range p.opts.BootEntries {
		err := p.vol.AddBootEntry(volume.BootEntry{
			BootFilePath: e.TargetPath,
			CatalogPath:  p.catalogTarget,
			Bootable:     e.Bootable,
			Platform:     e.Platform,
			Media:        e.Media,
			LoadSegment:  e.LoadSegment,
			LoadSize:     e.LoadSize,
			InfoTable:    e.InfoTable,
		})
		if err != nil {
			return fmt.Errorf("boot entry %s: %w", e.BootFile, err)
		}
	}
	return nil
}

func (p *Projector) extendedName(name string) string {
	if p.opts.ExtendedNaming {
		return name
	}
	return ""
}

// samePath compares a declared source-relative path with a visited entry's
// path, ignoring leading slashes and "." segments.
func samePath(declared, visited string) bool {
	norm := func(s string) string {
		return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(s)), "/")
	}
	return norm(declared) == norm(visited)
}
