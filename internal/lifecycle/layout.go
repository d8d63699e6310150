// Package lifecycle decides where documents live and moves instance
// documents from Active to Archive once they age out or are superseded.
package lifecycle

import (
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/models"
)

// Layout names the governed top-level directories of the vault.
type Layout struct {
	ActiveDir       string `yaml:"active_dir"`
	ArchiveDir      string `yaml:"archive_dir"`
	InstructionsDir string `yaml:"instructions_dir"`
	ModuleDocsDir   string `yaml:"module_docs_dir"`
}

// DefaultLayout returns the stock directory names.
func DefaultLayout() Layout {
	return Layout{
		ActiveDir:       "Active",
		ArchiveDir:      "Archive",
		InstructionsDir: "ProjectInstructions",
		ModuleDocsDir:   "ModuleDocs",
	}
}

// Validate validates the layout.
func (l *Layout) Validate() error {
	noSlash := validation.By(func(v any) error {
		if strings.ContainsAny(v.(string), `/\`) {
			return fmt.Errorf("must be a single directory name")
		}
		return nil
	})
	return validation.ValidateStruct(l,
		validation.Field(&l.ActiveDir, validation.Required, noSlash),
		validation.Field(&l.ArchiveDir, validation.Required, noSlash),
		validation.Field(&l.InstructionsDir, validation.Required, noSlash),
		validation.Field(&l.ModuleDocsDir, validation.Required, noSlash),
	)
}

// Locate maps a vault-relative path to its Location. An archive segment
// anywhere in the path wins; otherwise the first segment decides and
// everything else counts as Active.
func (l Layout) Locate(p string) models.Location {
	segs := strings.Split(path.Dir(path.Clean(p)), "/")
	for _, s := range segs {
		if strings.EqualFold(s, l.ArchiveDir) {
			return models.LocationArchive
		}
	}
	switch {
	case strings.EqualFold(segs[0], l.InstructionsDir):
		return models.LocationProjectInstructions
	case strings.EqualFold(segs[0], l.ModuleDocsDir):
		return models.LocationModuleDocs
	default:
		return models.LocationActive
	}
}

// ArchivePath returns where p goes when archived: Active/x/y.md becomes
// Archive/x/y.md; anywhere else the archive directory is inserted beside
// the file.
func (l Layout) ArchivePath(p string) (string, error) {
	p = path.Clean(p)
	if l.Locate(p) == models.LocationArchive {
		return "", fmt.Errorf("%w: %s is already archived", apperr.ErrNotArchivable, p)
	}
	segs := strings.Split(p, "/")
	if len(segs) > 1 && strings.EqualFold(segs[0], l.ActiveDir) {
		segs[0] = l.ArchiveDir
		return path.Join(segs...), nil
	}
	return path.Join(path.Dir(p), l.ArchiveDir, path.Base(p)), nil
}

// ActivePath returns rel placed under the Active directory.
func (l Layout) ActivePath(rel string) string {
	return path.Join(l.ActiveDir, rel)
}
