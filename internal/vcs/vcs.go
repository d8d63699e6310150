// Package vcs stages lifecycle moves in git when the vault lives inside a
// work tree. Implemented with go-git, no git binary needed.
package vcs

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/format/index"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/storage"
)

// ErrNoRepository is returned by Open when dir is not inside a work tree.
var ErrNoRepository = errors.New("vcs: not a git work tree")

// Repo is the git work tree enclosing the vault.
type Repo struct {
	repo *gogit.Repository
	wt   *gogit.Worktree
	root string
	mu   sync.Mutex
}

// Open finds the work tree enclosing dir.
func Open(dir string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("vcs: open: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		if errors.Is(err, gogit.ErrIsBareRepository) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("vcs: worktree: %w", err)
	}
	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve root: %w", err)
	}
	return &Repo{repo: repo, wt: wt, root: root}, nil
}

// Root returns the absolute work tree root.
func (r *Repo) Root() string { return r.root }

// Author returns user.name from the repository and global git config, or
// "" when unset.
func (r *Repo) Author() string {
	cfg, err := r.repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return ""
	}
	return cfg.User.Name
}

// Move renames a tracked file and stages the rename, like git mv. Paths are
// absolute. Untracked sources yield index.ErrEntryNotFound.
func (r *Repo) Move(fromAbs, toAbs string) error {
	from, err := r.rel(fromAbs)
	if err != nil {
		return err
	}
	to, err := r.rel(toAbs)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.wt.Move(from, to); err != nil {
		if errors.Is(err, gogit.ErrDestinationExists) {
			return fmt.Errorf("vcs: move to %s: %w", to, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("vcs: move %s: %w", from, err)
	}
	return nil
}

// Tracked reports whether the file at abs is in the index.
func (r *Repo) Tracked(abs string) bool {
	rel, err := r.rel(abs)
	if err != nil {
		return false
	}
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return false
	}
	_, err = idx.Entry(rel)
	return err == nil
}

func (r *Repo) rel(abs string) (string, error) {
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		// The destination directory may not exist yet; resolve its parent.
		dir, err = resolveMissing(filepath.Dir(abs))
		if err != nil {
			return "", fmt.Errorf("vcs: resolve %s: %w", abs, err)
		}
	}
	rel, err := filepath.Rel(r.root, filepath.Join(dir, filepath.Base(abs)))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("vcs: %s is outside the work tree", abs)
	}
	return filepath.ToSlash(rel), nil
}

func resolveMissing(dir string) (string, error) {
	parent := filepath.Dir(dir)
	if parent == dir {
		return dir, nil
	}
	resolved, err := filepath.EvalSymlinks(parent)
	if err != nil {
		resolved, err = resolveMissing(parent)
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(resolved, filepath.Base(dir)), nil
}

// Mover moves vault files, staging the rename in git for tracked files and
// falling back to a plain rename otherwise. A nil repo always renames.
type Mover struct {
	repo  *Repo
	store storage.Provider
}

// NewMover returns a Mover over store. repo may be nil.
func NewMover(repo *Repo, store storage.Provider) *Mover {
	return &Mover{repo: repo, store: store}
}

// Move moves the vault-relative from to to.
func (m *Mover) Move(from, to string) error {
	if m.repo == nil {
		return m.store.Move(from, to)
	}
	if m.store.Exists(to) {
		return fmt.Errorf("vcs: move to %s: %w", to, apperr.ErrAlreadyExists)
	}
	root := m.store.Root()
	err := m.repo.Move(filepath.Join(root, filepath.FromSlash(from)), filepath.Join(root, filepath.FromSlash(to)))
	if errors.Is(err, index.ErrEntryNotFound) {
		return m.store.Move(from, to)
	}
	return err
}
