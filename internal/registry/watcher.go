package registry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/doclife/internal/models"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the store root and keeps the registry
// current until ctx is cancelled. Events are reported through the
// indexer's callback.
//
// Directories created at runtime are added to the watch list. Rename events
// trigger a debounced full sync that removes stale entries and picks up the
// new name.
func (ix *Indexer) Watch(ctx context.Context) error {
	root := ix.store.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	ix.logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := ix.Sync(ctx); err != nil && ctx.Err() == nil {
				ix.logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			ix.handle(w, root, ev, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (ix *Indexer) handle(w *fsnotify.Watcher, root string, ev fsnotify.Event, reconcile func()) {
	abs := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") {
				return
			}
			if err := addDirsRecursive(w, abs); err != nil {
				ix.logger.Warn("watcher: add new dir failed", slog.String("path", abs), slog.String("error", err.Error()))
			}
			// Files moved in with the directory produce no events of their own.
			reconcile()
			return
		}
	}

	name := filepath.Base(abs)
	if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
		return
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		_, existed := ix.known(rel)
		doc, changed, err := ix.IndexFile(rel)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				ix.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			}
			return
		}
		if !changed {
			return
		}
		kind := models.EventUpdated
		if !existed {
			kind = models.EventCreated
		}
		ix.logger.Debug("watcher: indexed", slog.String("path", doc.Path), slog.String("op", kind))
		ix.emit(models.Event{Kind: kind, Path: rel})

	case ev.Op&fsnotify.Remove != 0:
		if _, existed := ix.known(rel); !existed {
			return
		}
		if err := ix.Remove(rel); err != nil {
			ix.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		ix.logger.Debug("watcher: deleted", slog.String("path", rel))
		ix.emit(models.Event{Kind: models.EventDeleted, Path: rel})

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports the old path only; the new one arrives as a
		// Create when it stays inside a watched directory.
		if _, existed := ix.known(rel); existed {
			if err := ix.Remove(rel); err == nil {
				ix.emit(models.Event{Kind: models.EventDeleted, Path: rel})
			}
		}
		reconcile()
	}
}

func (ix *Indexer) known(p string) (*models.Document, bool) {
	doc, err := ix.db.GetDocument(p)
	if err != nil {
		return nil, false
	}
	return doc, true
}

// addDirsRecursive adds root and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
