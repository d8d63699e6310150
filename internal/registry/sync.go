package registry

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/starford/doclife/internal/checksum"
	"github.com/starford/doclife/internal/header"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/storage"
)

// EventCallback is called after an indexer-driven registry change.
type EventCallback func(ev models.Event)

// Indexer reconciles the registry with the files in a store.
type Indexer struct {
	db        Registry
	store     storage.Provider
	checker   *lint.Checker
	logger    *slog.Logger
	autoTouch bool
	now       func() time.Time
	cb        EventCallback
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithAutoTouch makes the indexer record a changelog entry on exempt
// documents whose body changed without a last_modified update.
func WithAutoTouch(on bool) IndexerOption {
	return func(ix *Indexer) { ix.autoTouch = on }
}

// WithClock overrides the indexer's time source.
func WithClock(now func() time.Time) IndexerOption {
	return func(ix *Indexer) { ix.now = now }
}

// WithCallback registers cb for every recorded event.
func WithCallback(cb EventCallback) IndexerOption {
	return func(ix *Indexer) { ix.cb = cb }
}

// NewIndexer returns an Indexer over db and store.
func NewIndexer(db Registry, store storage.Provider, checker *lint.Checker, logger *slog.Logger, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		db:      db,
		store:   store,
		checker: checker,
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Store returns the indexer's store.
func (ix *Indexer) Store() storage.Provider { return ix.store }

// Checker returns the indexer's lint checker.
func (ix *Indexer) Checker() *lint.Checker { return ix.checker }

// SetCallback replaces the event callback.
func (ix *Indexer) SetCallback(cb EventCallback) { ix.cb = cb }

// Sync walks the store and brings the registry up to date:
//   - every file is re-inspected so time-based violations stay current
//   - new or changed files emit created/updated events
//   - files removed from disk are deleted from the registry
func (ix *Indexer) Sync(ctx context.Context) error {
	metas, err := ix.store.List("")
	if err != nil {
		return err
	}
	checksums, err := ix.db.AllChecksums()
	if err != nil {
		return err
	}

	byDir := make(map[string][]string)
	for _, m := range metas {
		dir := path.Dir(m.Path)
		byDir[dir] = append(byDir[dir], path.Base(m.Path))
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		disk[m.Path] = struct{}{}
		prev, known := checksums[m.Path]

		data, err := ix.store.Read(m.Path)
		if err != nil {
			ix.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := ix.index(m.Path, data, byDir[path.Dir(m.Path)]); err != nil {
			ix.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		switch {
		case !known:
			ix.emit(models.Event{Kind: models.EventCreated, Path: m.Path})
		case prev != m.Checksum:
			ix.emit(models.Event{Kind: models.EventUpdated, Path: m.Path})
		}
		ix.logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := ix.db.DeleteDocument(p); err != nil {
			ix.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		ix.logger.Debug("sync: removed stale", slog.String("path", p))
		ix.emit(models.Event{Kind: models.EventDeleted, Path: p})
	}
	return nil
}

// IndexFile reads the file at p and registers it. It reports whether the
// registry changed. Unchanged files are left alone.
func (ix *Indexer) IndexFile(p string) (*models.Document, bool, error) {
	data, err := ix.store.Read(p)
	if err != nil {
		return nil, false, err
	}
	prev, err := ix.db.GetDocument(p)
	if err == nil && prev.Checksum == checksum.Sum(data) {
		return prev, false, nil
	}
	siblings, err := ix.Siblings(p)
	if err != nil {
		return nil, false, err
	}
	doc, err := ix.index(p, data, siblings)
	if err != nil {
		return nil, false, err
	}
	if doc.Conditional || ix.checker.Classifier().IsConditional(doc.Filename) {
		ix.refreshConditional(p, siblings)
	}
	return doc, true, nil
}

// refreshConditional re-inspects the other conditional files beside p,
// whose exemption depends on being the only one in their directory.
func (ix *Indexer) refreshConditional(p string, siblings []string) {
	dir := path.Dir(p)
	for _, name := range siblings {
		other := path.Join(dir, name)
		if other == p || !ix.checker.Classifier().IsConditional(name) {
			continue
		}
		data, err := ix.store.Read(other)
		if err != nil {
			continue
		}
		if _, err := ix.index(other, data, siblings); err != nil {
			ix.logger.Warn("sync: refresh failed", slog.String("path", other), slog.String("error", err.Error()))
		}
	}
}

// Refresh re-inspects p even when its content is unchanged, so
// time-based violations are current.
func (ix *Indexer) Refresh(p string) (*models.Document, error) {
	data, err := ix.store.Read(p)
	if err != nil {
		return nil, err
	}
	siblings, err := ix.Siblings(p)
	if err != nil {
		return nil, err
	}
	return ix.index(p, data, siblings)
}

// Remove deletes p from the registry.
func (ix *Indexer) Remove(p string) error {
	return ix.db.DeleteDocument(p)
}

// Record stores ev in the audit trail and notifies the callback.
func (ix *Indexer) Record(ev models.Event) models.Event {
	return ix.emit(ev)
}

func (ix *Indexer) index(p string, data []byte, siblings []string) (*models.Document, error) {
	now := ix.now()
	doc, body := ix.checker.Inspect(p, data, siblings, now)

	base, err := ix.db.GetBaseline(p)
	if err != nil {
		return nil, err
	}
	drift, accepted := lint.Drift(base, doc)

	if ix.autoTouch && hasRule(drift, models.RuleStaleLastModified) {
		touched, err := header.Touch(data, "Content updated", now)
		if err == nil {
			err = ix.store.Write(p, touched)
		}
		if err != nil {
			ix.logger.Warn("sync: auto-touch failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			doc, body = ix.checker.Inspect(p, touched, siblings, now)
			drift, accepted = lint.Drift(base, doc)
			ix.emit(models.Event{Kind: models.EventTouched, Path: p, Detail: "last_modified updated"})
		}
	}

	doc.Violations = append(doc.Violations, drift...)
	if err := ix.db.UpsertDocument(doc, accepted, body); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Siblings returns the file names sharing p's directory, p included.
func (ix *Indexer) Siblings(p string) ([]string, error) {
	dir := path.Dir(p)
	listDir := dir
	if listDir == "." {
		listDir = ""
	}
	metas, err := ix.store.List(listDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range metas {
		if path.Dir(m.Path) == dir {
			out = append(out, path.Base(m.Path))
		}
	}
	return out, nil
}

func (ix *Indexer) emit(ev models.Event) models.Event {
	stored, err := ix.db.RecordEvent(ev)
	if err != nil {
		ix.logger.Warn("registry: record event failed", slog.String("kind", ev.Kind), slog.String("error", err.Error()))
	}
	if ix.cb != nil {
		ix.cb(stored)
	}
	return stored
}

func hasRule(vs []models.Violation, rule string) bool {
	for _, v := range vs {
		if v.Rule == rule {
			return true
		}
	}
	return false
}
