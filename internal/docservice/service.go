// Package docservice coordinates naming, header stamping, storage, the
// registry and the lifecycle mover into the documentation workflow.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/checksum"
	"github.com/starford/doclife/internal/header"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/metrics"
	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/naming"
	"github.com/starford/doclife/internal/policy"
	"github.com/starford/doclife/internal/registry"
	"github.com/starford/doclife/internal/storage"
)

// Detail is a registered document together with its raw content.
type Detail struct {
	models.Document
	Content string `json:"content"`
}

// CreateRequest describes a new document.
type CreateRequest struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	// Dir is the vault-relative target directory. Empty picks Active for
	// instance types and the instructions directory for living ones.
	Dir     string `json:"dir,omitempty"`
	Author  string `json:"author,omitempty"`
	Purpose string `json:"purpose"`
	Body    string `json:"body"`
}

// Service coordinates storage, registry and lifecycle operations.
type Service struct {
	store   storage.Provider
	db      registry.Registry
	ix      *registry.Indexer
	checker *lint.Checker
	mover   lifecycle.Mover
	renamer *naming.Renamer
	metrics *metrics.Metrics
	logger  *slog.Logger
	author  string
	loc     *time.Location
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAuthor sets the author used when a request does not name one.
func WithAuthor(author string) Option {
	return func(s *Service) { s.author = author }
}

// WithMetrics reports registry state and moves to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone for filename stamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a document service. mover performs archive and rename
// moves; a nil mover moves files through the store.
func NewService(ix *registry.Indexer, db registry.Registry, mover lifecycle.Mover, opts ...Option) *Service {
	s := &Service{
		store:   ix.Store(),
		db:      db,
		ix:      ix,
		checker: ix.Checker(),
		mover:   mover,
		logger:  slog.Default(),
		loc:     time.Local,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.mover == nil {
		s.mover = s.store
	}
	s.renamer = naming.NewRenamer(s.checker.Classifier(), s.loc)
	return s
}

// Layout returns the vault directory layout.
func (s *Service) Layout() lifecycle.Layout { return s.checker.Planner().Layout() }

// Rules returns the active classification rules.
func (s *Service) Rules() policy.Rules { return s.checker.Classifier().Rules() }

// Classify classifies a bare filename.
func (s *Service) Classify(name string) policy.Classification {
	return s.checker.Classifier().Classify(path.Base(name))
}

// SuggestName returns a free conforming name for a document of docType in
// dir (empty dir uses the default for the type).
func (s *Service) SuggestName(docType, description, dir string) (string, error) {
	name, err := naming.Name(docType, description, s.now().In(s.loc))
	if err != nil {
		return "", err
	}
	dir = s.targetDir(docType, dir)
	free, err := naming.NextFree(name, func(n string) bool { return s.store.Exists(path.Join(dir, n)) })
	if err != nil {
		return "", err
	}
	return path.Join(dir, free), nil
}

// Create names, stamps, writes and registers a new document.
func (s *Service) Create(_ context.Context, req CreateRequest) (*Detail, error) {
	p, err := s.SuggestName(req.Type, req.Description, req.Dir)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	h := header.New(header.Meta{
		Filename: path.Base(p),
		Author:   s.authorOr(req.Author),
		Purpose:  req.Purpose,
	}, now)
	data, err := header.Render(h, req.Body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, data); err != nil {
		return nil, err
	}
	doc, err := s.register(p)
	if err != nil {
		return nil, err
	}
	s.ix.Record(models.Event{Kind: models.EventCreated, Path: p, Detail: "created via service"})
	return &Detail{Document: *doc, Content: string(data)}, nil
}

// Update replaces the body of an exempt document and records the change in
// its header. ifMatch, when set, must equal the current file checksum.
// content may carry a header of its own; only its body is used.
func (s *Service) Update(_ context.Context, p string, content []byte, note, ifMatch string) (*Detail, error) {
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	cl, err := s.classify(p)
	if err != nil {
		return nil, err
	}
	if cl.Category == models.CategoryTimestamped {
		return nil, fmt.Errorf("%w: %s is an instance document; supersede it instead", apperr.ErrImmutable, path.Base(p))
	}

	_, body, found := header.Parse(content)
	if !found {
		body = string(content)
	}
	now := s.now().In(s.loc)
	var data []byte
	if _, _, has := header.Parse(existing); has {
		data, err = header.Update(existing, body, note, now)
	} else {
		data, err = header.Render(header.New(s.meta(p, ""), now), body)
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, data); err != nil {
		return nil, err
	}
	doc, err := s.register(p)
	if err != nil {
		return nil, err
	}
	s.ix.Record(models.Event{Kind: models.EventUpdated, Path: p, Detail: note})
	return &Detail{Document: *doc, Content: string(data)}, nil
}

// Supersede writes the successor of the instance document at p: a new
// stamped file of the same type and description whose header continues the
// predecessor's version history. The predecessor is then archived.
func (s *Service) Supersede(ctx context.Context, p string, content []byte, note string) (*Detail, error) {
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	cl, err := s.classify(p)
	if err != nil {
		return nil, err
	}
	if cl.Category != models.CategoryTimestamped {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotTimestamped, path.Base(p))
	}
	if s.Layout().Locate(p) == models.LocationArchive {
		return nil, fmt.Errorf("%w: %s is already archived", apperr.ErrNotArchivable, p)
	}
	archived, err := s.Layout().ArchivePath(p)
	if err != nil {
		return nil, err
	}
	if s.store.Exists(archived) {
		return nil, fmt.Errorf("docservice: archive predecessor to %s: %w", archived, apperr.ErrAlreadyExists)
	}

	now := s.now().In(s.loc)
	dir := path.Dir(p)
	name, err := naming.Successor(p, now)
	if err != nil {
		return nil, err
	}
	name, err = naming.NextFree(name, func(n string) bool { return s.store.Exists(path.Join(dir, n)) })
	if err != nil {
		return nil, err
	}
	next := path.Join(dir, name)

	_, body, found := header.Parse(content)
	if !found {
		body = string(content)
	}
	if note == "" {
		note = "Supersedes " + path.Base(p)
	} else {
		note = "Supersedes " + path.Base(p) + ": " + note
	}

	h := header.New(s.meta(next, ""), now)
	if prev, _, ok := header.Parse(existing); ok {
		h.Author = firstNonEmpty(prev.Author, h.Author)
		h.Purpose = prev.Purpose
		h.Version = prev.Version
		h.Changelog = prev.Changelog
	} else {
		h.Version = 0
		h.Changelog = nil
	}
	header.Record(h, note, now)

	data, err := header.Render(h, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(next, data); err != nil {
		return nil, err
	}
	doc, err := s.register(next)
	if err == nil {
		_, err = s.archive(ctx, p, archived, "superseded by "+name, "supersede")
	}
	if err != nil {
		s.discard(next)
		return nil, fmt.Errorf("docservice: supersede %s: %w", p, err)
	}
	s.ix.Record(models.Event{Kind: models.EventSuperseded, Path: next, From: p, To: next, Detail: note})
	return &Detail{Document: *doc, Content: string(data)}, nil
}

// discard removes a successor whose predecessor could not be archived.
func (s *Service) discard(p string) {
	if err := s.store.Delete(p); err != nil {
		s.logger.Warn("supersede: remove successor failed", slog.String("path", p), slog.String("error", err.Error()))
	}
	if err := s.ix.Remove(p); err != nil {
		s.logger.Warn("supersede: unregister successor failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

// Archive moves the instance document at p into the archive.
func (s *Service) Archive(ctx context.Context, p string) (*lifecycle.Move, error) {
	if _, err := s.read(p); err != nil {
		return nil, err
	}
	cl, err := s.classify(p)
	if err != nil {
		return nil, err
	}
	if cl.Category != models.CategoryTimestamped {
		return nil, fmt.Errorf("%w: %s is a living document", apperr.ErrNotArchivable, path.Base(p))
	}
	to, err := s.Layout().ArchivePath(p)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, p, to, "manual", "archive")
}

func (s *Service) archive(ctx context.Context, from, to, reason, metric string) (*lifecycle.Move, error) {
	done, err := s.apply(ctx, []lifecycle.Move{{From: from, To: to, Reason: reason}}, models.EventArchived, metric)
	if err != nil {
		return nil, err
	}
	return &done[0], nil
}

// Sweep plans the archive moves due now and, unless dryRun, executes them.
// It returns the planned or completed moves.
func (s *Service) Sweep(ctx context.Context, dryRun bool) ([]lifecycle.Move, error) {
	if err := s.ix.Sync(ctx); err != nil {
		return nil, err
	}
	docs, err := s.db.AllDocuments()
	if err != nil {
		return nil, err
	}
	moves := s.checker.Planner().Plan(docs, s.now())
	if dryRun || len(moves) == 0 {
		return moves, nil
	}
	return s.apply(ctx, moves, models.EventArchived, "archive")
}

// Renames proposes convention-conforming names for non-conforming
// instance documents. With execute set the renames are applied.
func (s *Service) Renames(ctx context.Context, execute bool) ([]lifecycle.Move, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	var moves []lifecycle.Move
	taken := make(map[string]bool)
	for _, m := range metas {
		name, ok := s.renamer.Propose(path.Base(m.Path), m.UpdatedAt.In(s.loc))
		if !ok {
			continue
		}
		dir := path.Dir(m.Path)
		name, err := naming.NextFree(name, func(n string) bool {
			q := path.Join(dir, n)
			return taken[q] || s.store.Exists(q)
		})
		if err != nil {
			s.logger.Warn("rename: no free name", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		to := path.Join(dir, name)
		taken[to] = true
		moves = append(moves, lifecycle.Move{From: m.Path, To: to, Reason: "rename to convention"})
	}
	if !execute || len(moves) == 0 {
		return moves, nil
	}
	done, err := s.apply(ctx, moves, models.EventRenamed, "rename")
	for _, mv := range done {
		if _, err := s.Stamp(ctx, mv.To); err != nil {
			s.logger.Warn("rename: fix header failed", slog.String("path", mv.To), slog.String("error", err.Error()))
		}
	}
	return done, err
}

// Stamp adds a header to the document at p, or corrects the filename of an
// existing one. It reports whether the file changed.
func (s *Service) Stamp(_ context.Context, p string) (bool, error) {
	data, err := s.read(p)
	if err != nil {
		return false, err
	}
	meta := s.meta(p, "")
	if created, err := s.checker.Classifier().ParseStamp(path.Base(p)); err == nil {
		meta.Created = created
	} else if mt, err := s.store.ModTime(p); err == nil {
		meta.Created = mt.In(s.loc)
	}
	out, changed, err := header.Stamp(data, meta, s.now().In(s.loc))
	if err != nil || !changed {
		return false, err
	}
	if err := s.store.Write(p, out); err != nil {
		return false, err
	}
	if _, err := s.register(p); err != nil {
		return true, err
	}
	s.ix.Record(models.Event{Kind: models.EventStamped, Path: p})
	return true, nil
}

// Touch records a change to the current body of the exempt document at p.
func (s *Service) Touch(_ context.Context, p, note string) (*models.Document, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	cl, err := s.classify(p)
	if err != nil {
		return nil, err
	}
	if cl.Category == models.CategoryTimestamped {
		return nil, fmt.Errorf("%w: %s", apperr.ErrImmutable, path.Base(p))
	}
	out, err := header.Touch(data, note, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, out); err != nil {
		return nil, err
	}
	doc, err := s.register(p)
	if err != nil {
		return nil, err
	}
	s.ix.Record(models.Event{Kind: models.EventTouched, Path: p, Detail: note})
	return doc, nil
}

// Check re-lints the document at p.
func (s *Service) Check(_ context.Context, p string) (*models.Document, error) {
	if _, err := s.read(p); err != nil {
		return nil, err
	}
	return s.ix.Refresh(p)
}

// CheckAll re-lints the whole vault and returns every open violation.
func (s *Service) CheckAll(ctx context.Context) ([]models.Violation, error) {
	start := time.Now()
	if err := s.ix.Sync(ctx); err != nil {
		return nil, err
	}
	s.metrics.ObserveLint(time.Since(start))
	s.RefreshMetrics()
	return s.db.Violations()
}

// Get returns the registered document at p with its content.
func (s *Service) Get(_ context.Context, p string) (*Detail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	doc, err := s.db.GetDocument(p)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && doc.Checksum != checksum.Sum(data)) {
		doc, _, err = s.ix.IndexFile(p)
	}
	if err != nil {
		return nil, err
	}
	return &Detail{Document: *doc, Content: string(data)}, nil
}

// List returns a page of registered documents and the total count.
func (s *Service) List(_ context.Context, f registry.Filter) ([]models.Document, int, error) {
	return s.db.ListDocuments(f)
}

// Search delegates full-text search to the registry.
func (s *Service) Search(_ context.Context, query string, limit int) ([]registry.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Violations returns every open violation.
func (s *Service) Violations(_ context.Context) ([]models.Violation, error) {
	return s.db.Violations()
}

// Summary returns registry counts.
func (s *Service) Summary(_ context.Context) (*registry.Summary, error) {
	return s.db.Summary()
}

// Events returns the audit trail, newest first. An empty path returns
// events for every document.
func (s *Service) Events(_ context.Context, p string, limit int) ([]models.Event, error) {
	return s.db.Events(p, limit)
}

// RefreshMetrics pushes the current registry summary to the gauges.
func (s *Service) RefreshMetrics() {
	if s.metrics == nil {
		return
	}
	sum, err := s.db.Summary()
	if err != nil {
		s.logger.Warn("metrics: summary failed", slog.String("error", err.Error()))
		return
	}
	s.metrics.ObserveSummary(sum)
}

// apply executes moves and updates the registry for those that succeeded.
func (s *Service) apply(ctx context.Context, moves []lifecycle.Move, kind, metric string) ([]lifecycle.Move, error) {
	done, err := lifecycle.Execute(ctx, s.mover, moves)
	for _, mv := range done {
		if rmErr := s.ix.Remove(mv.From); rmErr != nil {
			s.logger.Warn("lifecycle: unregister failed", slog.String("path", mv.From), slog.String("error", rmErr.Error()))
		}
		if _, regErr := s.register(mv.To); regErr != nil {
			s.logger.Warn("lifecycle: register failed", slog.String("path", mv.To), slog.String("error", regErr.Error()))
		}
		s.ix.Record(models.Event{Kind: kind, Path: mv.To, From: mv.From, To: mv.To, Detail: mv.Reason})
		s.logger.Info("lifecycle: moved", slog.String("from", mv.From), slog.String("to", mv.To), slog.String("reason", mv.Reason))
	}
	s.metrics.IncrementMoves(metric, len(done))
	return done, err
}

func (s *Service) register(p string) (*models.Document, error) {
	return s.ix.Refresh(p)
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Service) classify(p string) (policy.Classification, error) {
	siblings, err := s.ix.Siblings(p)
	if err != nil {
		return policy.Classification{}, err
	}
	return s.checker.Classifier().ClassifyInDir(path.Base(p), siblings), nil
}

func (s *Service) meta(p, purpose string) header.Meta {
	return header.Meta{Filename: path.Base(p), Author: s.author, Purpose: purpose}
}

func (s *Service) authorOr(a string) string {
	return firstNonEmpty(strings.TrimSpace(a), s.author)
}

func (s *Service) targetDir(docType, dir string) string {
	if dir = strings.Trim(path.Clean("/"+dir), "/"); dir != "" {
		return dir
	}
	if naming.IsLiving(docType) {
		return s.Layout().InstructionsDir
	}
	return s.Layout().ActiveDir
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
