package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

// Filter narrows ListDocuments. Zero values mean "no filter".
type Filter struct {
	Category string
	Location string
	// Sort is one of "path" (default), "created_at", "updated_at".
	Sort   string
	Limit  int
	Offset int
}

// Summary aggregates the registry for reports and metrics.
type Summary struct {
	Documents      int            `json:"documents"`
	WithViolations int            `json:"with_violations"`
	ByCategory     map[string]int `json:"by_category"`
	ByLocation     map[string]int `json:"by_location"`
	ByRule         map[string]int `json:"by_rule"`
}

const documentColumns = `path, filename, category, conditional, location, created_at,
	checksum, body_checksum, header, violations, updated_at`

// UpsertDocument inserts or replaces a document, its baseline and its FTS
// entry within a transaction.
func (db *DB) UpsertDocument(doc models.Document, base lint.Baseline, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	headerJSON := ""
	purpose := ""
	if doc.Header != nil {
		b, _ := json.Marshal(doc.Header)
		headerJSON = string(b)
		purpose = doc.Header.Purpose
	}
	violations := doc.Violations
	if violations == nil {
		violations = []models.Violation{}
	}
	violationsJSON, _ := json.Marshal(violations)

	var created any
	if !doc.CreatedAt.IsZero() {
		created = doc.CreatedAt
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, filename, category, conditional, location, created_at,
			checksum, body_checksum, baseline_body, baseline_modified, header, purpose,
			violations, violation_count, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename          = excluded.filename,
			category          = excluded.category,
			conditional       = excluded.conditional,
			location          = excluded.location,
			created_at        = excluded.created_at,
			checksum          = excluded.checksum,
			body_checksum     = excluded.body_checksum,
			baseline_body     = excluded.baseline_body,
			baseline_modified = excluded.baseline_modified,
			header            = excluded.header,
			purpose           = excluded.purpose,
			violations        = excluded.violations,
			violation_count   = excluded.violation_count,
			body              = excluded.body,
			updated_at        = excluded.updated_at
	`, doc.Path, doc.Filename, string(doc.Category), doc.Conditional, string(doc.Location), created,
		doc.Checksum, doc.BodyChecksum, base.BodyChecksum, base.LastModified, headerJSON, purpose,
		string(violationsJSON), len(violations), body, updated)
	if err != nil {
		return fmt.Errorf("registry: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, doc.Path, doc.Filename, purpose, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDocument removes a document and its FTS entry. Events are kept.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("registry: delete document: %w", err)
	}
	return tx.Commit()
}

// GetDocument returns the registered document at path or apperr.ErrNotFound.
func (db *DB) GetDocument(path string) (*models.Document, error) {
	row := db.conn.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get document: %w", err)
	}
	return doc, nil
}

// GetBaseline returns the stored baseline for path, or nil when the path
// is not registered.
func (db *DB) GetBaseline(path string) (*lint.Baseline, error) {
	var b lint.Baseline
	err := db.conn.QueryRow(`SELECT baseline_body, baseline_modified FROM documents WHERE path = ?`, path).
		Scan(&b.BodyChecksum, &b.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get baseline: %w", err)
	}
	return &b, nil
}

// ListDocuments returns a page of documents and the total matching count.
func (db *DB) ListDocuments(f Filter) ([]models.Document, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	order := "path"
	switch f.Sort {
	case "created_at":
		order = "created_at DESC, path"
	case "updated_at":
		order = "updated_at DESC, path"
	}

	where := `WHERE (? = '' OR category = ?) AND (? = '' OR location = ?)`
	args := []any{f.Category, f.Category, f.Location, f.Location}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("registry: count documents: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+documentColumns+` FROM documents `+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: list documents: %w", err)
	}
	defer rows.Close()
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// AllDocuments returns every registered document ordered by path.
func (db *DB) AllDocuments() ([]models.Document, error) {
	rows, err := db.conn.Query(`SELECT ` + documentColumns + ` FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("registry: all documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// AllChecksums returns path → checksum for every registered document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("registry: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Violations returns every open violation ordered by path.
func (db *DB) Violations() ([]models.Violation, error) {
	rows, err := db.conn.Query(`SELECT violations FROM documents WHERE violation_count > 0 ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("registry: violations: %w", err)
	}
	defer rows.Close()
	out := []models.Violation{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var vs []models.Violation
		if err := json.Unmarshal([]byte(raw), &vs); err != nil {
			return nil, fmt.Errorf("registry: decode violations: %w", err)
		}
		out = append(out, vs...)
	}
	return out, rows.Err()
}

// Summary aggregates document counts by category, location and rule.
func (db *DB) Summary() (*Summary, error) {
	s := &Summary{
		ByCategory: map[string]int{},
		ByLocation: map[string]int{},
		ByRule:     map[string]int{},
	}
	rows, err := db.conn.Query(`SELECT category, location, violations, violation_count FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("registry: summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat, loc, raw string
			n             int
		)
		if err := rows.Scan(&cat, &loc, &raw, &n); err != nil {
			return nil, err
		}
		s.Documents++
		s.ByCategory[cat]++
		s.ByLocation[loc]++
		if n == 0 {
			continue
		}
		s.WithViolations++
		var vs []models.Violation
		if err := json.Unmarshal([]byte(raw), &vs); err != nil {
			return nil, fmt.Errorf("registry: decode violations: %w", err)
		}
		for _, v := range vs {
			s.ByRule[v.Rule]++
		}
	}
	return s, rows.Err()
}

// RecordEvent appends ev to the audit trail, filling in ID and At when
// empty, and returns the stored event.
func (db *DB) RecordEvent(ev models.Event) (models.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO events (id, kind, path, from_path, to_path, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Kind, ev.Path, ev.From, ev.To, ev.Detail, ev.At)
	if err != nil {
		return ev, fmt.Errorf("registry: record event: %w", err)
	}
	return ev, nil
}

// Events returns the most recent events, newest first. An empty path
// returns events for all documents.
func (db *DB) Events(path string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT id, kind, path, from_path, to_path, detail, at
		FROM events
		WHERE ? = '' OR path = ? OR from_path = ? OR to_path = ?
		ORDER BY at DESC, rowid DESC
		LIMIT ?
	`, path, path, path, path, limit)
	if err != nil {
		return nil, fmt.Errorf("registry: events: %w", err)
	}
	defer rows.Close()
	out := []models.Event{}
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Path, &ev.From, &ev.To, &ev.Detail, &ev.At); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var (
		doc                 models.Document
		cat, loc            string
		created             sql.NullTime
		headerRaw, violsRaw string
	)
	if err := s.Scan(&doc.Path, &doc.Filename, &cat, &doc.Conditional, &loc, &created,
		&doc.Checksum, &doc.BodyChecksum, &headerRaw, &violsRaw, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Category = models.Category(cat)
	doc.Location = models.Location(loc)
	if created.Valid {
		doc.CreatedAt = created.Time
	}
	if headerRaw != "" {
		var h models.Header
		if err := json.Unmarshal([]byte(headerRaw), &h); err != nil {
			return nil, fmt.Errorf("registry: decode header: %w", err)
		}
		doc.Header = &h
	}
	if err := json.Unmarshal([]byte(violsRaw), &doc.Violations); err != nil {
		return nil, fmt.Errorf("registry: decode violations: %w", err)
	}
	if doc.Violations == nil {
		doc.Violations = []models.Violation{}
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	out := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}
