package registry

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "doclife-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleDoc(path string, cat models.Category, loc models.Location, violations ...models.Violation) models.Document {
	return models.Document{
		Path:         path,
		Filename:     baseName(path),
		Category:     cat,
		Location:     loc,
		CreatedAt:    time.Date(2025, 10, 17, 14, 30, 0, 0, time.UTC),
		Checksum:     "cs-" + path,
		BodyChecksum: "body-" + path,
		Header: &models.Header{
			Filename: baseName(path),
			Purpose:  "Track " + path,
			Version:  1,
		},
		Violations: violations,
		UpdatedAt:  time.Now(),
	}
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM events`).Scan(&count); err != nil {
		t.Fatalf("events table missing: %v", err)
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	db := testDB(t)
	doc := sampleDoc("Active/Status-App-251017-1430.md", models.CategoryTimestamped, models.LocationActive)
	base := lint.Baseline{BodyChecksum: "b1", LastModified: "2025-10-17 14:30"}
	if err := db.UpsertDocument(doc, base, "hello body"); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	got, err := db.GetDocument(doc.Path)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Category != models.CategoryTimestamped || got.Location != models.LocationActive {
		t.Errorf("got %s/%s", got.Category, got.Location)
	}
	if !got.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, doc.CreatedAt)
	}
	if got.Header == nil || got.Header.Purpose != doc.Header.Purpose {
		t.Errorf("header not round-tripped: %+v", got.Header)
	}
	if got.Violations == nil {
		t.Error("violations should be an empty slice, not nil")
	}

	b, err := db.GetBaseline(doc.Path)
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if b == nil || *b != base {
		t.Errorf("baseline = %+v, want %+v", b, base)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetDocument("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	b, err := db.GetBaseline("missing.md")
	if err != nil || b != nil {
		t.Errorf("GetBaseline = %+v, %v; want nil, nil", b, err)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	doc := sampleDoc("README.md", models.CategoryExempt, models.LocationActive)
	_ = db.UpsertDocument(doc, lint.Baseline{}, "body")

	if err := db.DeleteDocument("README.md"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := db.GetDocument("README.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("document still present: %v", err)
	}
	cs, _ := db.AllChecksums()
	if len(cs) != 0 {
		t.Errorf("checksums = %v, want empty", cs)
	}
}

func TestListDocumentsFilter(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(sampleDoc("README.md", models.CategoryExempt, models.LocationActive), lint.Baseline{}, "")
	_ = db.UpsertDocument(sampleDoc("Active/Plan-A-251017-1430.md", models.CategoryTimestamped, models.LocationActive), lint.Baseline{}, "")
	_ = db.UpsertDocument(sampleDoc("Archive/Plan-B-240101-0900.md", models.CategoryTimestamped, models.LocationArchive), lint.Baseline{}, "")

	docs, total, err := db.ListDocuments(Filter{Category: string(models.CategoryTimestamped)})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Fatalf("total=%d len=%d, want 2", total, len(docs))
	}
	if docs[0].Path != "Active/Plan-A-251017-1430.md" {
		t.Errorf("first = %q, want path order", docs[0].Path)
	}

	docs, total, _ = db.ListDocuments(Filter{Location: string(models.LocationArchive)})
	if total != 1 || docs[0].Path != "Archive/Plan-B-240101-0900.md" {
		t.Errorf("archive filter: total=%d docs=%v", total, docs)
	}

	docs, total, _ = db.ListDocuments(Filter{Limit: 1, Offset: 1})
	if total != 3 || len(docs) != 1 {
		t.Errorf("paging: total=%d len=%d", total, len(docs))
	}
}

func TestViolationsAndSummary(t *testing.T) {
	db := testDB(t)
	v1 := models.Violation{Path: "Active/Status-X.md", Rule: models.RuleTimestampMissing, Severity: models.SeverityError}
	v2 := models.Violation{Path: "Active/Status-X.md", Rule: models.RuleHeaderMissing, Severity: models.SeverityError}
	_ = db.UpsertDocument(sampleDoc("Active/Status-X.md", models.CategoryTimestamped, models.LocationActive, v1, v2), lint.Baseline{}, "")
	_ = db.UpsertDocument(sampleDoc("README.md", models.CategoryExempt, models.LocationActive), lint.Baseline{}, "")

	vs, err := db.Violations()
	if err != nil {
		t.Fatalf("Violations: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("violations = %d, want 2", len(vs))
	}

	s, err := db.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Documents != 2 || s.WithViolations != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.ByCategory["exempt"] != 1 || s.ByCategory["timestamped"] != 1 {
		t.Errorf("by category = %v", s.ByCategory)
	}
	if s.ByRule[models.RuleHeaderMissing] != 1 {
		t.Errorf("by rule = %v", s.ByRule)
	}
}

func TestSearchFallback(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(sampleDoc("Active/Plan-Search-251017-1430.md", models.CategoryTimestamped, models.LocationActive), lint.Baseline{}, "The quick brown fox")

	results, err := db.Search("brown", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "Active/Plan-Search-251017-1430.md" {
		t.Errorf("results = %+v", results)
	}
}

func TestRecordAndListEvents(t *testing.T) {
	db := testDB(t)
	at := time.Date(2025, 10, 17, 15, 0, 0, 0, time.UTC)
	ev, err := db.RecordEvent(models.Event{Kind: models.EventArchived, Path: "Archive/a.md", From: "Active/a.md", To: "Archive/a.md", At: at})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected generated id")
	}
	_, _ = db.RecordEvent(models.Event{Kind: models.EventCreated, Path: "b.md", At: at.Add(time.Minute)})

	all, err := db.Events("", 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(all) != 2 || all[0].Path != "b.md" {
		t.Fatalf("events = %+v, want newest first", all)
	}

	byPath, _ := db.Events("Active/a.md", 10)
	if len(byPath) != 1 || byPath[0].Kind != models.EventArchived {
		t.Errorf("events by from path = %+v", byPath)
	}
}
