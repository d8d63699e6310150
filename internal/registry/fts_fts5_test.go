//go:build sqlite_fts5

package registry

import (
	"testing"

	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	doc := sampleDoc("Active/Analysis-Fts-251017-1430.md", models.CategoryTimestamped, models.LocationActive)
	if err := db.UpsertDocument(doc, lint.Baseline{}, "The registry provides powerful full-text search."); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != doc.Path {
		t.Errorf("path = %q", results[0].Path)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(sampleDoc("gone.md", models.CategoryExempt, models.LocationActive), lint.Baseline{}, "vanishing content")
	_ = db.DeleteDocument("gone.md")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted document still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	doc := sampleDoc("README.md", models.CategoryExempt, models.LocationActive)
	_ = db.UpsertDocument(doc, lint.Baseline{}, "original text")
	_ = db.UpsertDocument(doc, lint.Baseline{}, "replacement text")

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Path != "README.md" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
