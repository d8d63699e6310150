package registry

import (
	"github.com/starford/doclife/internal/lint"
	"github.com/starford/doclife/internal/models"
)

// Registry defines the document registry operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Registry interface {
	UpsertDocument(doc models.Document, base lint.Baseline, body string) error
	DeleteDocument(path string) error
	GetDocument(path string) (*models.Document, error)
	GetBaseline(path string) (*lint.Baseline, error)
	ListDocuments(f Filter) ([]models.Document, int, error)
	AllDocuments() ([]models.Document, error)
	AllChecksums() (map[string]string, error)
	Violations() ([]models.Violation, error)
	Summary() (*Summary, error)
	Search(query string, limit int) ([]SearchResult, error)
	RecordEvent(ev models.Event) (models.Event, error)
	Events(path string, limit int) ([]models.Event, error)
	Close() error
}

// Verify *DB satisfies Registry at compile time.
var _ Registry = (*DB)(nil)
