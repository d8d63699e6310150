package api

import (
	"time"

	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/registry"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest = docservice.CreateRequest

// UpdateDocumentRequest is the request body for updating an exempt document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"# Readme\nUpdated" validate:"required"`
	Note    string `json:"note,omitempty" example:"Clarified setup steps"`
}

// SupersedeRequest is the request body for superseding an instance document.
type SupersedeRequest struct {
	Content string `json:"content" example:"# Status\nNext wave" validate:"required"`
	Note    string `json:"note,omitempty" example:"Wave 2"`
}

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.Detail

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.Document `json:"documents" validate:"required"`
	Total     int               `json:"total" example:"42" validate:"required"`
}

// ClassifyResponse reports how a filename is classified.
type ClassifyResponse struct {
	Filename    string          `json:"filename" example:"Status-LearnApp-251017-1430.md"`
	Category    models.Category `json:"category" example:"timestamped"`
	Rule        string          `json:"rule,omitempty" example:"prefix:Protocol-"`
	Conditional bool            `json:"conditional"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	Valid       bool            `json:"valid"`
	Error       string          `json:"error,omitempty" example:"timestamp is malformed"`
}

// NameResponse carries a suggested document path.
type NameResponse struct {
	Path string `json:"path" example:"Active/Status-LearnApp-251017-1430.md"`
}

// MovesResponse lists planned or completed lifecycle moves.
type MovesResponse struct {
	Moves  []lifecycle.Move `json:"moves" validate:"required"`
	DryRun bool             `json:"dry_run"`
}

// ViolationsResponse lists open violations with registry counts.
type ViolationsResponse struct {
	Violations []models.Violation `json:"violations" validate:"required"`
	Summary    *registry.Summary  `json:"summary"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []registry.SearchResult `json:"results" validate:"required"`
}

// AuditResponse wraps audit trail events.
type AuditResponse struct {
	Events []models.Event `json:"events" validate:"required"`
}
