// Package models defines the domain types for doclife.
package models

import "time"

// Category says how a document evolves over time.
type Category string

const (
	// CategoryExempt documents are living documents, edited in place.
	CategoryExempt Category = "exempt"
	// CategoryTimestamped documents are instances, superseded by new files.
	CategoryTimestamped Category = "timestamped"
)

// Location is the governed area of the vault a document lives in.
type Location string

const (
	LocationActive              Location = "active"
	LocationArchive             Location = "archive"
	LocationProjectInstructions Location = "project_instructions"
	LocationModuleDocs          Location = "module_docs"
)

// Severity of a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Lint rule identifiers.
const (
	RuleTimestampMissing       = "timestamp-missing"
	RuleTimestampMalformed     = "timestamp-malformed"
	RuleHeaderMissing          = "header-missing"
	RuleHeaderInvalid          = "header-invalid"
	RuleHeaderFilenameMismatch = "header-filename-mismatch"
	RuleStaleLastModified      = "stale-last-modified"
	RuleInstanceEdited         = "instance-edited"
	RuleMisplaced              = "misplaced"
	RuleArchiveDue             = "archive-due"
)

// Violation is a single lint finding for a document.
type Violation struct {
	Path     string   `json:"path"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ChangeEntry is one line of a header changelog.
type ChangeEntry struct {
	Date    string `yaml:"date" json:"date"`
	Version int    `yaml:"version" json:"version"`
	Note    string `yaml:"note" json:"note"`
}

// Header is the metadata block stamped at the top of every document.
// Field order is the order written to disk.
type Header struct {
	Filename     string        `yaml:"filename" json:"filename"`
	Created      string        `yaml:"created" json:"created"`
	Author       string        `yaml:"author" json:"author"`
	Purpose      string        `yaml:"purpose" json:"purpose"`
	LastModified string        `yaml:"last_modified" json:"last_modified"`
	Version      int           `yaml:"version" json:"version"`
	Changelog    []ChangeEntry `yaml:"changelog" json:"changelog"`
}

// Document is a governed Markdown file.
type Document struct {
	Path         string      `json:"path"`
	Filename     string      `json:"filename"`
	Category     Category    `json:"category"`
	Conditional  bool        `json:"conditional,omitempty"`
	Location     Location    `json:"location"`
	Header       *Header     `json:"header,omitempty"`
	CreatedAt    time.Time   `json:"created_at,omitzero"`
	Checksum     string      `json:"checksum"`
	BodyChecksum string      `json:"body_checksum"`
	Violations   []Violation `json:"violations"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event kinds recorded in the audit trail.
const (
	EventCreated    = "created"
	EventUpdated    = "updated"
	EventDeleted    = "deleted"
	EventStamped    = "stamped"
	EventTouched    = "touched"
	EventSuperseded = "superseded"
	EventArchived   = "archived"
	EventRenamed    = "renamed"
)

// Event is an entry of the lifecycle audit trail.
type Event struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Path   string    `json:"path"`
	From   string    `json:"from,omitempty"`
	To     string    `json:"to,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
