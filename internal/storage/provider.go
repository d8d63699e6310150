// Package storage defines the vault file-system abstraction.
package storage

import (
	"time"

	"github.com/starford/doclife/internal/models"
)

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath. It fails if newPath exists.
	Move(oldPath, newPath string) error
	// Exists reports whether a file is present at path.
	Exists(path string) bool
	// ModTime returns the modification time of the file at path.
	ModTime(path string) (time.Time, error)
	// Root returns the absolute vault root.
	Root() string
}
