// Package apperr holds the sentinel errors shared by the service layers.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidName    = errors.New("invalid document name")
	ErrInvalidPath    = errors.New("invalid path")
	ErrImmutable      = errors.New("timestamped documents are superseded, not edited")
	ErrNotTimestamped = errors.New("document is not timestamped")
	ErrNotArchivable  = errors.New("document cannot be archived")
)
