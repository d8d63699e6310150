// Package header reads, writes and validates the metadata block stamped at
// the top of every governed document.
//
// The header is YAML frontmatter with a fixed key order:
//
//	---
//	filename: Status-LearnApp-251017-1430.md
//	created: 2025-10-17 14:30
//	author: Jane Doe
//	purpose: Track the LearnApp fix wave
//	last_modified: 2025-10-17 14:30
//	version: 1
//	changelog:
//	  - date: 2025-10-17 14:30
//	    version: 1
//	    note: Initial version
//	---
package header

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/doclife/internal/models"
)

// TimeLayout is the layout of every time field in the header.
const TimeLayout = "2006-01-02 15:04"

const delim = "---"

// ErrNoHeader is returned when an operation needs an existing header.
var ErrNoHeader = errors.New("header: document has no header")

// Meta carries the caller-supplied fields for a new header.
type Meta struct {
	Filename string
	Author   string
	Purpose  string
	// Created defaults to the stamping time when zero.
	Created time.Time
}

// Parse splits data into its header and body. found is false when the file
// does not start with a frontmatter block or the block is not valid YAML;
// the whole content is then the body.
func Parse(data []byte) (h *models.Header, body string, found bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}

	block := rest[:idx]
	after := rest[idx+1+len(delim):]
	body = strings.TrimLeft(string(after), "\n\r")

	var hdr models.Header
	if err := yaml.Unmarshal(block, &hdr); err != nil {
		return nil, string(data), false
	}
	return &hdr, body, true
}

// Render writes h as frontmatter followed by a blank line and body.
func Render(h *models.Header, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("header: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("header: encode: %w", err)
	}
	buf.WriteString(delim + "\n\n")
	buf.WriteString(strings.TrimLeft(body, "\n\r"))
	return buf.Bytes(), nil
}

// New returns a fresh version-1 header.
func New(meta Meta, now time.Time) *models.Header {
	created := meta.Created
	if created.IsZero() {
		created = now
	}
	ts := now.Format(TimeLayout)
	return &models.Header{
		Filename:     meta.Filename,
		Created:      created.Format(TimeLayout),
		Author:       meta.Author,
		Purpose:      meta.Purpose,
		LastModified: ts,
		Version:      1,
		Changelog: []models.ChangeEntry{
			{Date: ts, Version: 1, Note: "Initial version"},
		},
	}
}

// Stamp makes sure data carries a header. A missing header is created from
// meta. An existing header keeps its history; only the filename field is
// corrected and empty author/purpose fields are filled in. changed reports
// whether the output differs from data.
func Stamp(data []byte, meta Meta, now time.Time) (out []byte, changed bool, err error) {
	h, body, found := Parse(data)
	if !found {
		out, err = Render(New(meta, now), string(data))
		return out, err == nil, err
	}

	dirty := false
	if meta.Filename != "" && h.Filename != meta.Filename {
		h.Filename = meta.Filename
		dirty = true
	}
	if h.Author == "" && meta.Author != "" {
		h.Author = meta.Author
		dirty = true
	}
	if h.Purpose == "" && meta.Purpose != "" {
		h.Purpose = meta.Purpose
		dirty = true
	}
	if !dirty {
		return data, false, nil
	}
	out, err = Render(h, body)
	return out, err == nil, err
}

// Update replaces the body of data and records the change: last_modified
// moves to now, the version is bumped and a changelog entry is appended.
func Update(data []byte, body, note string, now time.Time) ([]byte, error) {
	h, _, found := Parse(data)
	if !found {
		return nil, ErrNoHeader
	}
	Record(h, note, now)
	return Render(h, body)
}

// Touch records a change to the existing body of data.
func Touch(data []byte, note string, now time.Time) ([]byte, error) {
	_, body, found := Parse(data)
	if !found {
		return nil, ErrNoHeader
	}
	return Update(data, body, note, now)
}

// Record bumps h for a content change made at now.
func Record(h *models.Header, note string, now time.Time) {
	if note == "" {
		note = "Updated"
	}
	ts := now.Format(TimeLayout)
	h.LastModified = ts
	h.Version++
	h.Changelog = append(h.Changelog, models.ChangeEntry{Date: ts, Version: h.Version, Note: note})
}
