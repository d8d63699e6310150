// Package lint inspects a document and reports where it breaks the
// documentation policy.
package lint

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/starford/doclife/internal/checksum"
	"github.com/starford/doclife/internal/header"
	"github.com/starford/doclife/internal/lifecycle"
	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/policy"
)

// Checker builds Documents and their violations.
type Checker struct {
	classifier *policy.Classifier
	planner    *lifecycle.Planner
	loc        *time.Location
}

// New returns a Checker. A nil loc means time.Local.
func New(c *policy.Classifier, p *lifecycle.Planner, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.Local
	}
	return &Checker{classifier: c, planner: p, loc: loc}
}

// Classifier returns the checker's classifier.
func (c *Checker) Classifier() *policy.Classifier { return c.classifier }

// Planner returns the checker's archive planner.
func (c *Checker) Planner() *lifecycle.Planner { return c.planner }

// Inspect builds the Document for the file at p with content data. siblings
// are the other file names in the same directory. The returned body is the
// content below the header.
func (c *Checker) Inspect(p string, data []byte, siblings []string, now time.Time) (models.Document, string) {
	base := path.Base(p)
	cl := c.classifier.ClassifyInDir(base, siblings)
	h, body, found := header.Parse(data)

	doc := models.Document{
		Path:         p,
		Filename:     base,
		Category:     cl.Category,
		Conditional:  cl.Conditional,
		Location:     c.planner.Layout().Locate(p),
		Header:       h,
		CreatedAt:    cl.CreatedAt,
		Checksum:     checksum.Sum(data),
		BodyChecksum: checksum.Body(body),
		Violations:   []models.Violation{},
		UpdatedAt:    now,
	}
	add := func(rule string, sev models.Severity, msg string) {
		doc.Violations = append(doc.Violations, models.Violation{Path: p, Rule: rule, Severity: sev, Message: msg})
	}

	if cl.Err != nil {
		rule := models.RuleTimestampMissing
		if errors.Is(cl.Err, policy.ErrTimestampMalformed) {
			rule = models.RuleTimestampMalformed
		}
		add(rule, models.SeverityError, cl.Err.Error())
	}

	if !found {
		add(models.RuleHeaderMissing, models.SeverityError, "document has no metadata header")
	} else {
		if err := header.Validate(h, base); err != nil {
			if header.FilenameMismatch(err) {
				add(models.RuleHeaderFilenameMismatch, models.SeverityError,
					fmt.Sprintf("header names %q, file is %q", h.Filename, base))
			} else {
				add(models.RuleHeaderInvalid, models.SeverityError, err.Error())
			}
		}
		if doc.CreatedAt.IsZero() {
			if t, err := time.ParseInLocation(header.TimeLayout, h.Created, c.loc); err == nil {
				doc.CreatedAt = t
			}
		}
	}

	if doc.Category == models.CategoryTimestamped && doc.Location == models.LocationProjectInstructions {
		add(models.RuleMisplaced, models.SeverityError, "instance documents do not belong in project instructions")
	}
	if reason := c.planner.Due(doc, now); reason != "" {
		add(models.RuleArchiveDue, models.SeverityWarning, "should be archived: "+reason)
	}
	return doc, body
}

// Baseline is the last accepted state of a document body: the body
// checksum and the header last_modified it was accepted under.
type Baseline struct {
	BodyChecksum string
	LastModified string
}

// Drift compares doc with its previous baseline. Exempt documents must move
// last_modified whenever the body changes; instance documents must not
// change their body at all. It returns the violations found and the
// baseline to store. A nil base accepts doc as is.
func Drift(base *Baseline, doc models.Document) ([]models.Violation, Baseline) {
	lm := ""
	if doc.Header != nil {
		lm = doc.Header.LastModified
	}
	current := Baseline{BodyChecksum: doc.BodyChecksum, LastModified: lm}
	if base == nil {
		return nil, current
	}

	if doc.Category == models.CategoryTimestamped {
		if doc.BodyChecksum != base.BodyChecksum {
			return []models.Violation{{
				Path:     doc.Path,
				Rule:     models.RuleInstanceEdited,
				Severity: models.SeverityError,
				Message:  "instance documents are superseded by a new timestamped file, not edited in place",
			}}, *base
		}
		// Header-only edits (e.g. a rename fix) move the accepted state.
		return nil, current
	}

	if lm != base.LastModified {
		return nil, current
	}
	if doc.BodyChecksum != base.BodyChecksum {
		return []models.Violation{{
			Path:     doc.Path,
			Rule:     models.RuleStaleLastModified,
			Severity: models.SeverityError,
			Message:  "content changed but last_modified was not updated",
		}}, *base
	}
	return nil, *base
}
