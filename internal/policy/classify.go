package policy

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/doclife/internal/models"
)

// StampLayout is the time layout of an instance document's filename suffix.
const StampLayout = "060102-1504"

var (
	ErrTimestampMissing   = errors.New("timestamp suffix missing")
	ErrTimestampMalformed = errors.New("timestamp suffix malformed")
)

var (
	stampRe = regexp.MustCompile(`-(\d{6})-(\d{4})$`)
	// A run of four or more digits, or three dashed pairs, looks like an
	// attempt at a date or time.
	digitsRe = regexp.MustCompile(`\d{4,}|\d{2}-\d{2}-\d{2}`)
)

// Classification is the outcome of classifying one filename.
type Classification struct {
	Filename    string          `json:"filename"`
	Category    models.Category `json:"category"`
	Rule        string          `json:"rule,omitempty"`
	Conditional bool            `json:"conditional,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitzero"`
	Err         error           `json:"-"`
}

// Valid reports whether the file is acceptable under the naming policy.
func (c Classification) Valid() bool { return c.Err == nil }

// Classifier applies a Rules list.
type Classifier struct {
	rules Rules
	loc   *time.Location
}

// New builds a Classifier. A nil loc means time.Local.
func New(rules Rules, loc *time.Location) (*Classifier, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Classifier{rules: rules, loc: loc}, nil
}

// Rules returns the rule list the classifier was built with.
func (c *Classifier) Rules() Rules { return c.rules }

// Classify classifies a filename without looking at its directory.
// Conditionally exempt files (developer manuals) are reported Exempt with
// Conditional set; use ClassifyInDir to resolve them.
func (c *Classifier) Classify(filename string) Classification {
	base := path.Base(filename)
	if rule, ok := c.exemptRule(base); ok {
		return Classification{Filename: base, Category: models.CategoryExempt, Rule: rule}
	}
	if c.IsConditional(base) {
		return Classification{
			Filename:    base,
			Category:    models.CategoryExempt,
			Rule:        "conditional",
			Conditional: true,
		}
	}
	return c.timestamped(base)
}

// ClassifyInDir classifies filename given the names of the other files in
// its directory. A developer manual is exempt only while it is the only one.
func (c *Classifier) ClassifyInDir(filename string, siblings []string) Classification {
	cl := c.Classify(filename)
	if !cl.Conditional {
		return cl
	}
	n := 1
	for _, s := range siblings {
		s = path.Base(s)
		if s != cl.Filename && c.IsConditional(s) {
			n++
		}
	}
	if n == 1 {
		cl.Rule = "conditional:sole"
		return cl
	}
	return c.timestamped(cl.Filename)
}

// IsConditional reports whether base matches a conditional exemption glob.
func (c *Classifier) IsConditional(base string) bool {
	return matchAny(c.rules.ConditionalGlobs, base)
}

// ParseStamp extracts the creation time from a filename ending in
// -YYMMDD-HHMM(.md).
func (c *Classifier) ParseStamp(filename string) (time.Time, error) {
	return parseStamp(path.Base(filename), c.loc)
}

func (c *Classifier) exemptRule(base string) (string, bool) {
	stem := strings.TrimSuffix(base, path.Ext(base))
	for _, n := range c.rules.ExemptNames {
		if strings.EqualFold(stem, n) {
			return "name:" + n, true
		}
	}
	for _, n := range c.rules.MasterNames {
		if strings.EqualFold(stem, n) {
			return "master:" + n, true
		}
	}
	for _, p := range c.rules.ExemptPrefixes {
		if strings.HasPrefix(base, p) {
			return "prefix:" + p, true
		}
	}
	for _, g := range c.rules.ExemptGlobs {
		if ok, _ := doublestar.Match(g, base); ok {
			return "glob:" + g, true
		}
	}
	return "", false
}

func (c *Classifier) timestamped(base string) Classification {
	cl := Classification{Filename: base, Category: models.CategoryTimestamped}
	t, err := parseStamp(base, c.loc)
	if err != nil {
		cl.Err = err
		return cl
	}
	cl.CreatedAt = t
	return cl
}

func parseStamp(base string, loc *time.Location) (time.Time, error) {
	stem := strings.TrimSuffix(base, path.Ext(base))
	m := stampRe.FindStringSubmatch(stem)
	if m == nil {
		if digitsRe.MatchString(stem) {
			return time.Time{}, fmt.Errorf("%w: %q must end with -YYMMDD-HHMM", ErrTimestampMalformed, base)
		}
		return time.Time{}, fmt.Errorf("%w: %q must end with -YYMMDD-HHMM", ErrTimestampMissing, base)
	}
	t, err := time.ParseInLocation(StampLayout, m[1]+"-"+m[2], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrTimestampMalformed, base, err)
	}
	return t, nil
}

func matchAny(globs []string, base string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}
