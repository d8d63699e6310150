// Package naming builds and parses convention-conforming document names:
// Type-Description-YYMMDD-HHMM.md for instance documents and
// Type-Description.md for living ones.
package naming

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/policy"
)

// Instance document types; their names carry a creation stamp.
var instanceTypes = []string{
	"Status", "Report", "Analysis", "Plan", "Session", "Migration", "Decision", "Summary",
}

// Living document types; edited in place and named without a stamp.
var livingTypes = []string{
	"Protocol", "Reference", "Standards", "Context",
}

var stampSuffixRe = regexp.MustCompile(`-(\d{6}-\d{4})$`)

// Types returns the known instance and living document types.
func Types() (instance, living []string) {
	return append([]string(nil), instanceTypes...), append([]string(nil), livingTypes...)
}

// IsLiving reports whether docType names a living document type.
func IsLiving(docType string) bool {
	_, ok := canonical(livingTypes, docType)
	return ok
}

// Name builds a filename for a new document of docType created at at.
func Name(docType, description string, at time.Time) (string, error) {
	desc := Sanitize(description)
	if desc == "" {
		return "", fmt.Errorf("%w: description is empty", apperr.ErrInvalidName)
	}
	if t, ok := canonical(livingTypes, docType); ok {
		return t + "-" + desc + ".md", nil
	}
	t, ok := canonical(instanceTypes, docType)
	if !ok {
		return "", fmt.Errorf("%w: unknown document type %q", apperr.ErrInvalidName, docType)
	}
	return t + "-" + desc + "-" + at.Format(policy.StampLayout) + ".md", nil
}

// Sanitize turns free text into hyphenated words with a capitalised first
// letter each. Existing capitals are kept, so "LearnApp FK crash" becomes
// "LearnApp-FK-Crash".
func Sanitize(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, "-")
}

// NextFree returns name, or the first later minute whose stamped name is not
// taken according to exists. Names without a stamp are returned unchanged
// when free and rejected with apperr.ErrAlreadyExists otherwise.
func NextFree(name string, exists func(string) bool) (string, error) {
	if !exists(name) {
		return name, nil
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	m := stampSuffixRe.FindStringSubmatchIndex(stem)
	if m == nil {
		return "", fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, name)
	}
	prefix := stem[:m[2]]
	ts, err := time.Parse(policy.StampLayout, stem[m[2]:m[3]])
	if err != nil {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidName, name)
	}
	for i := 0; i < 24*60; i++ {
		ts = ts.Add(time.Minute)
		candidate := prefix + ts.Format(policy.StampLayout) + ext
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free stamp after %s", apperr.ErrAlreadyExists, name)
}

// Successor returns the name of the document that supersedes filename at
// at: the same stem with its stamp replaced. A stem without a valid stamp
// keeps its full text and gains one. The type is not checked against the
// known types, so renamed legacy documents can be superseded too.
func Successor(filename string, at time.Time) (string, error) {
	base := path.Base(filename)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if m := stampSuffixRe.FindStringSubmatchIndex(stem); m != nil {
		stem = stem[:m[0]]
	}
	if stem == "" {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidName, base)
	}
	return stem + "-" + at.Format(policy.StampLayout) + ext, nil
}

// Parts is a filename split into its convention components.
type Parts struct {
	Type        string
	Description string
	Stamp       time.Time
	HasStamp    bool
}

// Key identifies a document series: documents sharing a key supersede one
// another.
func (p Parts) Key() string {
	return strings.ToLower(p.Type + "/" + p.Description)
}

// Parse splits filename into type, description and stamp. The type is the
// first hyphen-separated word whether or not it is a known type.
func Parse(filename string, loc *time.Location) (Parts, error) {
	if loc == nil {
		loc = time.Local
	}
	base := path.Base(filename)
	stem := strings.TrimSuffix(base, path.Ext(base))
	var p Parts
	if m := stampSuffixRe.FindStringSubmatchIndex(stem); m != nil {
		ts, err := time.ParseInLocation(policy.StampLayout, stem[m[2]:m[3]], loc)
		if err != nil {
			return Parts{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidName, base, err)
		}
		p.Stamp, p.HasStamp = ts, true
		stem = stem[:m[0]]
	}
	typ, desc, _ := strings.Cut(stem, "-")
	if typ == "" {
		return Parts{}, fmt.Errorf("%w: %s", apperr.ErrInvalidName, base)
	}
	p.Type, p.Description = typ, desc
	return p, nil
}

func canonical(list []string, s string) (string, bool) {
	for _, t := range list {
		if strings.EqualFold(t, s) {
			return t, true
		}
	}
	return "", false
}
