package naming

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/policy"
)

var (
	versionTokenRe = regexp.MustCompile(`^[Vv]\d+$`)
	digitsOnlyRe   = regexp.MustCompile(`^\d+$`)
)

// Renamer proposes convention names for legacy files.
type Renamer struct {
	classifier *policy.Classifier
	loc        *time.Location
}

// NewRenamer returns a Renamer that skips files the classifier accepts.
func NewRenamer(c *policy.Classifier, loc *time.Location) *Renamer {
	if loc == nil {
		loc = time.Local
	}
	return &Renamer{classifier: c, loc: loc}
}

// Propose returns the convention name for filename and true when it differs.
// Exempt files and files with a valid stamp are left alone. Dates are taken
// from YYYYMMDD, YYMMDD or YYYY-MM-DD tokens (optionally followed by an HHMM
// or HHMMSS token); otherwise modTime is used. Version tokens (V2) and stray
// time tokens are dropped.
func (r *Renamer) Propose(filename string, modTime time.Time) (string, bool) {
	base := path.Base(filename)
	if !strings.EqualFold(path.Ext(base), ".md") {
		return "", false
	}
	cl := r.classifier.Classify(base)
	if cl.Category != models.CategoryTimestamped || cl.Valid() {
		return "", false
	}

	stem := strings.TrimSuffix(base, path.Ext(base))
	tokens := strings.FieldsFunc(stem, func(c rune) bool { return c == '-' || c == '_' || c == ' ' })

	ts, used, ok := r.findDate(tokens)
	if !ok {
		ts = modTime.In(r.loc)
	}

	var words []string
	for i, tok := range tokens {
		if used[i] || versionTokenRe.MatchString(tok) {
			continue
		}
		if digitsOnlyRe.MatchString(tok) && len(tok) >= 4 {
			continue
		}
		words = append(words, tok)
	}
	desc := strings.Join(words, "-")
	if desc == "" {
		desc = "Document"
	}
	name := desc + "-" + ts.Format(policy.StampLayout) + ".md"
	return name, name != base
}

// findDate scans tokens for the first date and returns it with the indexes it
// consumed.
func (r *Renamer) findDate(tokens []string) (time.Time, map[int]bool, bool) {
	for i, tok := range tokens {
		if !digitsOnlyRe.MatchString(tok) {
			continue
		}
		var (
			y, mo, d int
			used     = map[int]bool{i: true}
			next     = i + 1
		)
		switch {
		case len(tok) == 4 && i+2 < len(tokens) && len(tokens[i+1]) == 2 && len(tokens[i+2]) == 2 &&
			digitsOnlyRe.MatchString(tokens[i+1]) && digitsOnlyRe.MatchString(tokens[i+2]):
			y, mo, d = atoi(tok), atoi(tokens[i+1]), atoi(tokens[i+2])
			used[i+1], used[i+2] = true, true
			next = i + 3
		case len(tok) == 8 && (strings.HasPrefix(tok, "19") || strings.HasPrefix(tok, "20")):
			y, mo, d = atoi(tok[:4]), atoi(tok[4:6]), atoi(tok[6:])
		case len(tok) == 6:
			y, mo, d = 2000+atoi(tok[:2]), atoi(tok[2:4]), atoi(tok[4:])
			// YYDDMM shows up in older files; swap when the month is impossible.
			if mo > 12 && d <= 12 {
				mo, d = d, mo
			}
		default:
			continue
		}
		if !validDate(y, mo, d) {
			continue
		}
		hh, mm := 0, 0
		if next < len(tokens) {
			t := tokens[next]
			if digitsOnlyRe.MatchString(t) && (len(t) == 4 || len(t) == 6) && atoi(t[:2]) < 24 && atoi(t[2:4]) < 60 {
				hh, mm = atoi(t[:2]), atoi(t[2:4])
				used[next] = true
			}
		}
		return time.Date(y, time.Month(mo), d, hh, mm, 0, 0, r.loc), used, true
	}
	return time.Time{}, nil, false
}

func validDate(y, mo, d int) bool {
	if mo < 1 || mo > 12 || d < 1 {
		return false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	return t.Day() == d
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
