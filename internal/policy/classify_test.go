package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/doclife/internal/models"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(DefaultRules(), time.UTC)
	require.NoError(t, err)
	return c
}

func TestClassify_Exempt(t *testing.T) {
	c := newClassifier(t)
	cases := map[string]string{
		"README.md":                      "name:README",
		"readme.md":                      "name:README",
		"CLAUDE.md":                      "name:CLAUDE",
		"TODO-Master.md":                 "master:TODO-Master",
		"Protocol-Coding-Standards.md":   "prefix:Protocol-",
		"Reference-Database-Schema.md":   "prefix:Reference-",
		"Standards-Documentation.md":     "prefix:Standards-",
		"Context-LearnApp.md":            "prefix:Context-",
		"LD-Architecture.md":             "prefix:LD-",
		"Status-Report-Template.md":      "glob:*-Template.md",
		"docs/nested/Protocol-Review.md": "prefix:Protocol-",
	}
	for name, rule := range cases {
		cl := c.Classify(name)
		assert.Equal(t, models.CategoryExempt, cl.Category, name)
		assert.Equal(t, rule, cl.Rule, name)
		assert.NoError(t, cl.Err, name)
		assert.False(t, cl.Conditional, name)
	}
}

func TestClassify_TimestampedValid(t *testing.T) {
	c := newClassifier(t)
	cl := c.Classify("Status-LearnApp-Fixes-251017-1430.md")
	require.True(t, cl.Valid())
	assert.Equal(t, models.CategoryTimestamped, cl.Category)
	assert.Equal(t, time.Date(2025, 10, 17, 14, 30, 0, 0, time.UTC), cl.CreatedAt)
}

func TestClassify_TimestampMissing(t *testing.T) {
	c := newClassifier(t)
	for _, name := range []string{"Status-LearnApp.md", "Plan-Phase-2.md", "notes.md"} {
		cl := c.Classify(name)
		assert.Equal(t, models.CategoryTimestamped, cl.Category, name)
		assert.True(t, errors.Is(cl.Err, ErrTimestampMissing), "%s: %v", name, cl.Err)
	}
}

func TestClassify_TimestampMalformed(t *testing.T) {
	c := newClassifier(t)
	for _, name := range []string{
		"Status-LearnApp-20251017-1430.md", // eight-digit date
		"Status-LearnApp-251017.md",        // no time
		"Status-LearnApp-251317-1430.md",   // month 13
		"Status-LearnApp-250230-1430.md",   // 30 February
		"Status-LearnApp-251017-2460.md",   // hour 24
		"251017-1430-Status.md",            // not a suffix
		"Status-LearnApp-251017-1430-V2.md",
		"Status-25-10-17.md", // dashed two-digit date
	} {
		cl := c.Classify(name)
		assert.Equal(t, models.CategoryTimestamped, cl.Category, name)
		assert.True(t, errors.Is(cl.Err, ErrTimestampMalformed), "%s: %v", name, cl.Err)
	}
}

func TestClassifyInDir_DeveloperManual(t *testing.T) {
	c := newClassifier(t)

	cl := c.Classify("LearnApp-Developer-Manual.md")
	assert.Equal(t, models.CategoryExempt, cl.Category)
	assert.True(t, cl.Conditional)

	sole := c.ClassifyInDir("LearnApp-Developer-Manual.md", []string{"README.md", "LearnApp-Developer-Manual.md"})
	assert.Equal(t, models.CategoryExempt, sole.Category)
	assert.Equal(t, "conditional:sole", sole.Rule)

	shared := c.ClassifyInDir("LearnApp-Developer-Manual.md", []string{"Scraping-Developer-Manual.md"})
	assert.Equal(t, models.CategoryTimestamped, shared.Category)
	assert.True(t, errors.Is(shared.Err, ErrTimestampMissing))

	stamped := c.ClassifyInDir("LearnApp-Developer-Manual-251017-0900.md", []string{"Scraping-Developer-Manual.md"})
	assert.True(t, stamped.Valid())
}

func TestNew_RejectsBadGlob(t *testing.T) {
	rules := DefaultRules()
	rules.ExemptGlobs = append(rules.ExemptGlobs, "[unclosed")
	_, err := New(rules, nil)
	require.Error(t, err)
}

func TestParseStamp_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c, err := New(DefaultRules(), loc)
	require.NoError(t, err)
	ts, err := c.ParseStamp("Report-X-260101-0000.md")
	require.NoError(t, err)
	assert.Equal(t, loc, ts.Location())
}
