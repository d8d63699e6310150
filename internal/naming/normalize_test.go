package naming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/doclife/internal/policy"
)

func newRenamer(t *testing.T) *Renamer {
	t.Helper()
	c, err := policy.New(policy.DefaultRules(), time.UTC)
	require.NoError(t, err)
	return NewRenamer(c, time.UTC)
}

func TestPropose(t *testing.T) {
	r := newRenamer(t)
	mtime := time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC)

	cases := []struct {
		in, want string
	}{
		{"Status-LearnApp-20251127.md", "Status-LearnApp-251127-0000.md"},
		{"Status-LearnApp-20251127-0141.md", "Status-LearnApp-251127-0141.md"},
		{"Report_Scraping_251017_1430.md", "Report-Scraping-251017-1430.md"},
		{"Analysis-2025-10-17-DB.md", "Analysis-DB-251017-0000.md"},
		{"Session-Log-251710.md", "Session-Log-251017-0000.md"},
		{"Plan-Refactor-V2.md", "Plan-Refactor-240305-0815.md"},
		{"notes.md", "notes-240305-0815.md"},
		{"20251017.md", "Document-251017-0000.md"},
	}
	for _, tc := range cases {
		got, ok := r.Propose(tc.in, mtime)
		assert.True(t, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPropose_Skips(t *testing.T) {
	r := newRenamer(t)
	for _, name := range []string{
		"README.md",
		"Protocol-Review.md",
		"Status-LearnApp-251017-1430.md",
		"diagram.png",
	} {
		_, ok := r.Propose(name, time.Now())
		assert.False(t, ok, name)
	}
}
