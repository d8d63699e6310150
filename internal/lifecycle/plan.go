package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/naming"
)

// Move is one planned relocation.
type Move struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Mover performs a relocation inside the vault.
type Mover interface {
	Move(from, to string) error
}

// Planner selects Active instance documents that are due for archiving.
type Planner struct {
	layout    Layout
	retention time.Duration
	loc       *time.Location
}

// NewPlanner returns a Planner. A zero retention disables age-based
// archiving; supersession still applies.
func NewPlanner(layout Layout, retention time.Duration, loc *time.Location) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return &Planner{layout: layout, retention: retention, loc: loc}
}

// Layout returns the planner's directory layout.
func (p *Planner) Layout() Layout { return p.layout }

// Due reports why doc should be archived at now, or "" when it should stay.
// Supersession is not considered; see Plan.
func (p *Planner) Due(doc models.Document, now time.Time) string {
	if doc.Category != models.CategoryTimestamped || doc.Location != models.LocationActive {
		return ""
	}
	if p.retention > 0 && !doc.CreatedAt.IsZero() && now.Sub(doc.CreatedAt) > p.retention {
		return fmt.Sprintf("older than %s", p.retention)
	}
	return ""
}

// Plan returns the moves for docs at now, ordered by source path. Exempt
// documents and documents outside Active are never planned. A document is
// superseded when a newer stamp of the same type and description exists in
// the same directory.
func (p *Planner) Plan(docs []models.Document, now time.Time) []Move {
	type member struct {
		path  string
		stamp time.Time
	}
	series := make(map[string][]member)
	reasons := make(map[string]string)

	for _, d := range docs {
		if d.Category != models.CategoryTimestamped || d.Location != models.LocationActive {
			continue
		}
		if r := p.Due(d, now); r != "" {
			reasons[d.Path] = r
		}
		parts, err := naming.Parse(d.Path, p.loc)
		if err != nil || !parts.HasStamp {
			continue
		}
		key := path.Dir(d.Path) + "|" + parts.Key()
		series[key] = append(series[key], member{path: d.Path, stamp: parts.Stamp})
	}

	for _, ms := range series {
		if len(ms) < 2 {
			continue
		}
		sort.Slice(ms, func(i, j int) bool { return ms[i].stamp.Before(ms[j].stamp) })
		newest := ms[len(ms)-1]
		for _, m := range ms[:len(ms)-1] {
			reasons[m.path] = "superseded by " + path.Base(newest.path)
		}
	}

	moves := make([]Move, 0, len(reasons))
	for from, reason := range reasons {
		to, err := p.layout.ArchivePath(from)
		if err != nil {
			continue
		}
		moves = append(moves, Move{From: from, To: to, Reason: reason})
	}
	sort.Slice(moves, func(i, j int) bool { return moves[i].From < moves[j].From })
	return moves
}

// Execute applies moves in order and returns the ones that succeeded. It
// keeps going after a failure and reports all failures joined.
func Execute(ctx context.Context, m Mover, moves []Move) ([]Move, error) {
	var (
		done []Move
		errs []error
	)
	for _, mv := range moves {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.Move(mv.From, mv.To); err != nil {
			errs = append(errs, fmt.Errorf("lifecycle: archive %s: %w", mv.From, err))
			continue
		}
		done = append(done, mv)
	}
	return done, errors.Join(errs...)
}
