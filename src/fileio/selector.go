package fileio

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/mappichat/regions-atlas/src/project_types"
)

var ErrStaleSelection = errors.New("level selection superseded")

// Ticket identifies one level selection.
type Ticket struct {
	Level project_types.Level
	token uint64
}

// LevelSelector guards geometry fetches against level changes: each
// selection gets a monotonic token and a result that arrives after a newer
// selection is discarded.
type LevelSelector struct {
	source  GeometrySource
	current atomic.Uint64
}

func NewLevelSelector(source GeometrySource) *LevelSelector {
	return &LevelSelector{source: source}
}

// Begin starts a new selection and invalidates every earlier ticket.
func (s *LevelSelector) Begin(level project_types.Level) Ticket {
	return Ticket{Level: level, token: s.current.Add(1)}
}

func (s *LevelSelector) IsCurrent(t Ticket) bool {
	return s.current.Load() == t.token
}

// Fetch loads the ticket's level and returns ErrStaleSelection when the
// ticket was superseded while the fetch was in flight.
func (s *LevelSelector) Fetch(ctx context.Context, t Ticket) (project_types.RegionCollection, error) {
	collection, err := s.source.Load(ctx, t.Level)
	if !s.IsCurrent(t) {
		return project_types.RegionCollection{}, ErrStaleSelection
	}
	return collection, err
}

// Select is Begin followed by Fetch.
func (s *LevelSelector) Select(ctx context.Context, level project_types.Level) (project_types.RegionCollection, error) {
	return s.Fetch(ctx, s.Begin(level))
}
