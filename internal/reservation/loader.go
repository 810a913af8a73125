package reservation

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// SessionSource is everything needed to bring a session's inventory up:
// the session grid, per-seat price overrides and seats already sold.
type SessionSource struct {
	Session        model.Session
	PriceOverrides map[model.SeatID]int64
	Sold           []model.SeatID
}

// SeatMapLoader resolves session definitions.  It returns ErrSessionNotFound
// (possibly wrapped) for unknown ids.
type SeatMapLoader interface {
	LoadSession(ctx context.Context, sessionID string) (SessionSource, error)
}

// StaticLoader serves sessions from memory.  Used for demo mode and tests.
type StaticLoader struct {
	mu       sync.RWMutex
	sessions map[string]SessionSource
}

// NewStaticLoader returns a loader preloaded with sources.
func NewStaticLoader(sources ...SessionSource) *StaticLoader {
	l := &StaticLoader{sessions: make(map[string]SessionSource, len(sources))}
	for _, s := range sources {
		l.Add(s)
	}
	return l
}

// Add registers or replaces a session.
func (l *StaticLoader) Add(src SessionSource) {
	l.mu.Lock()
	l.sessions[src.Session.ID] = src
	l.mu.Unlock()
}

// LoadSession implements SeatMapLoader.
func (l *StaticLoader) LoadSession(_ context.Context, sessionID string) (SessionSource, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src, ok := l.sessions[sessionID]
	if !ok {
		return SessionSource{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return src, nil
}
