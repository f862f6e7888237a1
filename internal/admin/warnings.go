package admin

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Warning is one warning issued to a room member.
type Warning struct {
	Room     string
	User     string
	Reason   string
	IssuedBy string
	IssuedAt time.Time
}

// WarningStore records warnings per (room, user).
type WarningStore interface {
	// Add records w and returns the user's warning count in the room after it.
	Add(ctx context.Context, w Warning) (int, error)
	// Count returns the user's warning count in the room.
	Count(ctx context.Context, room, user string) (int, error)
	// Pardon clears the user's warnings in the room and returns how many were removed.
	Pardon(ctx context.Context, room, user string) (int, error)
}

type warningKey struct{ room, user string }

// MemoryWarnings is a process-local WarningStore.
type MemoryWarnings struct {
	mu       sync.Mutex
	warnings map[warningKey][]Warning
}

// NewMemoryWarnings creates an empty MemoryWarnings.
func NewMemoryWarnings() *MemoryWarnings {
	return &MemoryWarnings{warnings: make(map[warningKey][]Warning)}
}

// Add implements WarningStore.
func (m *MemoryWarnings) Add(_ context.Context, w Warning) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := warningKey{w.Room, NormalizeName(w.User)}
	m.warnings[k] = append(m.warnings[k], w)
	return len(m.warnings[k]), nil
}

// Count implements WarningStore.
func (m *MemoryWarnings) Count(_ context.Context, room, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.warnings[warningKey{room, NormalizeName(user)}]), nil
}

// Pardon implements WarningStore.
func (m *MemoryWarnings) Pardon(_ context.Context, room, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := warningKey{room, NormalizeName(user)}
	n := len(m.warnings[k])
	delete(m.warnings, k)
	return n, nil
}

// NormalizeName strips a leading @ and surrounding space from a member name.
func NormalizeName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}
