package dialog

import "sync"

// DefaultMaxTurns is the transcript cap used when none is configured.
const DefaultMaxTurns = 10

// Store tracks a bounded transcript per user. Transcripts live only in memory.
// All methods are safe for concurrent use.
//
// Invariant: no transcript holds more than maxTurns turns, and the retained
// turns are always the most recent ones in their original order.
type Store struct {
	maxTurns int

	mu    sync.RWMutex
	users map[string][]Turn
}

// NewStore creates an empty Store. A maxTurns below 1 uses DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		users:    make(map[string][]Turn),
	}
}

// Append adds turns to userID's transcript, then drops the oldest turns beyond the cap.
func (s *Store) Append(userID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.users[userID], turns...)
	if over := len(log) - s.maxTurns; over > 0 {
		log = append([]Turn(nil), log[over:]...)
	}
	s.users[userID] = log
}

// Get returns a copy of userID's transcript. An unknown user yields an empty slice.
func (s *Store) Get(userID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.users[userID]
	out := make([]Turn, len(log))
	copy(out, log)
	return out
}

// Clear drops userID's transcript and reports whether one existed.
func (s *Store) Clear(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	delete(s.users, userID)
	return ok
}

// Len returns the number of users with a transcript.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// MaxTurns returns the transcript cap.
func (s *Store) MaxTurns() int { return s.maxTurns }
