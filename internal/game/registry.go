// Package game implements the per-user game sessions (quiz, riddle and word
// chain) and the one-shot creative commands.
package game

import (
	"sort"
	"sync"
	"time"
)

// Kind identifies a game type. Each user has at most one session per Kind.
type Kind string

const (
	KindQuiz   Kind = "quiz"
	KindRiddle Kind = "riddle"
	KindChain  Kind = "chain"
)

// QuizState is an in-progress quiz. A quiz with no state is NotStarted; a
// finished quiz is deleted.
type QuizState struct {
	Question Question
	// Asked is the 1-based number of the current question.
	Asked     int
	Score     int
	StartedAt time.Time
}

// RiddleState is an active riddle.
type RiddleState struct {
	Riddle    Riddle
	StartedAt time.Time
}

// ChainState is an active word chain.
type ChainState struct {
	Current   string
	History   []string
	Score     int
	StartedAt time.Time
}

type sessionKey struct {
	user string
	kind Kind
}

// Registry holds game sessions keyed by (user, kind). Values are stored and
// returned by copy. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[sessionKey]any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[sessionKey]any)}
}

// Quiz returns user's quiz.
func (r *Registry) Quiz(user string) (QuizState, bool) {
	return get[QuizState](r, user, KindQuiz)
}

// Riddle returns user's riddle.
func (r *Registry) Riddle(user string) (RiddleState, bool) {
	return get[RiddleState](r, user, KindRiddle)
}

// Chain returns user's word chain.
func (r *Registry) Chain(user string) (ChainState, bool) {
	s, ok := get[ChainState](r, user, KindChain)
	if ok {
		s.History = append([]string(nil), s.History...)
	}
	return s, ok
}

// PutQuiz stores user's quiz.
func (r *Registry) PutQuiz(user string, s QuizState) { r.put(user, KindQuiz, s) }

// PutRiddle stores user's riddle.
func (r *Registry) PutRiddle(user string, s RiddleState) { r.put(user, KindRiddle, s) }

// PutChain stores user's word chain.
func (r *Registry) PutChain(user string, s ChainState) {
	s.History = append([]string(nil), s.History...)
	r.put(user, KindChain, s)
}

// Delete removes user's session of kind and reports whether it existed.
func (r *Registry) Delete(user string, kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := sessionKey{user, kind}
	_, ok := r.sessions[k]
	delete(r.sessions, k)
	return ok
}

// Active returns the kinds user currently has sessions for, sorted.
func (r *Registry) Active(user string) []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var kinds []Kind
	for k := range r.sessions {
		if k.user == user {
			kinds = append(kinds, k.kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Len returns the number of sessions across all users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) put(user string, kind Kind, s any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey{user, kind}] = s
}

func get[S any](r *Registry, user string, kind Kind) (S, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.sessions[sessionKey{user, kind}]
	if !ok {
		var zero S
		return zero, false
	}
	return v.(S), true
}
