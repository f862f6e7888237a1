// Package group implements shared-context mode: an opt-in per-room transcript
// fed by every participant, with an unprompted bot turn every few messages.
package group

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parley/internal/ai"
	"github.com/cory-johannsen/parley/internal/dialog"
)

const directive = "你是一个群聊助手，正在参与群聊讨论。请根据最近的聊天内容自然地参与对话。" +
	"回复要与话题相关、语气轻松友好、保持简短，可以提问、分享观点或给出建议。不要@任何人。"

// Defaults used when the configured values are not positive.
const (
	DefaultInterval   = 3
	DefaultMaxContext = 20
)

// room is the shared state of one room. mu is held across the completion call
// so that messages in one room are applied in order.
type room struct {
	mu      sync.Mutex
	log     []dialog.Turn
	counter int
}

// Engine tracks shared-mode rooms. Rooms never share state.
type Engine struct {
	completer  ai.Completer
	interval   int
	maxContext int
	logger     *zap.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

// NewEngine creates an Engine.
//
// Precondition: completer and logger must be non-nil.
func NewEngine(completer ai.Completer, interval, maxContext int, logger *zap.Logger) *Engine {
	if interval < 1 {
		interval = DefaultInterval
	}
	if maxContext < 1 {
		maxContext = DefaultMaxContext
	}
	return &Engine{
		completer:  completer,
		interval:   interval,
		maxContext: maxContext,
		logger:     logger,
		rooms:      make(map[string]*room),
	}
}

// Interval returns the number of messages between bot turns.
func (e *Engine) Interval() int { return e.interval }

// Enable activates shared mode for roomID with an empty log and zero counter.
// Enabling an active room resets it.
func (e *Engine) Enable(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rooms[roomID] = &room{}
}

// Disable deactivates roomID, dropping its log and counter, and reports
// whether it was active.
func (e *Engine) Disable(roomID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rooms[roomID]
	delete(e.rooms, roomID)
	return ok
}

// Active reports whether shared mode is on for roomID.
func (e *Engine) Active(roomID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.rooms[roomID]
	return ok
}

// ActiveRooms returns the ids of active rooms in sorted order.
func (e *Engine) ActiveRooms() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.rooms))
	for id := range e.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of roomID's shared log and its counter.
func (e *Engine) Snapshot(roomID string) ([]dialog.Turn, int, bool) {
	r := e.room(roomID)
	if r == nil {
		return nil, 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dialog.Turn, len(r.log))
	copy(out, r.log)
	return out, r.counter, true
}

// OnMessage records a participant message in roomID. When the counter reaches
// the interval the bot takes a turn: the reply is appended to the log, the
// counter resets, and spoke is true. A completion failure leaves the counter
// at the interval so the next message retries. Messages for an inactive room
// are ignored, and a turn whose room is disabled or reset while it runs is
// dropped.
func (e *Engine) OnMessage(ctx context.Context, roomID, senderName, text string) (reply string, spoke bool, err error) {
	r := e.room(roomID)
	if r == nil {
		return "", false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !e.current(roomID, r) {
		return "", false, nil
	}

	r.log = appendCapped(r.log, e.maxContext, dialog.User(fmt.Sprintf("%s: %s", senderName, text)))
	r.counter++
	if r.counter < e.interval {
		return "", false, nil
	}

	transcript := make([]dialog.Turn, 0, len(r.log)+1)
	transcript = append(transcript, dialog.System(directive))
	transcript = append(transcript, r.log...)
	out, err := e.completer.Complete(ctx, transcript, ai.Options{SkipCache: true})
	if err != nil {
		return "", false, fmt.Errorf("group turn for room %s: %w", roomID, err)
	}
	if !e.current(roomID, r) {
		e.logger.Debug("group turn dropped, room reset", zap.String("room", roomID))
		return "", false, nil
	}

	r.log = appendCapped(r.log, e.maxContext, dialog.Assistant(out))
	r.counter = 0
	e.logger.Debug("group turn",
		zap.String("room", roomID),
		zap.Int("log", len(r.log)),
	)
	return out, true, nil
}

func (e *Engine) room(roomID string) *room {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rooms[roomID]
}

// current reports whether r is still the live state of roomID.
func (e *Engine) current(roomID string, r *room) bool {
	return e.room(roomID) == r
}

func appendCapped(log []dialog.Turn, limit int, t dialog.Turn) []dialog.Turn {
	log = append(log, t)
	if over := len(log) - limit; over > 0 {
		log = append([]dialog.Turn(nil), log[over:]...)
	}
	return log
}
