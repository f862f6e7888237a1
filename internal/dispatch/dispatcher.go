// Package dispatch routes inbound chat messages to the bot's features and
// sends the replies back through the transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cory-johannsen/parley/internal/admin"
	"github.com/cory-johannsen/parley/internal/command"
	"github.com/cory-johannsen/parley/internal/config"
	"github.com/cory-johannsen/parley/internal/dialog"
	"github.com/cory-johannsen/parley/internal/keylock"
	"github.com/cory-johannsen/parley/internal/observability"
	"github.com/cory-johannsen/parley/internal/transport"
)

// DefaultMaxConcurrency bounds in-flight messages when none is configured.
const DefaultMaxConcurrency = 32

// Chatter runs the AI conversation flows.
type Chatter interface {
	Chat(ctx context.Context, text string, history []dialog.Turn) (string, error)
	Describe(ctx context.Context, media dialog.Media, question string) (string, error)
}

// SharedRooms is the shared-mode engine.
type SharedRooms interface {
	Enable(roomID string)
	Disable(roomID string) bool
	Active(roomID string) bool
	Interval() int
	OnMessage(ctx context.Context, roomID, senderName, text string) (string, bool, error)
}

// Games runs game and entertainment commands.
type Games interface {
	Handle(ctx context.Context, user, args string) (string, error)
}

// Knowledge answers knowledge questions.
type Knowledge interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Tools runs utility commands.
type Tools interface {
	Handle(ctx context.Context, args string) string
}

// Admin runs privileged commands.
type Admin interface {
	Handle(ctx context.Context, req admin.Request) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	BotName        string
	Prefix         string
	HelpKeywords   []string
	Features       config.FeaturesConfig
	MaxConcurrency int
}

// Deps are the collaborators a Dispatcher routes to. Commands, Sessions and
// Chat are required; a nil feature handler disables that feature.
type Deps struct {
	Commands  *command.Registry
	Sessions  *dialog.Store
	Chat      Chatter
	Shared    SharedRooms
	Games     Games
	Knowledge Knowledge
	Tools     Tools
	Admin     Admin
}

// Stats counts dispatcher activity since start.
type Stats struct {
	Received  int64
	Gated     int64
	Processed int64
	Failed    int64
	InFlight  int64
}

// Dispatcher classifies inbound messages and routes them. Each message runs
// in its own goroutine; messages from one sender are handled one at a time.
type Dispatcher struct {
	opts   Options
	deps   Deps
	logger *zap.Logger
	help   string

	sem   *semaphore.Weighted
	locks keylock.Locker
	wg    sync.WaitGroup

	received  atomic.Int64
	gated     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

// New creates a Dispatcher.
//
// Precondition: deps.Commands, deps.Sessions, deps.Chat and logger must be non-nil.
func New(opts Options, deps Deps, logger *zap.Logger) *Dispatcher {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if deps.Shared == nil {
		opts.Features.GroupChat = false
	}
	if deps.Games == nil {
		opts.Features.Entertainment = false
	}
	if deps.Knowledge == nil {
		opts.Features.Knowledge = false
	}
	if deps.Tools == nil {
		opts.Features.Tools = false
	}
	if deps.Admin == nil {
		opts.Features.Admin = false
	}
	d := &Dispatcher{
		opts:   opts,
		deps:   deps,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrency)),
	}
	d.help = HelpText(HelpInput{
		BotName:  opts.BotName,
		Prefix:   opts.Prefix,
		Commands: deps.Commands,
		Features: opts.Features,
		MaxTurns: deps.Sessions.MaxTurns(),
	})
	return d
}

// Handle processes msg in the background. It never blocks on the message's
// work and never returns its errors; they are logged and answered with an
// apology. Cancelling ctx does not abort a dispatched message.
func (d *Dispatcher) Handle(ctx context.Context, msg transport.Message, r transport.Replier) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Process(ctx, msg, r)
	}()
}

// Wait blocks until every message passed to Handle has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stop waits for in-flight messages. It lets the Dispatcher drain as a
// lifecycle service.
func (d *Dispatcher) Stop() { d.Wait() }

// Stats returns activity counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:  d.received.Load(),
		Gated:     d.gated.Load(),
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		InFlight:  d.inFlight.Load(),
	}
}

// StatsLines renders Stats for the admin report.
func (d *Dispatcher) StatsLines() []string {
	s := d.Stats()
	return []string{
		fmt.Sprintf("📨 收到消息：%d", s.Received),
		fmt.Sprintf("✅ 已处理：%d", s.Processed),
		fmt.Sprintf("🚫 已过滤：%d", s.Gated),
		fmt.Sprintf("❌ 失败：%d", s.Failed),
		fmt.Sprintf("⏳ 处理中：%d", s.InFlight),
		fmt.Sprintf("👥 活跃会话：%d", d.deps.Sessions.Len()),
	}
}

// Help returns the generated help text.
func (d *Dispatcher) Help() string { return d.help }

// Process handles msg synchronously. The returned error has already been
// logged and answered; it is exposed for callers that wait on the result.
func (d *Dispatcher) Process(ctx context.Context, msg transport.Message, r transport.Replier) (err error) {
	if msg.FromSelf {
		return nil
	}
	d.received.Add(1)
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	logger := observability.MessageLogger(d.logger, msg.ID, msg.SenderID, msg.Room)

	if msg.Kind == transport.KindText && msg.InRoom() && !d.passesGate(msg) {
		d.gated.Add(1)
		logger.Debug("room message gated")
		return nil
	}

	// The sender lock is taken before a slot so a queued sender holds no
	// slot while it waits on its own earlier messages.
	unlock := d.locks.Lock("user:" + msg.SenderID)
	defer unlock()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for a dispatch slot: %w", err)
	}
	defer d.sem.Release(1)
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while handling message: %v", p)
			logger.Error("message handler panicked", zap.Any("panic", p), zap.Stack("stack"))
			d.failed.Add(1)
			_ = d.send(ctx, logger, msg, r, outcome{text: genericApology, addressed: true})
		}
	}()

	var out outcome
	switch msg.Kind {
	case transport.KindText:
		out, err = d.routeText(ctx, logger, msg)
	case transport.KindImage, transport.KindVideo:
		out, err = d.describe(ctx, msg)
	default:
		logger.Info("unsupported message kind dropped", zap.Stringer("kind", msg.Kind))
		return nil
	}

	if err != nil {
		d.failed.Add(1)
		apology := genericApology
		var ae *apologyError
		if errors.As(err, &ae) {
			apology = ae.apology
		}
		logger.Error("message handling failed", zap.Error(err))
		_ = d.send(ctx, logger, msg, r, outcome{text: apology, addressed: true})
		return err
	}

	d.processed.Add(1)
	if out.text == "" {
		return nil
	}
	return d.send(ctx, logger, msg, r, out)
}

// passesGate reports whether a room text message should be processed.
func (d *Dispatcher) passesGate(msg transport.Message) bool {
	if msg.MentionsSelf {
		return true
	}
	if d.opts.BotName != "" && strings.Contains(msg.Text, d.opts.BotName) {
		return true
	}
	if command.HasPrefix(msg.Text, d.opts.Prefix) {
		return true
	}
	for _, kw := range d.opts.HelpKeywords {
		if kw != "" && strings.Contains(msg.Text, kw) {
			return true
		}
	}
	return false
}

// send delivers out. A failed delivery is retried once without addressing;
// the second failure is logged and returned.
func (d *Dispatcher) send(ctx context.Context, logger *zap.Logger, msg transport.Message, r transport.Replier, out outcome) error {
	mention := ""
	if out.addressed && msg.InRoom() {
		mention = msg.SenderName
		if mention == "" {
			mention = msg.SenderID
		}
	}
	err := r.Reply(ctx, msg, out.text, mention)
	if err == nil {
		return nil
	}
	logger.Warn("reply failed, retrying unaddressed", zap.Error(err))
	if err := r.Reply(ctx, msg, out.text, ""); err != nil {
		logger.Error("unaddressed reply failed", zap.Error(err))
		return fmt.Errorf("sending reply: %w", err)
	}
	return nil
}
