// Package transport defines the contract between chat transports and the
// dispatcher: the inbound message and the reply capability.
package transport

import (
	"context"
	"time"

	"github.com/cory-johannsen/parley/internal/dialog"
)

// Kind classifies an inbound message.
type Kind int

const (
	KindText Kind = iota + 1
	KindImage
	KindVideo
	KindOther
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Message is one inbound chat event. It is produced by a transport and
// consumed once by the dispatcher.
type Message struct {
	// ID identifies the message in logs. The dispatcher assigns one when empty.
	ID         string
	SenderID   string
	SenderName string
	// Room is empty for private messages.
	Room string
	Kind Kind
	Text string
	// Media is set for image and video messages.
	Media        *dialog.Media
	MentionsSelf bool
	// FromSelf marks messages the bot itself authored.
	FromSelf  bool
	Timestamp time.Time
}

// InRoom reports whether m was sent to a group room.
func (m Message) InRoom() bool { return m.Room != "" }

// Replier sends replies into the conversation a message came from.
type Replier interface {
	// Reply sends text to msg's conversation. When mention is non-empty and
	// msg is in a room, the named member is addressed.
	Reply(ctx context.Context, msg Message, text, mention string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, msg Message, text, mention string) error

// Reply implements Replier.
func (f ReplierFunc) Reply(ctx context.Context, msg Message, text, mention string) error {
	return f(ctx, msg, text, mention)
}
