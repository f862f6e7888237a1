// Package dialog holds conversational turns and the per-user transcript store.
package dialog

// Role identifies the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MediaKind classifies an attached media payload.
type MediaKind int

const (
	MediaImage MediaKind = iota + 1
	MediaVideo
)

// String returns the lower-case media kind name.
func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Media is a binary attachment carried by a user turn.
type Media struct {
	Kind     MediaKind
	MIMEType string
	Data     []byte
}

// Turn is one role-tagged utterance in a transcript.
type Turn struct {
	Role    Role
	Content string
	// Media is set only on user turns that carry an attachment.
	Media *Media
}

// User returns a user turn.
func User(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// Assistant returns an assistant turn.
func Assistant(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// System returns a system turn.
func System(content string) Turn { return Turn{Role: RoleSystem, Content: content} }
