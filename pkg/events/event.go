package events

// Kind identifies a stream event type. The set is closed: consumers switch
// exhaustively over it, and wire names outside the set decode to KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindOpen
	KindThinking
	KindMessage
	KindToolUsed
	KindComplete
	KindError
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindThinking:
		return "thinking"
	case KindMessage:
		return "message"
	case KindToolUsed:
		return "tool_used"
	case KindComplete:
		return "complete"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseKind maps a wire event name to a Kind. Unrecognized names return
// KindUnknown and ok=false; they are ignored downstream, never an error.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "open":
		return KindOpen, true
	case "thinking":
		return KindThinking, true
	case "message":
		return KindMessage, true
	case "tool_used":
		return KindToolUsed, true
	case "complete":
		return KindComplete, true
	case "error":
		return KindError, true
	default:
		return KindUnknown, false
	}
}

// StreamEvent is one decoded event from the backend stream. Events are
// ephemeral: they are folded into turns and not retained.
type StreamEvent struct {
	Kind           Kind
	ConversationID string
	Content        string
	ToolName       string
}

// HasIdentity reports whether the event can establish a conversation
func (e StreamEvent) HasIdentity() bool {
	return e.ConversationID != ""
}
