package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one rendered conversational unit. User turns are created eagerly
// at submission time; assistant turns are assembled from stream events and
// stay Streaming until a complete or error event closes them.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"`
	Streaming bool      `json:"streaming"`
	Timestamp time.Time `json:"timestamp"`
}

func NewUserTurn(content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now(),
	}
}

func newAssistantTurn() Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Streaming: true,
		Timestamp: time.Now(),
	}
}

func (t Turn) IsUser() bool {
	return t.Role == RoleUser
}

func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}

func (t Turn) IsOpen() bool {
	return t.IsAssistant() && t.Streaming
}

func (t Turn) HasReasoning() bool {
	return t.Reasoning != ""
}

func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Content) == "" && t.Reasoning == ""
}

// LastTurn returns the tail of the turn list
func LastTurn(turns []Turn) (Turn, bool) {
	if len(turns) == 0 {
		return Turn{}, false
	}
	return turns[len(turns)-1], true
}

// OpenTurn returns the streaming assistant turn, if one exists. The
// assembler guarantees it can only ever be the tail.
func OpenTurn(turns []Turn) (Turn, bool) {
	last, ok := LastTurn(turns)
	if !ok || !last.IsOpen() {
		return Turn{}, false
	}
	return last, true
}

func TurnCount(turns []Turn) int {
	return len(turns)
}
