package controllers

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleylabs/parley/pkg/chat"
	"github.com/parleylabs/parley/pkg/events"
	"github.com/parleylabs/parley/pkg/identity"
	"github.com/parleylabs/parley/pkg/logger"
)

// Submitter sends one user message and returns the conversation identity the
// backend allocated or confirmed.
type Submitter interface {
	Send(ctx context.Context, message, conversationID string) (string, error)
}

// Resetter drops the active streaming connection. Satisfied by the stream
// Manager.
type Resetter interface {
	Reset()
}

// SubmitResult reports the outcome of one asynchronous submission.
type SubmitResult struct {
	ConversationID string
	Err            error
}

// ChatController owns the turn list and wires the identity store, the
// submission client, and the event stream together. Its methods are called
// from a single dispatch loop; each handler runs to completion before the
// next is dispatched, so the controller holds no locks.
type ChatController struct {
	submitter Submitter
	ids       *identity.Store
	stream    Resetter

	turns   []chat.Turn
	results chan SubmitResult
}

func NewChatController(submitter Submitter, ids *identity.Store, stream Resetter) *ChatController {
	return &ChatController{
		submitter: submitter,
		ids:       ids,
		stream:    stream,
		turns:     make([]chat.Turn, 0),
		results:   make(chan SubmitResult, 4),
	}
}

// SendMessage appends the user turn eagerly and fires the submission in the
// background. The result arrives on SubmitResults; a failure re-enables
// input and never touches the streaming connection.
func (cc *ChatController) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}

	// A user message interrupting an in-flight answer finalizes it; an open
	// turn that stops being the tail could never be closed by later events.
	cc.turns = chat.CloseOpen(cc.turns)
	cc.turns = append(cc.turns, chat.NewUserTurn(content))

	conversationID := cc.ids.Get()
	go func() {
		id, err := cc.submitter.Send(ctx, content, conversationID)
		cc.results <- SubmitResult{ConversationID: id, Err: err}
	}()

	return nil
}

// SubmitResults delivers one result per SendMessage call.
func (cc *ChatController) SubmitResults() <-chan SubmitResult {
	return cc.results
}

// HandleSubmitResult folds a submission outcome into the session. The
// returned error, if any, is the user-facing submission failure.
func (cc *ChatController) HandleSubmitResult(res SubmitResult) error {
	if res.Err != nil {
		return fmt.Errorf("failed to send message: %w", res.Err)
	}
	cc.ids.Assign(res.ConversationID)
	return nil
}

// HandleEvent folds one stream event into the turn list and captures any
// conversation identity it carries. First writer wins against the
// submission response.
func (cc *ChatController) HandleEvent(ev events.StreamEvent) {
	if ev.HasIdentity() {
		cc.ids.Assign(ev.ConversationID)
	}
	cc.turns = chat.Apply(ev, cc.turns)
}

// Turns returns the assembled turn list.
func (cc *ChatController) Turns() []chat.Turn {
	return cc.turns
}

// Streaming reports whether an assistant turn is still accepting content.
func (cc *ChatController) Streaming() bool {
	_, open := chat.OpenTurn(cc.turns)
	return open
}

// ConversationID returns the current identity, empty for a new conversation.
func (cc *ChatController) ConversationID() string {
	return cc.ids.Get()
}

// Reset clears the turn list and the durable identity, then forces the
// stream to drop its connection and redial as a new conversation.
func (cc *ChatController) Reset() error {
	cc.turns = make([]chat.Turn, 0)
	if err := cc.ids.Reset(); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	if cc.stream != nil {
		cc.stream.Reset()
	}
	logger.WithComponent("chat_controller").Info("Conversation reset")
	return nil
}
