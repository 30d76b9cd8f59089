package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/parleylabs/parley/pkg/chat"
	"github.com/parleylabs/parley/pkg/controllers"
	"github.com/parleylabs/parley/pkg/events"
	"github.com/parleylabs/parley/pkg/logger"
	"github.com/parleylabs/parley/pkg/stream"
	"github.com/parleylabs/parley/pkg/warmup"
)

// Runner is the interactive console session. It owns the dispatch loop: user
// input, stream events, notifications, submission results, and warmup
// updates all funnel into one select, and every branch runs to completion
// before the next is handled. That cooperative model is what lets the
// controller and turn list go lock-free.
type Runner struct {
	controller *controllers.ChatController
	manager    *stream.Manager
	detector   *warmup.Detector
	formatter  *MarkdownFormatter
	styles     Styles

	in  io.Reader
	out io.Writer

	// Rendering state for the turn currently streaming
	inReasoning bool
	inContent   bool
}

func NewRunner(controller *controllers.ChatController, manager *stream.Manager, detector *warmup.Detector, in io.Reader, out io.Writer) *Runner {
	styles := DefaultStyles()
	return &Runner{
		controller: controller,
		manager:    manager,
		detector:   detector,
		formatter:  NewMarkdownFormatter(styles),
		styles:     styles,
		in:         in,
		out:        out,
	}
}

// Run starts the session and blocks until the input closes or the context
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log := logger.WithComponent("console")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.manager.Start(runCtx)
	defer r.manager.Stop()
	r.detector.Start(runCtx)

	lines := readLines(runCtx, r.in)

	r.printf("%s\n", r.styles.Hint.Render("Type a message, /new for a fresh conversation, /history for the transcript, /quit to exit."))
	r.prompt()

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.handleInput(runCtx, line); quit {
				return nil
			}

		case ev, ok := <-r.manager.Events():
			if !ok {
				return nil
			}
			r.handleEvent(ev)

		case note := <-r.manager.Notifications():
			r.handleNotification(note)

		case res := <-r.controller.SubmitResults():
			if err := r.controller.HandleSubmitResult(res); err != nil {
				log.Warn("Submission failed", "error", err)
				r.printf("%s\n", r.styles.ErrorNotice.Render(err.Error()))
				r.prompt()
			}

		case status := <-r.detector.Updates():
			r.handleWarmup(status)
		}
	}
}

// handleInput processes one user line; returns true to quit
func (r *Runner) handleInput(ctx context.Context, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		r.prompt()
		return false

	case "/quit", "/exit":
		return true

	case "/new":
		if err := r.controller.Reset(); err != nil {
			r.printf("%s\n", r.styles.ErrorNotice.Render(err.Error()))
		} else {
			r.printf("%s\n", r.styles.Hint.Render("Started a new conversation."))
		}
		r.prompt()
		return false

	case "/history":
		r.printTranscript()
		r.prompt()
		return false

	default:
		if err := r.controller.SendMessage(ctx, line); err != nil {
			r.printf("%s\n", r.styles.ErrorNotice.Render(err.Error()))
			r.prompt()
		}
		return false
	}
}

func (r *Runner) handleEvent(ev events.StreamEvent) {
	r.controller.HandleEvent(ev)

	switch ev.Kind {
	case events.KindThinking:
		if !r.inReasoning {
			r.inReasoning = true
			r.printf("\n%s\n", r.styles.Reasoning.Render("✻ thinking"))
		}
		r.printf("%s", r.styles.Reasoning.Render(ev.Content))

	case events.KindMessage:
		if r.inReasoning {
			r.inReasoning = false
			r.printf("\n")
		}
		if !r.inContent {
			r.inContent = true
			r.printf("\n%s ", r.styles.AssistantPrefix.Render("agent ›"))
		}
		r.printf("%s", ev.Content)

	case events.KindToolUsed:
		r.printf("\n%s\n", r.styles.ToolNotice.Render("⚙ using "+ev.ToolName))

	case events.KindComplete:
		r.inReasoning = false
		r.inContent = false
		r.printf("\n")
		r.prompt()

	case events.KindError:
		// The verbatim message arrives separately as a notification
		r.inReasoning = false
		r.inContent = false

	case events.KindOpen, events.KindUnknown:
	}
}

func (r *Runner) handleNotification(note stream.Notification) {
	switch note.Kind {
	case stream.NoticeStreamError:
		r.printf("\n%s\n", r.styles.ErrorNotice.Render("✗ "+note.Message))
	case stream.NoticeConnectionLost:
		msg := fmt.Sprintf("connection lost, reconnecting (attempt %d): %s", note.Attempt+1, note.Message)
		r.printf("\n%s\n", r.styles.WarnNotice.Render("⚠ "+msg))
	}
	r.prompt()
}

func (r *Runner) handleWarmup(status warmup.Status) {
	switch status {
	case warmup.StatusWarming:
		r.printf("%s\n", r.styles.StatusLine.Render("Backend is starting up, first response may take a minute..."))
	case warmup.StatusReady:
		r.printf("%s\n", r.styles.StatusLine.Render("Backend ready."))
	case warmup.StatusTimedOut:
		r.printf("%s\n", r.styles.WarnNotice.Render("The backend did not come up in time. Check that it is running, then send your message again."))
	case warmup.StatusUnknown, warmup.StatusChecking:
	}
}

// printTranscript renders the assembled conversation with full markdown and
// syntax highlighting, reasoning shown collapsed above each answer.
func (r *Runner) printTranscript() {
	turns := r.controller.Turns()
	if len(turns) == 0 {
		r.printf("%s\n", r.styles.Hint.Render("No messages yet."))
		return
	}

	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			r.printf("\n%s %s\n", r.styles.UserPrefix.Render("you ›"), turn.Content)
		case chat.RoleAssistant:
			if turn.HasReasoning() {
				r.printf("\n%s\n%s\n", r.styles.Reasoning.Render("✻ thinking"), r.formatter.FormatReasoning(turn.Reasoning))
			}
			r.printf("\n%s\n%s\n", r.styles.AssistantPrefix.Render("agent ›"), r.formatter.Format(turn.Content))
		}
	}
}

func (r *Runner) prompt() {
	state := r.manager.State()
	warmupStatus := r.detector.Status()

	parts := []string{state.String()}
	if warmupStatus != warmup.StatusReady && warmupStatus != warmup.StatusUnknown {
		parts = append(parts, warmupStatus.String())
	}
	if id := r.controller.ConversationID(); id != "" {
		parts = append(parts, id)
	}

	r.printf("%s %s ", r.styles.StatusLine.Render("["+strings.Join(parts, " | ")+"]"), r.styles.UserPrefix.Render("›"))
}

func (r *Runner) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

// readLines feeds input lines to the dispatch loop until EOF
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
