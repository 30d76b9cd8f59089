package chat

import (
	"github.com/parleylabs/parley/pkg/events"
)

// Apply folds one stream event into the turn list and returns a new list;
// the input slice is never mutated. At most one assistant turn is open at
// any point, and it is always the tail, so every rule reduces to "is the
// last turn an open assistant turn".
func Apply(ev events.StreamEvent, turns []Turn) []Turn {
	switch ev.Kind {
	case events.KindThinking:
		return appendReasoning(turns, ev.Content)

	case events.KindMessage:
		return appendContent(turns, ev.Content)

	case events.KindComplete:
		// Idempotent: a duplicate complete leaves the list unchanged
		return CloseOpen(turns)

	case events.KindError:
		// The error text is surfaced as a notification elsewhere; here it
		// only terminates the streaming flag of any open turn.
		return CloseOpen(turns)

	case events.KindOpen, events.KindToolUsed, events.KindUnknown:
		// Connection and tool progress events never touch the turn list
		return turns

	default:
		return turns
	}
}

func appendReasoning(turns []Turn, text string) []Turn {
	out, turn := openTail(turns)
	if turn.Reasoning != "" {
		turn.Reasoning += "\n"
	}
	turn.Reasoning += text
	out[len(out)-1] = turn
	return out
}

func appendContent(turns []Turn, text string) []Turn {
	out, turn := openTail(turns)
	turn.Content += text
	out[len(out)-1] = turn
	return out
}

// CloseOpen marks the open assistant turn, if any, as finished and returns a
// new list. Callers appending a non-assistant turn use it first so the open
// turn is never buried mid-stream; once a turn stops being the tail no later
// event could close it.
func CloseOpen(turns []Turn) []Turn {
	last, ok := LastTurn(turns)
	if !ok || !last.IsOpen() {
		return turns
	}
	out := copyTurns(turns, 0)
	last.Streaming = false
	out[len(out)-1] = last
	return out
}

// openTail returns a copy of the turn list whose tail is an open assistant
// turn, creating one when none exists, plus that tail value.
func openTail(turns []Turn) ([]Turn, Turn) {
	if last, ok := LastTurn(turns); ok && last.IsOpen() {
		out := copyTurns(turns, 0)
		return out, last
	}
	out := copyTurns(turns, 1)
	turn := newAssistantTurn()
	out = append(out, turn)
	return out, turn
}

func copyTurns(turns []Turn, extra int) []Turn {
	out := make([]Turn, len(turns), len(turns)+extra)
	copy(out, turns)
	return out
}
