package events

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/parleylabs/parley/pkg/logger"
)

// payload is the JSON body carried on a data line
type payload struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Tool           string `json:"tool,omitempty"`
}

// Decoder turns a text/event-stream body into an ordered, non-restartable
// sequence of StreamEvents. Each wire event is an "event:" name line followed
// by one or more "data:" lines and a blank-line terminator. Malformed
// payloads are dropped with a warning; decoding continues on the next event.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder wraps a stream body. The decoder does not close the reader.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next decoded event. It returns io.EOF when the underlying
// stream ends cleanly and the scanner's error otherwise.
func (d *Decoder) Next() (StreamEvent, error) {
	log := logger.WithComponent("event_decoder")

	var name string
	var data strings.Builder
	seenField := false

	flush := func() (StreamEvent, bool) {
		if !seenField {
			return StreamEvent{}, false
		}
		ev, ok := decodeEvent(name, data.String())
		if !ok {
			log.Warn("Dropping malformed stream event", "event", name)
		}
		name = ""
		data.Reset()
		seenField = false
		return ev, ok
	}

	for d.scanner.Scan() {
		line := d.scanner.Text()

		// Blank line dispatches the accumulated event
		if strings.TrimSpace(line) == "" {
			if ev, ok := flush(); ok {
				return ev, nil
			}
			continue
		}

		// Comment lines keep the connection alive and carry nothing
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
			seenField = true
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			seenField = true
		default:
			// Unknown fields (id, retry, ...) are ignored
		}
	}

	// Stream ended; dispatch whatever is buffered before reporting EOF
	if ev, ok := flush(); ok {
		return ev, nil
	}

	if err := d.scanner.Err(); err != nil {
		return StreamEvent{}, err
	}
	return StreamEvent{}, io.EOF
}

// decodeEvent maps a wire event name plus its payload into a StreamEvent.
// ok is false only when the payload is unusable.
func decodeEvent(name, data string) (StreamEvent, bool) {
	kind, _ := ParseKind(name)

	ev := StreamEvent{Kind: kind}
	if data == "" {
		return ev, true
	}

	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return StreamEvent{}, false
	}

	ev.ConversationID = p.ConversationID
	ev.Content = p.Content
	ev.ToolName = p.Tool
	return ev, true
}

func splitField(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
