package events_test

import (
	"io"
	"strings"

	"github.com/parleylabs/parley/pkg/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func decodeAll(stream string) []events.StreamEvent {
	dec := events.NewDecoder(strings.NewReader(stream))
	var out []events.StreamEvent
	for {
		ev, err := dec.Next()
		if err != nil {
			Expect(err).To(Equal(io.EOF))
			return out
		}
		out = append(out, ev)
	}
}

var _ = Describe("Decoder", func() {
	It("decodes a named event with a JSON payload", func() {
		stream := "event: message\n" +
			"data: {\"conversation_id\":\"conv-1\",\"content\":\"hello\"}\n" +
			"\n"

		evs := decodeAll(stream)
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindMessage))
		Expect(evs[0].ConversationID).To(Equal("conv-1"))
		Expect(evs[0].Content).To(Equal("hello"))
	})

	It("defaults absent optional fields to empty", func() {
		evs := decodeAll("event: open\ndata: {}\n\n")
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindOpen))
		Expect(evs[0].ConversationID).To(BeEmpty())
		Expect(evs[0].Content).To(BeEmpty())
		Expect(evs[0].ToolName).To(BeEmpty())
	})

	It("decodes a tool event with a tool name", func() {
		evs := decodeAll("event: tool_used\ndata: {\"tool\":\"web_search\"}\n\n")
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindToolUsed))
		Expect(evs[0].ToolName).To(Equal("web_search"))
	})

	It("drops malformed payloads and keeps decoding", func() {
		stream := "event: message\ndata: {not json\n\n" +
			"event: message\ndata: {\"content\":\"still here\"}\n\n"

		evs := decodeAll(stream)
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Content).To(Equal("still here"))
	})

	It("maps unrecognized event names to KindUnknown instead of failing", func() {
		evs := decodeAll("event: heartbeat\ndata: {}\n\n")
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindUnknown))
	})

	It("ignores comment lines", func() {
		stream := ": keepalive\n\nevent: complete\ndata: {}\n\n"
		evs := decodeAll(stream)
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindComplete))
	})

	It("joins multiple data lines with newlines", func() {
		stream := "event: error\n" +
			"data: {\"content\":\n" +
			"data: \"boom\"}\n" +
			"\n"
		evs := decodeAll(stream)
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindError))
		Expect(evs[0].Content).To(Equal("boom"))
	})

	It("dispatches a trailing event that has no blank-line terminator", func() {
		evs := decodeAll("event: complete\ndata: {}\n")
		Expect(evs).To(HaveLen(1))
		Expect(evs[0].Kind).To(Equal(events.KindComplete))
	})

	It("returns io.EOF on an empty stream", func() {
		dec := events.NewDecoder(strings.NewReader(""))
		_, err := dec.Next()
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = Describe("ParseKind", func() {
	It("round-trips every recognized kind", func() {
		for _, k := range []events.Kind{
			events.KindOpen, events.KindThinking, events.KindMessage,
			events.KindToolUsed, events.KindComplete, events.KindError,
		} {
			parsed, ok := events.ParseKind(k.String())
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(k))
		}
	})

	It("returns KindUnknown for anything else", func() {
		parsed, ok := events.ParseKind("telemetry")
		Expect(ok).To(BeFalse())
		Expect(parsed).To(Equal(events.KindUnknown))
	})
})
