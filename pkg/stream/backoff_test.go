package stream_test

import (
	"time"

	"github.com/parleylabs/parley/pkg/stream"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Backoff", func() {
	base := time.Second
	cap := 16 * time.Second

	It("produces the capped doubling schedule", func() {
		want := []time.Duration{
			0,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			16 * time.Second,
			16 * time.Second,
		}

		for attempt, expected := range want {
			Expect(stream.Backoff(attempt, base, cap)).To(Equal(expected),
				"attempt %d", attempt)
		}
	})

	It("never exceeds the cap for large attempts", func() {
		Expect(stream.Backoff(1000, base, cap)).To(Equal(cap))
	})

	It("treats negative attempts as immediate", func() {
		Expect(stream.Backoff(-1, base, cap)).To(BeZero())
	})

	It("caps even when the base exceeds the cap", func() {
		Expect(stream.Backoff(1, 30*time.Second, cap)).To(Equal(cap))
	})
})
