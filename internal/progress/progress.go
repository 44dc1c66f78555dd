// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress defines the event sink the pipeline reports through.
// The sink is write-only: it never drives control flow. Cancellation is
// a context.Context concern, checked by the stages between items.
package progress

import (
	"fmt"
	"io"
	"time"
)

// TaskPosition locates one item within a stage's batch, for
// "analyzing (3/12)" style reporting.
type TaskPosition struct {
	Current int
	Total   int
}

func (p TaskPosition) String() string {
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}

// StreamStats summarizes a completed analysis stream.
type StreamStats struct {
	Chars    int
	Elapsed  time.Duration
	Position TaskPosition
}

// Reporter receives plain status lines and structured stream events.
// Implementations must not block meaningfully and must not panic to
// signal anything back to the pipeline.
type Reporter interface {
	Status(message string)
	StreamStarted()
	StreamEnded(stats StreamStats)
}

// Writer adapts an io.Writer into a Reporter, prefixing each line with
// a timestamp the way the headless runner logs.
type Writer struct {
	W io.Writer
}

func (w Writer) Status(message string) {
	fmt.Fprintf(w.W, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), message)
}

func (w Writer) StreamStarted() {
	w.Status("receiving analysis stream...")
}

func (w Writer) StreamEnded(stats StreamStats) {
	w.Status(fmt.Sprintf("stream finished (%s): %d chars in %.1fs",
		stats.Position, stats.Chars, stats.Elapsed.Seconds()))
}

// Nop discards all events.
type Nop struct{}

func (Nop) Status(string)           {}
func (Nop) StreamStarted()          {}
func (Nop) StreamEnded(StreamStats) {}
