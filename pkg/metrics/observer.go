package metrics

import "time"

// Event is one observation emitted by an engine or the recognizer: a name
// ("asr_chunk_sent", "flash_completed", ...), tags identifying the attempt
// (request_id, engine) and free-form fields (byte counts, durations).
type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}
