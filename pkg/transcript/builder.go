// Package transcript assembles partial and final recognition text for
// one recognition attempt.
package transcript

import (
	"strings"
	"sync"
)

// Builder collects text updates from the server. Interim text replaces
// the running partial; the first final recorded wins. When utterance
// streaming is enabled, definite utterances accumulate in arrival order.
type Builder struct {
	mu         sync.Mutex
	partial    string
	final      string
	hasFinal   bool
	utterances []string
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) RecordPartial(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partial = text
}

// RecordFinal stores the final text. Later finals are ignored so that a
// waiter woken by the first final never races a rewrite.
// Reports whether this call was the one that recorded it.
func (b *Builder) RecordFinal(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasFinal {
		return false
	}
	b.final = text
	b.hasFinal = true
	return true
}

// RecordUtterance routes one utterance: definite segments accumulate,
// interim segments update the partial.
func (b *Builder) RecordUtterance(text string, definite bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if definite {
		b.utterances = append(b.utterances, text)
		return
	}
	b.partial = text
}

func (b *Builder) Partial() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.partial
}

func (b *Builder) Final() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.final, b.hasFinal
}

func (b *Builder) Utterances() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.utterances))
	copy(out, b.utterances)
	return out
}

// Resolve picks the transcript for the attempt: the final when one
// arrived, else joined definite utterances, else the last partial.
// fromPartial marks the last case so callers can flag degraded results.
func (b *Builder) Resolve() (text string, fromPartial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasFinal {
		return b.final, false
	}
	if len(b.utterances) > 0 {
		return strings.Join(b.utterances, ""), false
	}
	if b.partial != "" {
		return b.partial, true
	}
	return "", false
}

// Reset clears all state for a fresh attempt.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partial = ""
	b.final = ""
	b.hasFinal = false
	b.utterances = nil
}
