// Package session holds the per-attempt state shared between the
// connection driver and the listener goroutine.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/harunnryd/volcasr/pkg/transcript"
)

// gate is a level-triggered signal: fired at most once, observable as a
// closed channel so waiters can select on it.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) fire() {
	g.once.Do(func() { close(g.ch) })
}

func (g *gate) done() <-chan struct{} { return g.ch }

func (g *gate) fired() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Session carries the signals and text state of one recognition
// attempt. The listener is the sole writer of text and the ready/final
// signals; the driver owns the stop signal and the chunk counter.
type Session struct {
	mu sync.Mutex

	connected *gate
	ready     *gate
	final     *gate
	stop      *gate

	open   atomic.Bool
	chunks atomic.Int64

	text *transcript.Builder
}

func New() *Session {
	return &Session{
		connected: newGate(),
		ready:     newGate(),
		final:     newGate(),
		stop:      newGate(),
		text:      transcript.NewBuilder(),
	}
}

func (s *Session) SignalConnected() { s.get(&s.connected).fire() }

func (s *Session) SignalReady() { s.get(&s.ready).fire() }

func (s *Session) RequestStop() { s.get(&s.stop).fire() }

func (s *Session) Connected() <-chan struct{} { return s.get(&s.connected).done() }

func (s *Session) Ready() <-chan struct{} { return s.get(&s.ready).done() }

func (s *Session) Stopping() <-chan struct{} { return s.get(&s.stop).done() }

func (s *Session) FinalReceived() <-chan struct{} { return s.get(&s.final).done() }

func (s *Session) IsReady() bool { return s.get(&s.ready).fired() }

func (s *Session) StopRequested() bool { return s.get(&s.stop).fired() }

func (s *Session) MarkOpen() { s.open.Store(true) }

func (s *Session) MarkClosed() { s.open.Store(false) }

func (s *Session) Open() bool { return s.open.Load() }

// AdvanceChunk counts one sent audio chunk and returns the new total.
// The protocol reserves a sequence number that is never transmitted;
// this counter exists for progress logging and metrics only.
func (s *Session) AdvanceChunk() int64 { return s.chunks.Add(1) }

func (s *Session) Chunks() int64 { return s.chunks.Load() }

func (s *Session) RecordPartial(text string) { s.builder().RecordPartial(text) }

func (s *Session) RecordUtterance(text string, definite bool) {
	s.builder().RecordUtterance(text, definite)
}

// RecordFinal stores the final text and wakes everyone waiting on
// FinalReceived. An empty final still counts as received.
func (s *Session) RecordFinal(text string) {
	s.builder().RecordFinal(text)
	s.get(&s.final).fire()
}

func (s *Session) Partial() string { return s.builder().Partial() }

// Resolve returns the transcript for the attempt, substituting the last
// partial when no final arrived before the deadline.
func (s *Session) Resolve() (text string, fromPartial bool) {
	return s.builder().Resolve()
}

// Reset rearms every signal and clears all text for a fresh attempt.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = newGate()
	s.ready = newGate()
	s.final = newGate()
	s.stop = newGate()
	s.open.Store(false)
	s.chunks.Store(0)
	s.text = transcript.NewBuilder()
}

func (s *Session) get(g **gate) *gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *g
}

func (s *Session) builder() *transcript.Builder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}
