// Package asr defines the vendor-agnostic speech recognition contract
// shared by the streaming and flash engines.
package asr

import (
	"context"
	"os"

	"github.com/harunnryd/volcasr/pkg/errorsx"
)

// Engine defines the contract for any recognition backend.
type Engine interface {
	// Name returns the engine name for logging/metrics.
	Name() string
	// Recognize transcribes the audio and returns the final text.
	// Each call is a single attempt; retries and fallback live above.
	Recognize(ctx context.Context, audio Audio) (*Result, error)
}

// Audio is one recording to transcribe. Either Path or Data is set;
// Data wins when both are present.
type Audio struct {
	Path string
	Data []byte
}

// File references audio on disk, loaded lazily by Load.
func File(path string) Audio {
	return Audio{Path: path}
}

// PCM wraps raw 16 kHz mono 16-bit samples already in memory.
func PCM(data []byte) Audio {
	return Audio{Data: data}
}

// Load returns the audio bytes, reading from disk when needed. An
// empty in-memory buffer is valid input; a zero-length recording still
// produces a config frame and an end-of-stream frame.
func (a Audio) Load() ([]byte, error) {
	if a.Data != nil {
		return a.Data, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonAudioNotFound)
	}
	return data, nil
}

// Result is the outcome of one successful recognition.
type Result struct {
	// Text is the final transcript, empty when the service produced none.
	Text string
	// Engine names the backend that produced the text.
	Engine string
	// RequestID is the request identifier sent to or issued by the service.
	RequestID string
	// LogID is the service-side trace identifier, when the service returns one.
	LogID string
	// FromPartial marks a transcript substituted from the last partial
	// because no final arrived before the deadline.
	FromPartial bool
}
