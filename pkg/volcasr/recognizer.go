// Package volcasr ties the recognition engines together: config loading,
// engine registry and the ordered fallback chain.
package volcasr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/volcasr/pkg/asr"
	"github.com/harunnryd/volcasr/pkg/logging"
	"github.com/harunnryd/volcasr/pkg/metrics"
	"github.com/harunnryd/volcasr/pkg/resilience"
)

type RecognizerOptions struct {
	Config   Config
	Observer metrics.Observer
	// Registry defaults to DefaultRegistry. Tests and embedders can
	// register their own engines.
	Registry *Registry
}

// Recognizer runs audio through the configured engines in order and returns
// the first successful transcript.
type Recognizer struct {
	engines []asr.Engine
	obs     metrics.Observer
	log     *slog.Logger
}

func NewRecognizer(opts RecognizerOptions) (*Recognizer, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	order := opts.Config.Engines.Order
	if len(order) == 0 {
		order = []string{"flash", "streaming"}
	}
	engines := make([]asr.Engine, 0, len(order))
	for _, name := range order {
		eng, err := reg.BuildEngine(name, opts.Config, obs)
		if err != nil {
			return nil, fmt.Errorf("build engine %s: %w", name, err)
		}
		engines = append(engines, eng)
	}
	return &Recognizer{
		engines: engines,
		obs:     obs,
		log:     logging.NewComponentLogger(slog.Default(), "recognizer"),
	}, nil
}

// Recognize transcribes one audio source. The source is validated before any
// engine runs, so a missing file never costs a network round trip. Engines
// run in configured order; the first success wins and later engines are
// never tried. The returned text is trimmed of surrounding whitespace.
func (r *Recognizer) Recognize(ctx context.Context, audio asr.Audio) (string, error) {
	data, err := audio.Load()
	if err != nil {
		return "", err
	}
	// Engines reuse the loaded bytes instead of re-reading the file.
	audio.Data = data

	started := time.Now()
	names := make([]string, len(r.engines))
	for i, eng := range r.engines {
		names[i] = eng.Name()
	}
	r.log.Info("recognition start",
		slog.Int("audio_bytes", len(data)),
		slog.String("engines", strings.Join(names, ",")),
	)
	r.emit("recognize_start", float64(len(data)), nil)

	var result *asr.Result
	attempts := make([]resilience.Attempt, 0, len(r.engines))
	for _, eng := range r.engines {
		eng := eng
		attempts = append(attempts, resilience.Attempt{
			Name: eng.Name(),
			Run: func(ctx context.Context) error {
				res, err := eng.Recognize(ctx, audio)
				if err != nil {
					return err
				}
				result = res
				return nil
			},
		})
	}
	chain := resilience.Fallback{
		Attempts: attempts,
		OnFallback: func(failed resilience.Attempt, err error) {
			r.log.Warn("engine failed, falling back",
				slog.String("engine", failed.Name),
				slog.String("error", err.Error()),
			)
			r.emit("recognize_fallback", durationMs(started), map[string]string{"engine": failed.Name})
		},
	}
	if err := chain.Do(ctx); err != nil {
		r.log.Error("recognition failed", slog.String("error", err.Error()))
		return "", err
	}

	text := strings.TrimSpace(result.Text)
	r.log.Info("recognition complete",
		slog.String("engine", result.Engine),
		slog.String("request_id", result.RequestID),
		slog.Int("text_length", len(text)),
		slog.Bool("from_partial", result.FromPartial),
		slog.Float64("duration_ms", durationMs(started)),
	)
	r.emit("recognize_done", float64(len(text)), map[string]string{
		"engine":     result.Engine,
		"request_id": result.RequestID,
	})
	return text, nil
}

func (r *Recognizer) emit(name string, value float64, tags map[string]string) {
	r.obs.RecordEvent(metrics.Event{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags:  tags,
	})
}

func durationMs(since time.Time) float64 {
	return float64(time.Since(since).Milliseconds())
}
