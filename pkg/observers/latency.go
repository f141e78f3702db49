package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/volcasr/pkg/metrics"
)

// StageLatencyObserver tracks per-request stage timings and logs one
// latency line when the attempt finishes.
type StageLatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	started      time.Time
	ready        time.Time
	firstPartial time.Time
	final        time.Time
	engine       string
}

func NewStageLatencyObserver(log *slog.Logger) *StageLatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &StageLatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *StageLatencyObserver) RecordEvent(ev metrics.Event) {
	reqID := ""
	if ev.Tags != nil {
		reqID = ev.Tags["request_id"]
	}
	if reqID == "" {
		return
	}
	o.mu.Lock()
	t := o.traces[reqID]
	if t == nil {
		t = &trace{}
		o.traces[reqID] = t
	}
	if t.engine == "" && ev.Tags != nil {
		t.engine = ev.Tags["engine"]
	}
	done := false
	switch ev.Name {
	case "asr_connect", "flash_request":
		if t.started.IsZero() {
			t.started = ev.Time
		}
	case "asr_ready":
		if t.ready.IsZero() {
			t.ready = ev.Time
		}
	case "asr_partial":
		if t.firstPartial.IsZero() {
			t.firstPartial = ev.Time
		}
	case "asr_final":
		if t.final.IsZero() {
			t.final = ev.Time
		}
	case "asr_completed", "asr_failed", "flash_completed", "flash_failed":
		done = true
	}
	if done {
		o.logStagesLocked(reqID, t, ev.Time)
		delete(o.traces, reqID)
	}
	o.mu.Unlock()
}

func (o *StageLatencyObserver) logStagesLocked(reqID string, t *trace, doneAt time.Time) {
	o.log.Info("stage latency",
		"request_id", reqID,
		"engine", t.engine,
		"ready_ms", durationMs(t.started, t.ready),
		"first_partial_ms", durationMs(t.ready, t.firstPartial),
		"final_ms", durationMs(t.firstPartial, t.final),
		"total_ms", durationMs(t.started, doneAt),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
