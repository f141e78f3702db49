package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/volcasr/pkg/metrics"
)

// pcmBytesPerSecond is 16 kHz mono 16-bit audio.
const pcmBytesPerSecond = 32000

type UsageSummary struct {
	RequestID     string  `json:"request_id"`
	Engine        string  `json:"engine,omitempty"`
	AudioBytes    int64   `json:"audio_bytes"`
	AudioSeconds  float64 `json:"audio_seconds"`
	Chunks        int     `json:"chunks"`
	TextLength    int     `json:"text_length"`
	RecordedAtUTC string  `json:"recorded_at_utc"`
}

// UsageObserver accumulates per-request audio volume and writes one
// summary JSON per request on Close. Audio seconds are derived from the
// byte count at the fixed PCM rate the service accepts.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.Event) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	reqID := ""
	engine := ""
	if ev.Tags != nil {
		reqID = ev.Tags["request_id"]
		engine = ev.Tags["engine"]
	}
	if reqID == "" {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	stat := o.stats[reqID]
	if stat == nil {
		stat = &UsageSummary{RequestID: reqID, Engine: engine}
		o.stats[reqID] = stat
	}
	switch ev.Name {
	case "asr_chunk_sent":
		stat.AudioBytes += int64(ev.Value)
		stat.Chunks++
	case "flash_request":
		stat.AudioBytes += int64(ev.Value)
	case "asr_completed", "flash_completed":
		stat.TextLength = int(ev.Value)
	}
}

func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	var errOut error
	for id, stat := range o.stats {
		stat.AudioSeconds = float64(stat.AudioBytes) / pcmBytesPerSecond
		stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
		b, err := json.MarshalIndent(stat, "", "  ")
		if err != nil {
			errOut = errors.Join(errOut, err)
			continue
		}
		path := filepath.Join(o.dir, sanitizeID(id)+".usage.json")
		if err := os.WriteFile(path, b, 0o644); err != nil {
			errOut = errors.Join(errOut, err)
		}
	}
	return errOut
}

var _ metrics.Observer = (*UsageObserver)(nil)
