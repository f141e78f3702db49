package volcasr

import (
	"fmt"
	"strings"

	"github.com/harunnryd/volcasr/pkg/asr"
	"github.com/harunnryd/volcasr/pkg/configutil"
	"github.com/harunnryd/volcasr/pkg/flash"
	"github.com/harunnryd/volcasr/pkg/metrics"
	"github.com/harunnryd/volcasr/pkg/streaming"
)

// EngineBuilder constructs an engine from the loaded config and the shared
// observer. Builders own the validation of their settings map.
type EngineBuilder func(cfg Config, obs metrics.Observer) (asr.Engine, error)

type Registry struct {
	engines map[string]EngineBuilder
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]EngineBuilder)}
}

func (r *Registry) RegisterEngine(name string, builder EngineBuilder) {
	r.engines[strings.ToLower(strings.TrimSpace(name))] = builder
}

func (r *Registry) BuildEngine(name string, cfg Config, obs metrics.Observer) (asr.Engine, error) {
	fn := r.engines[strings.ToLower(strings.TrimSpace(name))]
	if fn == nil {
		return nil, fmt.Errorf("engine not registered: %s", name)
	}
	return fn(cfg, obs)
}

// DefaultRegistry returns a registry with the two built-in engines.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterEngine("flash", buildFlashEngine)
	r.RegisterEngine("streaming", buildStreamingEngine)
	return r
}

type flashSettings struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

var flashSchema = configutil.Schema{
	Optional: []string{"url", "timeout_ms"},
}

func buildFlashEngine(cfg Config, obs metrics.Observer) (asr.Engine, error) {
	if err := configutil.ValidateSettings(cfg.Engines.Flash, flashSchema); err != nil {
		return nil, fmt.Errorf("engines.flash: %w", err)
	}
	var s flashSettings
	if err := configutil.DecodeSettings(cfg.Engines.Flash, &s); err != nil {
		return nil, fmt.Errorf("engines.flash: %w", err)
	}
	eng := flash.New(cfg.ASR.AppID, cfg.ASR.AccessKey)
	if s.URL != "" {
		eng.URL = s.URL
	}
	eng.UID = cfg.ASR.UID
	eng.Observer = obs
	eng.Client.Timeout = configutil.DurationMS(s.TimeoutMS, eng.Client.Timeout)
	return eng, nil
}

type streamingSettings struct {
	URL              string `mapstructure:"url"`
	ChunkBytes       int    `mapstructure:"chunk_bytes"`
	ChunkDelayMS     int    `mapstructure:"chunk_delay_ms"`
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms"`
	ReadyTimeoutMS   int    `mapstructure:"ready_timeout_ms"`
	ResultTimeoutMS  int    `mapstructure:"result_timeout_ms"`
}

var streamingSchema = configutil.Schema{
	Optional: []string{
		"url",
		"chunk_bytes",
		"chunk_delay_ms",
		"connect_timeout_ms",
		"ready_timeout_ms",
		"result_timeout_ms",
	},
}

func buildStreamingEngine(cfg Config, obs metrics.Observer) (asr.Engine, error) {
	if err := configutil.ValidateSettings(cfg.Engines.Streaming, streamingSchema); err != nil {
		return nil, fmt.Errorf("engines.streaming: %w", err)
	}
	var s streamingSettings
	if err := configutil.DecodeSettings(cfg.Engines.Streaming, &s); err != nil {
		return nil, fmt.Errorf("engines.streaming: %w", err)
	}
	return streaming.New(streaming.Config{
		AppID:          cfg.ASR.AppID,
		AccessKey:      cfg.ASR.AccessKey,
		Cluster:        cfg.ASR.Cluster,
		URL:            s.URL,
		UID:            cfg.ASR.UID,
		Language:       cfg.ASR.Language,
		PromptHint:     cfg.ASR.PromptHint,
		SampleRate:     cfg.ASR.SampleRate,
		ShowUtterances: cfg.ASR.ShowUtterances,
		ChunkBytes:     s.ChunkBytes,
		ChunkDelay:     configutil.DurationMS(s.ChunkDelayMS, 0),
		ConnectTimeout: configutil.DurationMS(s.ConnectTimeoutMS, 0),
		ReadyTimeout:   configutil.DurationMS(s.ReadyTimeoutMS, 0),
		ResultTimeout:  configutil.DurationMS(s.ResultTimeoutMS, 0),
		Observer:       obs,
	}), nil
}
