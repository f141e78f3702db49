package volcasr

import (
	"testing"
	"time"

	"github.com/harunnryd/volcasr/pkg/flash"
	"github.com/harunnryd/volcasr/pkg/metrics"
)

func TestBuildFlashEngineAppliesSettings(t *testing.T) {
	cfg := Config{
		ASR: ASRConfig{AppID: "app-1", AccessKey: "key-1", UID: "caller-7"},
		Engines: EnginesConfig{
			Flash: map[string]any{
				"url":        "https://flash.example.test/api",
				"timeout_ms": 5000,
			},
		},
	}
	eng, err := DefaultRegistry().BuildEngine("flash", cfg, metrics.NoopObserver{})
	if err != nil {
		t.Fatalf("build flash: %v", err)
	}
	fe, ok := eng.(*flash.Engine)
	if !ok {
		t.Fatalf("expected *flash.Engine, got %T", eng)
	}
	if fe.URL != "https://flash.example.test/api" {
		t.Fatalf("url setting not applied: %q", fe.URL)
	}
	if fe.UID != "caller-7" {
		t.Fatalf("uid not applied: %q", fe.UID)
	}
	if fe.Client.Timeout != 5*time.Second {
		t.Fatalf("timeout setting not applied: %v", fe.Client.Timeout)
	}
}

func TestBuildFlashEngineKeepsDefaults(t *testing.T) {
	cfg := Config{ASR: ASRConfig{AppID: "app-1", AccessKey: "key-1"}}
	eng, err := DefaultRegistry().BuildEngine("flash", cfg, metrics.NoopObserver{})
	if err != nil {
		t.Fatalf("build flash: %v", err)
	}
	fe := eng.(*flash.Engine)
	if fe.URL != flash.DefaultURL {
		t.Fatalf("empty settings must keep the default url, got %q", fe.URL)
	}
	if fe.Client.Timeout != 120*time.Second {
		t.Fatalf("empty settings must keep the default timeout, got %v", fe.Client.Timeout)
	}
}

func TestBuildStreamingEngine(t *testing.T) {
	cfg := Config{
		ASR: ASRConfig{AppID: "app-1", AccessKey: "key-1"},
		Engines: EnginesConfig{
			Streaming: map[string]any{
				"chunk_bytes":       4096,
				"result_timeout_ms": 30000,
			},
		},
	}
	eng, err := DefaultRegistry().BuildEngine("streaming", cfg, metrics.NoopObserver{})
	if err != nil {
		t.Fatalf("build streaming: %v", err)
	}
	if eng.Name() != "streaming" {
		t.Fatalf("unexpected engine name %q", eng.Name())
	}
}

func TestRegistryNameNormalization(t *testing.T) {
	cfg := Config{ASR: ASRConfig{AppID: "app-1", AccessKey: "key-1"}}
	if _, err := DefaultRegistry().BuildEngine("  Flash  ", cfg, metrics.NoopObserver{}); err != nil {
		t.Fatalf("lookup should be case and whitespace insensitive: %v", err)
	}
}
