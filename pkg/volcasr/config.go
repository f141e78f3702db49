package volcasr

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/volcasr/pkg/configutil"
)

type Config struct {
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	ASR               ASRConfig     `mapstructure:"asr"`
	Engines           EnginesConfig `mapstructure:"engines"`
	Metrics           MetricsConfig `mapstructure:"metrics"`
	RedactCredentials bool          `mapstructure:"redact_credentials"`
}

// ASRConfig holds the credentials and audio description shared by every
// engine. Credentials may be written as ${ENV} references in the file.
type ASRConfig struct {
	AppID          string `mapstructure:"appid"`
	AccessKey      string `mapstructure:"access_key"`
	Cluster        string `mapstructure:"cluster"`
	UID            string `mapstructure:"uid"`
	Language       string `mapstructure:"language"`
	PromptHint     string `mapstructure:"prompt_hint"`
	SampleRate     int    `mapstructure:"sample_rate"`
	ShowUtterances bool   `mapstructure:"show_utterances"`
}

// EnginesConfig selects the fallback order and carries per-engine settings
// maps, decoded by each engine builder through configutil.
type EnginesConfig struct {
	Order     []string       `mapstructure:"order"`
	Flash     map[string]any `mapstructure:"flash"`
	Streaming map[string]any `mapstructure:"streaming"`
}

type MetricsConfig struct {
	JSONLPath     string  `mapstructure:"jsonl_path"`
	TimelineDir   string  `mapstructure:"timeline_dir"`
	UsageDir      string  `mapstructure:"usage_dir"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	AsyncBuffer   int     `mapstructure:"async_buffer"`
	RetentionDays int     `mapstructure:"retention_days"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("asr.appid", "")
	v.SetDefault("asr.access_key", "")
	v.SetDefault("asr.cluster", "")
	v.SetDefault("asr.uid", "")
	v.SetDefault("asr.language", "")
	v.SetDefault("asr.prompt_hint", "")
	v.SetDefault("asr.sample_rate", 16000)
	v.SetDefault("asr.show_utterances", false)
	v.SetDefault("engines.order", []string{"flash", "streaming"})
	v.SetDefault("metrics.jsonl_path", "")
	v.SetDefault("metrics.timeline_dir", "")
	v.SetDefault("metrics.usage_dir", "")
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("metrics.async_buffer", 0)
	v.SetDefault("metrics.retention_days", 0)
	v.SetDefault("redact_credentials", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Configured reports whether both credentials are present. Callers can use
// it to skip recognition entirely instead of failing on Validate.
func (c *Config) Configured() bool {
	return strings.TrimSpace(c.ASR.AppID) != "" && strings.TrimSpace(c.ASR.AccessKey) != ""
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.ASR.AppID, "asr.appid"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.ASR.AccessKey, "asr.access_key"); err != nil {
		return err
	}
	if len(c.Engines.Order) == 0 {
		return fmt.Errorf("engines.order is required")
	}
	if c.Metrics.SampleRate < 0 || c.Metrics.SampleRate > 1 {
		return fmt.Errorf("metrics.sample_rate must be between 0 and 1")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Engines.Flash = expandSettings(cfg.Engines.Flash)
	cfg.Engines.Streaming = expandSettings(cfg.Engines.Streaming)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
