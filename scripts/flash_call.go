package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harunnryd/volcasr/pkg/asr"
	"github.com/harunnryd/volcasr/pkg/configutil"
	"github.com/harunnryd/volcasr/pkg/flash"
)

type flashConfig struct {
	ASR struct {
		AppID     string `mapstructure:"appid"`
		AccessKey string `mapstructure:"access_key"`
		UID       string `mapstructure:"uid"`
	} `mapstructure:"asr"`
	Engines struct {
		Flash map[string]any `mapstructure:"flash"`
	} `mapstructure:"engines"`
}

type flashSettings struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

func main() {
	configPath := flag.String("config", "examples/transcribe/config.local.yaml", "")
	audioPath := flag.String("audio", "", "")
	flag.Parse()
	if *audioPath == "" {
		fmt.Println("usage: flash_call -audio=path/to/audio.pcm [-config=...]")
		os.Exit(1)
	}
	_ = godotenv.Load()
	cfg, err := loadFlashConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var settings flashSettings
	if err := configutil.DecodeSettings(cfg.Engines.Flash, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}
	appID := os.ExpandEnv(cfg.ASR.AppID)
	accessKey := os.ExpandEnv(cfg.ASR.AccessKey)
	if appID == "" || accessKey == "" {
		fmt.Println("asr.appid and asr.access_key are required")
		os.Exit(1)
	}
	eng := flash.New(appID, accessKey)
	eng.UID = os.ExpandEnv(cfg.ASR.UID)
	if settings.URL != "" {
		eng.URL = os.ExpandEnv(settings.URL)
	}
	eng.Client.Timeout = configutil.DurationMS(settings.TimeoutMS, eng.Client.Timeout)

	res, err := eng.Recognize(context.Background(), asr.File(*audioPath))
	if err != nil {
		fmt.Println("flash error:", err)
		os.Exit(1)
	}
	fmt.Println("request_id:", res.RequestID)
	if res.LogID != "" {
		fmt.Println("logid:", res.LogID)
	}
	fmt.Println(res.Text)
}

func loadFlashConfig(path string) (flashConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return flashConfig{}, err
	}
	var cfg flashConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return flashConfig{}, err
	}
	return cfg, nil
}
