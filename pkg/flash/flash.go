// Package flash implements one-shot recognition through the flash HTTP
// endpoint: the whole recording goes up base64-encoded in a single POST
// and the transcript comes back in the response body.
package flash

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/harunnryd/volcasr/pkg/asr"
	"github.com/harunnryd/volcasr/pkg/errorsx"
	"github.com/harunnryd/volcasr/pkg/logging"
	"github.com/harunnryd/volcasr/pkg/metrics"
)

// DefaultURL is the flash recognition endpoint.
const DefaultURL = "https://openspeech.bytedance.com/api/v3/auc/bigmodel/recognize/flash"

const (
	resourceID = "volc.bigasr.auc_turbo"
	modelName  = "bigmodel"

	// successStatus is the only signal of success. The HTTP status line
	// is not part of the contract and is never inspected.
	successStatus = "20000000"
)

type Engine struct {
	AppID     string
	AccessKey string
	URL       string
	// UID identifies the caller in the request body; defaults to AppID.
	UID      string
	Client   *http.Client
	Observer metrics.Observer

	logger *slog.Logger
}

func New(appID, accessKey string) *Engine {
	return &Engine{
		AppID:     appID,
		AccessKey: accessKey,
		URL:       DefaultURL,
		Client:    &http.Client{Timeout: 120 * time.Second},
		logger:    logging.NewComponentLogger(slog.Default(), "flash_asr"),
	}
}

func (e *Engine) Name() string { return "flash" }

type requestBody struct {
	User    userSection    `json:"user"`
	Audio   audioSection   `json:"audio"`
	Request requestSection `json:"request"`
}

type userSection struct {
	UID string `json:"uid"`
}

type audioSection struct {
	Data string `json:"data"`
}

type requestSection struct {
	ModelName string `json:"model_name"`
}

type responseBody struct {
	Result struct {
		Text string `json:"text"`
	} `json:"result"`
}

// Recognize uploads the audio and returns the transcript. Success is
// decided solely by the X-Api-Status-Code response header.
func (e *Engine) Recognize(ctx context.Context, audio asr.Audio) (*asr.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := audio.Load()
	if err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	tags := map[string]string{"request_id": reqID, "engine": e.Name()}
	e.emit("flash_request", float64(len(data)), tags)

	uid := e.UID
	if uid == "" {
		uid = e.AppID
	}
	body, err := sonic.Marshal(requestBody{
		User:    userSection{UID: uid},
		Audio:   audioSection{Data: base64.StdEncoding.EncodeToString(data)},
		Request: requestSection{ModelName: modelName},
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonFlashRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(), bytes.NewReader(body))
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonFlashRequest)
	}
	e.applyHeaders(req, reqID)

	e.logger.Info("sending flash request",
		slog.String("request_id", reqID),
		slog.Int("audio_bytes", len(data)))

	resp, err := e.client().Do(req)
	if err != nil {
		e.emit("flash_failed", 0, tags)
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	defer resp.Body.Close()

	status := resp.Header.Get("X-Api-Status-Code")
	message := resp.Header.Get("X-Api-Message")
	logID := resp.Header.Get("X-Tt-Logid")
	e.logger.Info("flash response",
		slog.String("request_id", reqID),
		slog.String("status_code", status),
		slog.String("message", message),
		slog.String("log_id", logID))

	if status != successStatus {
		e.emit("flash_failed", 0, tags)
		return nil, errorsx.Errorf(errorsx.ReasonFlashStatus,
			"service status %s: %s (logid %s)", status, message, logID)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.emit("flash_failed", 0, tags)
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	var payload responseBody
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		e.emit("flash_failed", 0, tags)
		return nil, errorsx.Wrap(err, errorsx.ReasonFlashRequest)
	}

	text := payload.Result.Text
	e.emit("flash_completed", float64(len(text)), tags)
	e.logger.Info("recognition completed",
		slog.String("request_id", reqID),
		slog.Int("length", len(text)))

	return &asr.Result{
		Text:      text,
		Engine:    e.Name(),
		RequestID: reqID,
		LogID:     logID,
	}, nil
}

func (e *Engine) applyHeaders(req *http.Request, reqID string) {
	req.Header.Set("X-Api-App-Key", e.AppID)
	req.Header.Set("X-Api-Access-Key", e.AccessKey)
	req.Header.Set("X-Api-Resource-Id", resourceID)
	req.Header.Set("X-Api-Request-Id", reqID)
	req.Header.Set("X-Api-Sequence", "-1")
	req.Header.Set("Content-Type", "application/json")
}

func (e *Engine) url() string {
	if e.URL != "" {
		return e.URL
	}
	return DefaultURL
}

func (e *Engine) client() *http.Client {
	if e.Client != nil {
		return e.Client
	}
	return http.DefaultClient
}

func (e *Engine) emit(name string, value float64, tags map[string]string) {
	if e.Observer == nil {
		return
	}
	e.Observer.RecordEvent(metrics.Event{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags:  tags,
	})
}

var _ asr.Engine = (*Engine)(nil)
