// Package streaming implements speech recognition over the realtime
// WebSocket endpoint: open a connection, send the config frame, stream
// audio chunks, and collect partial and final transcripts.
package streaming

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/volcasr/pkg/asr"
	"github.com/harunnryd/volcasr/pkg/errorsx"
	"github.com/harunnryd/volcasr/pkg/logging"
	"github.com/harunnryd/volcasr/pkg/metrics"
	"github.com/harunnryd/volcasr/pkg/session"
	"github.com/harunnryd/volcasr/pkg/wire"
)

const (
	// DefaultURL is the realtime recognition endpoint.
	DefaultURL = "wss://openspeech.bytedance.com/api/v2/asr"
	// DefaultCluster selects the general-purpose streaming model.
	DefaultCluster = "volcengine_streaming_common"

	defaultChunkBytes     = 900000
	defaultChunkDelay     = 100 * time.Millisecond
	defaultConnectTimeout = 5 * time.Second
	defaultReadyTimeout   = 10 * time.Second
	defaultResultTimeout  = 60 * time.Second

	// listenerJoinTimeout bounds how long Recognize waits for the read
	// loop to exit after the socket is closed.
	listenerJoinTimeout = time.Second
)

type Config struct {
	AppID     string
	AccessKey string
	Cluster   string
	URL       string

	UID            string
	Language       string
	PromptHint     string
	SampleRate     int
	ShowUtterances bool

	ChunkBytes     int
	ChunkDelay     time.Duration
	ConnectTimeout time.Duration
	ReadyTimeout   time.Duration
	ResultTimeout  time.Duration

	Observer metrics.Observer
}

// Engine streams one audio source per Recognize call. Safe for
// concurrent use; each call owns its connection and session.
type Engine struct {
	cfg    Config
	obs    metrics.Observer
	logger *slog.Logger
}

func New(cfg Config) *Engine {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Cluster == "" {
		cfg.Cluster = DefaultCluster
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = defaultChunkBytes
	}
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = defaultChunkDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = defaultResultTimeout
	}
	obs := cfg.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Engine{
		cfg:    cfg,
		obs:    obs,
		logger: logging.NewComponentLogger(slog.Default(), "streaming_asr"),
	}
}

func (e *Engine) Name() string { return "streaming" }

// Recognize runs one full attempt: dial, config, audio, result. Server
// error frames never abort the attempt; only connection and write
// failures do. A missing final result degrades to the last partial.
func (e *Engine) Recognize(ctx context.Context, audio asr.Audio) (*asr.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	data, err := audio.Load()
	if err != nil {
		return nil, err
	}

	req := wire.BuildConfigRequest(wire.ConfigParams{
		AppID:          e.cfg.AppID,
		AccessKey:      e.cfg.AccessKey,
		Cluster:        e.cfg.Cluster,
		UID:            e.cfg.UID,
		SampleRate:     e.cfg.SampleRate,
		Language:       e.cfg.Language,
		PromptHint:     e.cfg.PromptHint,
		ShowUtterances: e.cfg.ShowUtterances,
	})
	reqID := req.Request.ReqID
	tags := map[string]string{"request_id": reqID, "engine": e.Name()}

	sess := session.New()
	sm := newStateMachine()
	sm.AddListener(ListenerFunc(func(ev StateChange) {
		e.logger.Debug("state change",
			slog.String("request_id", reqID),
			slog.String("from", ev.FromState.String()),
			slog.String("to", ev.ToState.String()),
			slog.String("reason", ev.Reason))
	}))

	_ = sm.Transition(StateConnecting, "dialing")
	started := time.Now()
	conn, err := e.dial(ctx)
	if err != nil {
		_ = sm.Transition(StateFailed, "dial failed")
		e.emit("asr_failed", 0, tags)
		return nil, err
	}
	sess.SignalConnected()
	sess.MarkOpen()
	e.emit("asr_connect", durationMs(started), tags)
	e.logger.Info("connected",
		slog.String("request_id", reqID),
		slog.String("url", e.cfg.URL))

	listenerDone := make(chan struct{})
	defer func() {
		sess.RequestStop()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		sess.MarkClosed()
		select {
		case <-listenerDone:
		case <-time.After(listenerJoinTimeout):
			e.logger.Warn("listener did not exit in time",
				slog.String("request_id", reqID))
		}
	}()

	go func() {
		defer close(listenerDone)
		e.listen(conn, sess, reqID)
	}()

	frame, err := req.Encode()
	if err != nil {
		_ = sm.Transition(StateFailed, "config encode failed")
		e.emit("asr_failed", 0, tags)
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		_ = sm.Transition(StateFailed, "config write failed")
		e.emit("asr_failed", 0, tags)
		return nil, errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	e.emit("asr_config_sent", float64(len(frame)), tags)

	_ = sm.Transition(StateAwaitingReady, "config sent")
	select {
	case <-sess.Ready():
		e.emit("asr_ready", durationMs(started), tags)
	case <-time.After(e.cfg.ReadyTimeout):
		// The server acks with code 1000 before results; a missing ack
		// is survivable, so log and stream anyway.
		e.logger.Warn("ready ack timeout, sending audio anyway",
			slog.String("request_id", reqID))
		e.emit("asr_ready_timeout", e.cfg.ReadyTimeout.Seconds(), tags)
	case <-listenerDone:
		_ = sm.Transition(StateFailed, "connection lost before ready")
		e.emit("asr_failed", 0, tags)
		return nil, errorsx.Errorf(errorsx.ReasonTransport, "connection closed before ready ack")
	case <-ctx.Done():
		_ = sm.Transition(StateFailed, "cancelled")
		e.emit("asr_failed", 0, tags)
		return nil, ctx.Err()
	}

	_ = sm.Transition(StateSending, "streaming audio")
	if err := e.sendAudio(ctx, conn, sess, data, reqID, tags); err != nil {
		_ = sm.Transition(StateFailed, "audio write failed")
		e.emit("asr_failed", 0, tags)
		return nil, err
	}
	e.emit("asr_stream_end", float64(len(data)), tags)

	_ = sm.Transition(StateAwaitingResult, "stream ended")
	select {
	case <-sess.FinalReceived():
	case <-time.After(e.cfg.ResultTimeout):
		e.logger.Warn("no final result before deadline",
			slog.String("request_id", reqID),
			slog.Duration("timeout", e.cfg.ResultTimeout))
		e.emit("asr_result_timeout", e.cfg.ResultTimeout.Seconds(), tags)
	case <-ctx.Done():
		_ = sm.Transition(StateFailed, "cancelled")
		e.emit("asr_failed", 0, tags)
		return nil, ctx.Err()
	}

	text, fromPartial := sess.Resolve()
	if fromPartial {
		e.logger.Warn("substituting last partial for missing final",
			slog.String("request_id", reqID),
			slog.Int("length", len(text)))
	}
	_ = sm.Transition(StateCompleted, "resolved")
	e.emit("asr_completed", float64(len(text)), tags)
	e.logger.Info("recognition completed",
		slog.String("request_id", reqID),
		slog.Int("length", len(text)),
		slog.Int64("chunks", sess.Chunks()),
		slog.Bool("from_partial", fromPartial))

	return &asr.Result{
		Text:        text,
		Engine:      e.Name(),
		RequestID:   reqID,
		FromPartial: fromPartial,
	}, nil
}

func (e *Engine) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: e.cfg.ConnectTimeout,
	}
	header := http.Header{
		// The endpoint expects a semicolon between the scheme and the key.
		"Authorization": []string{"Bearer; " + e.cfg.AccessKey},
	}
	conn, resp, err := dialer.DialContext(dialCtx, e.cfg.URL, header)
	if err != nil {
		reason := errorsx.ReasonConnect
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			reason = errorsx.ReasonConnectTimeout
		}
		status := ""
		if resp != nil {
			status = resp.Status
		}
		e.logger.Error("connect failed",
			slog.String("url", e.cfg.URL),
			slog.String("status", status),
			slog.String("error", err.Error()))
		return nil, errorsx.Wrap(err, reason)
	}
	return conn, nil
}

func (e *Engine) sendAudio(ctx context.Context, conn *websocket.Conn, sess *session.Session, data []byte, reqID string, tags map[string]string) error {
	total := (len(data) + e.cfg.ChunkBytes - 1) / e.cfg.ChunkBytes
	for offset := 0; offset < len(data); offset += e.cfg.ChunkBytes {
		end := offset + e.cfg.ChunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeAudioChunk(chunk, end == len(data))); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonTransport)
		}
		n := sess.AdvanceChunk()
		e.emit("asr_chunk_sent", float64(len(chunk)), tags)
		if n%5 == 0 || end == len(data) {
			e.logger.Debug("audio progress",
				slog.String("request_id", reqID),
				slog.Int64("chunk", n),
				slog.Int("total", total))
		}
		select {
		case <-time.After(e.cfg.ChunkDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// End of stream is an empty audio frame, not a header flag.
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.EncodeAudioChunk(nil, true)); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransport)
	}
	return nil
}

// listen is the sole reader of the connection and the sole writer of
// session text. It exits when the socket closes or errors.
func (e *Engine) listen(conn *websocket.Conn, sess *session.Session, reqID string) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if sess.StopRequested() {
				e.logger.Debug("read loop exit",
					slog.String("request_id", reqID),
					slog.String("reason", "stop_requested"))
			} else {
				e.logger.Error("read loop error",
					slog.String("request_id", reqID),
					slog.String("error", err.Error()))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			e.logger.Debug("ignoring non-binary message",
				slog.String("request_id", reqID),
				slog.Int("type", msgType))
			continue
		}
		e.handleMessage(data, sess, reqID)
	}
}

// handleMessage decodes one server frame. Malformed frames and server
// error frames are logged and dropped; they never end the attempt.
func (e *Engine) handleMessage(data []byte, sess *session.Session, reqID string) {
	msg, err := wire.DecodeMessage(data)
	if err != nil {
		e.logger.Debug("dropping undecodable frame",
			slog.String("request_id", reqID),
			slog.Int("size", len(data)),
			slog.String("error", err.Error()))
		return
	}
	resp, err := wire.ParseResponse(msg)
	if err != nil {
		e.logger.Debug("dropping unparseable payload",
			slog.String("request_id", reqID),
			slog.String("type", msg.Type.String()),
			slog.String("error", err.Error()))
		return
	}
	if !resp.OK() {
		code := int64(resp.Code)
		if resp.ErrorFrame {
			code = int64(resp.WireCode)
		}
		e.logger.Error("server reported error",
			slog.String("request_id", reqID),
			slog.Int64("code", code),
			slog.String("message", resp.Message))
		return
	}

	// Every success frame doubles as the ready ack.
	sess.SignalReady()

	if len(resp.Result) == 0 {
		return
	}
	item := resp.Result[0]
	if e.cfg.ShowUtterances {
		for _, u := range item.Utterances {
			sess.RecordUtterance(u.Text, u.Definite)
		}
	}
	text := item.BestText()
	if item.Final() {
		e.logger.Info("final result received",
			slog.String("request_id", reqID),
			slog.Int("length", len(text)))
		sess.RecordFinal(text)
		e.emit("asr_final", float64(len(text)), map[string]string{"request_id": reqID, "engine": e.Name()})
		return
	}
	sess.RecordPartial(text)
	e.emit("asr_partial", float64(len(text)), map[string]string{"request_id": reqID, "engine": e.Name()})
}

func (e *Engine) emit(name string, value float64, tags map[string]string) {
	e.obs.RecordEvent(metrics.Event{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags:  tags,
	})
}

func durationMs(since time.Time) float64 {
	return float64(time.Since(since).Milliseconds())
}

var _ asr.Engine = (*Engine)(nil)
