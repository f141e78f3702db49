package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func buildServerFrame(t *testing.T, body []byte, compression Compression) []byte {
	t.Helper()
	payload := body
	if compression == CompressionGzip {
		var err error
		payload, err = Compress(body)
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
	}
	header := packHeader(TypeFullServerResponse, FlagsNone, SerializationJSON, compression)
	frame := append([]byte{}, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	return append(frame, payload...)
}

func buildErrorFrame(t *testing.T, code uint32, body []byte) []byte {
	t.Helper()
	header := packHeader(TypeErrorResponse, FlagsNone, SerializationJSON, CompressionNone)
	frame := append([]byte{}, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, code)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(body)))
	return append(frame, body...)
}

func TestEncodeConfigFrameTags(t *testing.T) {
	req := BuildConfigRequest(ConfigParams{AppID: "app", AccessKey: "key", Cluster: "cluster"})
	frame, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frame[0] != 0x11 {
		t.Fatalf("expected version/header-size byte 0x11, got %#x", frame[0])
	}
	if MessageType(frame[1]>>4) != TypeFullClientRequest {
		t.Fatalf("unexpected message type nibble %#x", frame[1]>>4)
	}
	if MessageFlags(frame[1]&0x0F) != FlagsNone {
		t.Fatalf("unexpected flags nibble %#x", frame[1]&0x0F)
	}
	if Serialization(frame[2]>>4) != SerializationJSON {
		t.Fatalf("unexpected serialization nibble %#x", frame[2]>>4)
	}
	if Compression(frame[2]&0x0F) != CompressionGzip {
		t.Fatalf("unexpected compression nibble %#x", frame[2]&0x0F)
	}
	if frame[3] != 0x00 {
		t.Fatalf("reserved byte must be zero, got %#x", frame[3])
	}
	size := binary.BigEndian.Uint32(frame[4:8])
	if int(size) != len(frame)-8 {
		t.Fatalf("size prefix %d does not match payload %d", size, len(frame)-8)
	}
	body, err := Decompress(frame[8:])
	if err != nil {
		t.Fatalf("config payload must gunzip: %v", err)
	}
	for _, want := range []string{`"appid":"app"`, `"token":"key"`, `"cluster":"cluster"`, `"result_type":"full"`} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("config body missing %s: %s", want, body)
		}
	}
}

func TestConfigRequestFreshReqID(t *testing.T) {
	a := BuildConfigRequest(ConfigParams{AppID: "app"})
	b := BuildConfigRequest(ConfigParams{AppID: "app"})
	if a.Request.ReqID == "" || a.Request.ReqID == b.Request.ReqID {
		t.Fatalf("expected distinct reqids, got %q and %q", a.Request.ReqID, b.Request.ReqID)
	}
	if !strings.HasPrefix(a.User.UID, "volcasr_") {
		t.Fatalf("unexpected default uid %q", a.User.UID)
	}
	if a.Audio.Rate != 16000 || a.Audio.Bits != 16 || a.Audio.Channel != 1 {
		t.Fatalf("unexpected audio defaults %+v", a.Audio)
	}
	if a.Request.Sequence != 1 || a.Request.NBest != 1 || a.Request.Workflow != DefaultWorkflow {
		t.Fatalf("unexpected request defaults %+v", a.Request)
	}
}

func TestEncodeAudioChunk(t *testing.T) {
	chunk := []byte{1, 2, 3, 4, 5}
	frame := EncodeAudioChunk(chunk, false)
	if MessageType(frame[1]>>4) != TypeAudioOnlyRequest {
		t.Fatalf("unexpected message type nibble %#x", frame[1]>>4)
	}
	if Serialization(frame[2]>>4) != SerializationNone || Compression(frame[2]&0x0F) != CompressionNone {
		t.Fatalf("audio frames must be raw, got byte2 %#x", frame[2])
	}
	if size := binary.BigEndian.Uint32(frame[4:8]); int(size) != len(chunk) {
		t.Fatalf("size prefix %d, want %d", size, len(chunk))
	}
	if !bytes.Equal(frame[8:], chunk) {
		t.Fatalf("payload mismatch")
	}

	// The end-of-stream frame is the same encoding with an empty payload,
	// regardless of the last flag.
	end := EncodeAudioChunk(nil, true)
	if len(end) != 8 {
		t.Fatalf("end-of-stream frame must be header+size only, got %d bytes", len(end))
	}
	if size := binary.BigEndian.Uint32(end[4:8]); size != 0 {
		t.Fatalf("end-of-stream size prefix must be zero, got %d", size)
	}
	if end[1] != frame[1] {
		t.Fatalf("last chunk must not change the header, got %#x vs %#x", end[1], frame[1])
	}
}

func TestDecodeTruncatedNeverSpurious(t *testing.T) {
	body := []byte(`{"code":1000,"message":"Success","result":[{"text":"hello"}]}`)
	frame := buildServerFrame(t, body, CompressionNone)
	for cut := 0; cut < len(frame); cut++ {
		msg, err := DecodeMessage(frame[:cut])
		if msg != nil {
			t.Fatalf("cut %d: expected no message, got %+v", cut, msg)
		}
		if !errors.Is(err, ErrShortMessage) {
			t.Fatalf("cut %d: expected ErrShortMessage, got %v", cut, err)
		}
	}
	if _, err := DecodeMessage(frame); err != nil {
		t.Fatalf("full frame must decode: %v", err)
	}
}

func TestDecodeServerResponse(t *testing.T) {
	body := []byte(`{"reqid":"r1","code":1000,"message":"Success","sequence":1,"result":[{"text":"你好","definite":true}]}`)
	frame := buildServerFrame(t, body, CompressionGzip)
	msg, err := DecodeMessage(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != TypeFullServerResponse {
		t.Fatalf("unexpected type %s", msg.Type)
	}
	resp, err := ParseResponse(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected OK response, got %+v", resp)
	}
	if len(resp.Result) != 1 || resp.Result[0].BestText() != "你好" || !resp.Result[0].Final() {
		t.Fatalf("unexpected result %+v", resp.Result)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	body := []byte(`{"code":1013,"message":"invalid audio"}`)
	frame := buildErrorFrame(t, 1013, body)
	msg, err := DecodeMessage(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ErrorCode != 1013 {
		t.Fatalf("expected wire code 1013, got %d", msg.ErrorCode)
	}
	resp, err := ParseResponse(msg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.OK() {
		t.Fatalf("error frames must not report OK")
	}
	if !resp.ErrorFrame || resp.WireCode != 1013 || resp.Message != "invalid audio" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestDecodeNonSuccessCode(t *testing.T) {
	body := []byte(`{"code":1002,"message":"auth failed"}`)
	frame := buildServerFrame(t, body, CompressionNone)
	msg, err := DecodeMessage(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp, err := ParseResponse(msg)
	if err != nil {
		t.Fatalf("a well-formed frame with a bad code must still parse: %v", err)
	}
	if resp.OK() {
		t.Fatalf("code 1002 must not report OK")
	}
}

func TestGzipRoundTrip(t *testing.T) {
	body := []byte(`{"app":{"appid":"x"},"request":{"reqid":"y"}}`)
	compressed, err := Compress(body)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	plain, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(plain, body) {
		t.Fatalf("round trip mismatch: %s", plain)
	}

	corrupted := append([]byte{}, compressed...)
	corrupted[len(corrupted)/2] ^= 0xFF
	if _, err := Decompress(corrupted); err == nil {
		t.Fatalf("corrupted stream must fail to decompress")
	}
}

func TestDecodeCorruptGzipPayload(t *testing.T) {
	header := packHeader(TypeFullServerResponse, FlagsNone, SerializationJSON, CompressionGzip)
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}
	frame := append([]byte{}, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(garbage)))
	frame = append(frame, garbage...)
	_, err := DecodeMessage(frame)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestDecodeUnknownMessageType(t *testing.T) {
	frame := []byte{0x11, 0b0101 << 4, 0x10, 0x00, 0, 0, 0, 0}
	_, err := DecodeMessage(frame)
	if !errors.Is(err, ErrUnknownMessageType) {
		t.Fatalf("expected ErrUnknownMessageType, got %v", err)
	}
}

func TestDecodeNegativeInnerLength(t *testing.T) {
	header := packHeader(TypeFullServerResponse, FlagsNone, SerializationJSON, CompressionNone)
	frame := append([]byte{}, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, 0xFFFFFFFF)
	frame = append(frame, 'x')
	_, err := DecodeMessage(frame)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestParseResponseNonObject(t *testing.T) {
	msg := &Message{
		Type:          TypeFullServerResponse,
		Serialization: SerializationJSON,
		Payload:       []byte(`["not","an","object"]`),
	}
	_, err := ParseResponse(msg)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestResultListShapes(t *testing.T) {
	msg := &Message{
		Type:          TypeFullServerResponse,
		Serialization: SerializationJSON,
		Payload:       []byte(`{"code":1000,"result":{"text":"single"}}`),
	}
	resp, err := ParseResponse(msg)
	if err != nil {
		t.Fatalf("parse single-object result: %v", err)
	}
	if len(resp.Result) != 1 || resp.Result[0].Text != "single" {
		t.Fatalf("unexpected result %+v", resp.Result)
	}

	msg.Payload = []byte(`{"code":1000,"result":[{"utterances":[{"text":"u1","definite":false}]}]}`)
	resp, err = ParseResponse(msg)
	if err != nil {
		t.Fatalf("parse array result: %v", err)
	}
	if resp.Result[0].BestText() != "u1" {
		t.Fatalf("expected utterance fallback, got %q", resp.Result[0].BestText())
	}
}
