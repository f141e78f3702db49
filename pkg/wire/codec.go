package wire

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	// ErrShortMessage reports a buffer that ends before the frame does. It
	// means "need more data", never corruption.
	ErrShortMessage = errors.New("wire: short message")
	// ErrUnknownMessageType reports a frame whose type nibble this client
	// does not handle.
	ErrUnknownMessageType = errors.New("wire: unknown message type")
	// ErrMalformedPayload reports a payload that parsed structurally but is
	// not usable: bad gzip data, a negative inner length, or a JSON body
	// whose top level is not an object.
	ErrMalformedPayload = errors.New("wire: malformed payload")
)

// Message is one decoded inbound frame. Payload is already decompressed.
type Message struct {
	Type          MessageType
	Flags         MessageFlags
	Serialization Serialization
	Compression   Compression
	// ErrorCode is the unsigned code prefix of an ERROR_RESPONSE frame.
	ErrorCode uint32
	Payload   []byte
}

// EncodeFullClientRequest wraps a serialized configuration body into a
// FULL_CLIENT_REQUEST frame: gzip-compressed JSON payload behind a big-endian
// length prefix.
func EncodeFullClientRequest(body []byte) ([]byte, error) {
	compressed, err := Compress(body)
	if err != nil {
		return nil, err
	}
	header := packHeader(TypeFullClientRequest, FlagsNone, SerializationJSON, CompressionGzip)
	frame := make([]byte, 0, headerLen+sizePrefixLen+len(compressed))
	frame = append(frame, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(compressed)))
	frame = append(frame, compressed...)
	return frame, nil
}

// EncodeAudioChunk wraps one chunk of raw audio into an AUDIO_ONLY_REQUEST
// frame. The payload travels unserialized and uncompressed. last is accepted
// for call-site clarity but never reaches the wire: the header has no
// last-packet marker on this endpoint, and the stream ends with the empty
// frame the caller sends after the final chunk.
func EncodeAudioChunk(chunk []byte, last bool) []byte {
	_ = last
	header := packHeader(TypeAudioOnlyRequest, FlagsNone, SerializationNone, CompressionNone)
	frame := make([]byte, 0, headerLen+sizePrefixLen+len(chunk))
	frame = append(frame, header[:]...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(chunk)))
	frame = append(frame, chunk...)
	return frame
}

// DecodeMessage parses one inbound frame. A buffer cut short anywhere inside
// the frame yields ErrShortMessage; the read loop treats that as a dropped
// frame and keeps listening.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < headerLen {
		return nil, ErrShortMessage
	}
	headerSize := int(data[0] & 0x0F)
	payloadStart := headerSize * 4
	if payloadStart < headerLen || len(data) < payloadStart {
		return nil, ErrShortMessage
	}
	msg := &Message{
		Type:          MessageType(data[1] >> 4),
		Flags:         MessageFlags(data[1] & 0x0F),
		Serialization: Serialization(data[2] >> 4),
		Compression:   Compression(data[2] & 0x0F),
	}
	payload := data[payloadStart:]

	switch msg.Type {
	case TypeFullServerResponse:
		if len(payload) < 4 {
			return nil, ErrShortMessage
		}
		size := int32(binary.BigEndian.Uint32(payload[:4]))
		if size < 0 {
			return nil, fmt.Errorf("%w: negative payload size %d", ErrMalformedPayload, size)
		}
		if len(payload) < 4+int(size) {
			return nil, ErrShortMessage
		}
		msg.Payload = payload[4 : 4+size]
	case TypeErrorResponse:
		if len(payload) < 8 {
			return nil, ErrShortMessage
		}
		msg.ErrorCode = binary.BigEndian.Uint32(payload[:4])
		size := binary.BigEndian.Uint32(payload[4:8])
		if uint64(len(payload)) < 8+uint64(size) {
			return nil, ErrShortMessage
		}
		msg.Payload = payload[8 : 8+size]
	default:
		return nil, fmt.Errorf("%w: %s (0b%04b)", ErrUnknownMessageType, msg.Type, byte(msg.Type))
	}

	if msg.Compression == CompressionGzip {
		plain, err := Decompress(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: gunzip: %v", ErrMalformedPayload, err)
		}
		msg.Payload = plain
	}
	return msg, nil
}

var gzipWriters = sync.Pool{
	New: func() any {
		return gzip.NewWriter(io.Discard)
	},
}

// Compress gzips data using a pooled writer. Safe for concurrent use.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzipWriters.Get().(*gzip.Writer)
	zw.Reset(&buf)
	if _, err := zw.Write(data); err != nil {
		gzipWriters.Put(zw)
		return nil, err
	}
	if err := zw.Close(); err != nil {
		gzipWriters.Put(zw)
		return nil, err
	}
	gzipWriters.Put(zw)
	return buf.Bytes(), nil
}

// Decompress gunzips data.
func Decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return out, nil
}
