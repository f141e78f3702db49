// Package wire implements the binary framing protocol of the speech service:
// a 4-byte header, a 4-byte big-endian payload size, and the payload itself,
// with gzip compression and JSON serialization signalled by header nibbles.
package wire

// MessageType identifies the protocol message kind, carried in the high
// nibble of header byte 1.
type MessageType byte

const (
	TypeFullClientRequest  MessageType = 0b0001
	TypeAudioOnlyRequest   MessageType = 0b0010
	TypeFullServerResponse MessageType = 0b1001
	TypeErrorResponse      MessageType = 0b1111
)

// MessageTypeNames maps message types to readable names for logging.
var MessageTypeNames = map[MessageType]string{
	TypeFullClientRequest:  "FULL_CLIENT_REQUEST",
	TypeAudioOnlyRequest:   "AUDIO_ONLY_REQUEST",
	TypeFullServerResponse: "FULL_SERVER_RESPONSE",
	TypeErrorResponse:      "ERROR_RESPONSE",
}

func (t MessageType) String() string {
	if name, ok := MessageTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// MessageFlags occupy the low nibble of header byte 1. The service defines
// sequence and last-packet flags, but this endpoint takes flag-less audio
// frames: end of stream is signalled by an empty payload, not by
// FlagsLastPacket.
type MessageFlags byte

const (
	FlagsNone         MessageFlags = 0b0000
	FlagsSequence     MessageFlags = 0b0001
	FlagsLastPacket   MessageFlags = 0b0010
	FlagsSequenceLast MessageFlags = 0b0011
)

// Serialization is the high nibble of header byte 2.
type Serialization byte

const (
	SerializationNone Serialization = 0b0000
	SerializationJSON Serialization = 0b0001
)

// Compression is the low nibble of header byte 2.
type Compression byte

const (
	CompressionNone Compression = 0b0000
	CompressionGzip Compression = 0b0001
)

const (
	protocolVersion = 0b0001
	// Header length in 4-byte words. Fixed at one word; decoders still honor
	// the field so extension headers from the server parse correctly.
	headerSizeWords = 0b0001

	headerLen     = 4
	sizePrefixLen = 4
)

// CodeSuccess is the status code the server attaches to well-formed
// responses; anything else is a server-reported error.
const CodeSuccess = 1000

func packHeader(t MessageType, f MessageFlags, s Serialization, c Compression) [headerLen]byte {
	return [headerLen]byte{
		protocolVersion<<4 | headerSizeWords,
		byte(t)<<4 | byte(f),
		byte(s)<<4 | byte(c),
		0x00,
	}
}
