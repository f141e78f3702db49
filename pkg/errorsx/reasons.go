package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonAudioNotFound marks a missing or empty audio source, detected
	// before any network activity.
	ReasonAudioNotFound ReasonCode = "audio_not_found"

	ReasonConnect        ReasonCode = "asr_connect"
	ReasonConnectTimeout ReasonCode = "asr_connect_timeout"
	ReasonReadyTimeout   ReasonCode = "asr_ready_timeout"
	ReasonDecode         ReasonCode = "asr_decode"
	ReasonServerStatus   ReasonCode = "asr_server_status"
	ReasonTransport      ReasonCode = "asr_transport"
	ReasonResultTimeout  ReasonCode = "asr_result_timeout"

	ReasonFlashRequest ReasonCode = "flash_request"
	ReasonFlashStatus  ReasonCode = "flash_status"
)
