package wire

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// DefaultWorkflow is the server-side processing pipeline requested for
// streaming recognition.
const DefaultWorkflow = "audio_in,resample,partition,vad,fe,decode,itn,nlu_punctuate"

const defaultUIDPrefix = "volcasr"

// ConfigParams carries the per-attempt values placed into the full client
// request. Zero values fall back to protocol defaults.
type ConfigParams struct {
	AppID          string
	AccessKey      string
	Cluster        string
	UID            string
	SampleRate     int
	Language       string
	PromptHint     string
	ShowUtterances bool
}

// ConfigRequest is the JSON body of the FULL_CLIENT_REQUEST frame.
type ConfigRequest struct {
	App     AppSection     `json:"app"`
	User    UserSection    `json:"user"`
	Audio   AudioSection   `json:"audio"`
	Request RequestSection `json:"request"`
}

type AppSection struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type UserSection struct {
	UID string `json:"uid"`
}

type AudioSection struct {
	Format   string `json:"format"`
	Codec    string `json:"codec"`
	Rate     int    `json:"rate"`
	Bits     int    `json:"bits"`
	Channel  int    `json:"channel"`
	Language string `json:"language,omitempty"`
}

type RequestSection struct {
	ReqID          string `json:"reqid"`
	Sequence       int    `json:"sequence"`
	NBest          int    `json:"nbest"`
	Workflow       string `json:"workflow"`
	ShowUtterances bool   `json:"show_utterances"`
	ResultType     string `json:"result_type"`
	Context        string `json:"context,omitempty"`
}

// BuildConfigRequest assembles a full client request body. Every call embeds
// a fresh random reqid.
func BuildConfigRequest(p ConfigParams) *ConfigRequest {
	uid := p.UID
	if uid == "" {
		uid = fmt.Sprintf("%s_%d", defaultUIDPrefix, time.Now().Unix())
	}
	rate := p.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return &ConfigRequest{
		App: AppSection{
			AppID:   p.AppID,
			Token:   p.AccessKey,
			Cluster: p.Cluster,
		},
		User: UserSection{UID: uid},
		Audio: AudioSection{
			Format:   "raw",
			Codec:    "raw",
			Rate:     rate,
			Bits:     16,
			Channel:  1,
			Language: p.Language,
		},
		Request: RequestSection{
			ReqID:          uuid.NewString(),
			Sequence:       1,
			NBest:          1,
			Workflow:       DefaultWorkflow,
			ShowUtterances: p.ShowUtterances,
			ResultType:     "full",
			Context:        p.PromptHint,
		},
	}
}

// Encode serializes the request and wraps it into a wire frame.
func (r *ConfigRequest) Encode() ([]byte, error) {
	body, err := sonic.Marshal(r)
	if err != nil {
		return nil, err
	}
	return EncodeFullClientRequest(body)
}

// Response is the JSON body of a server frame. ErrorFrame distinguishes
// bodies that arrived inside an ERROR_RESPONSE frame; WireCode carries that
// frame's binary code prefix.
type Response struct {
	ReqID    string     `json:"reqid"`
	Code     int        `json:"code"`
	Message  string     `json:"message"`
	Sequence int        `json:"sequence"`
	Result   ResultList `json:"result"`

	ErrorFrame bool   `json:"-"`
	WireCode   uint32 `json:"-"`
}

// OK reports whether the response is a well-formed success: not an error
// frame and carrying the designated success code.
func (r *Response) OK() bool {
	return !r.ErrorFrame && r.Code == CodeSuccess
}

// ResultList absorbs the server's two shapes for the result field: a JSON
// array of results or a single result object.
type ResultList []Result

func (l *ResultList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '[':
		var list []Result
		if err := sonic.Unmarshal(data, &list); err != nil {
			return err
		}
		*l = list
		return nil
	case '{':
		var one Result
		if err := sonic.Unmarshal(data, &one); err != nil {
			return err
		}
		*l = ResultList{one}
		return nil
	default:
		return fmt.Errorf("result must be an object or array")
	}
}

// Result is one recognition hypothesis.
type Result struct {
	Text       string      `json:"text"`
	Definite   bool        `json:"definite"`
	IsFinal    bool        `json:"is_final"`
	Utterances []Utterance `json:"utterances"`
}

// Final reports whether the server marked this result complete for the
// session.
func (r Result) Final() bool {
	return r.Definite || r.IsFinal
}

// BestText returns the result text, falling back to the first utterance when
// the top-level field is empty.
func (r Result) BestText() string {
	if r.Text != "" {
		return r.Text
	}
	if len(r.Utterances) > 0 {
		return r.Utterances[0].Text
	}
	return ""
}

// Utterance is one segment of a result when show_utterances is enabled.
type Utterance struct {
	Text      string `json:"text"`
	Definite  bool   `json:"definite"`
	StartTime int    `json:"start_time"`
	EndTime   int    `json:"end_time"`
}

// ParseResponse interprets a decoded frame's payload as a server response.
// It fails closed: non-JSON serialization, a top-level value that is not an
// object, and undecodable JSON all return ErrMalformedPayload.
func ParseResponse(msg *Message) (*Response, error) {
	if msg.Serialization != SerializationJSON {
		return nil, fmt.Errorf("%w: serialization %#x is not json", ErrMalformedPayload, byte(msg.Serialization))
	}
	body := bytes.TrimSpace(msg.Payload)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedPayload)
	}
	var resp Response
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if msg.Type == TypeErrorResponse {
		resp.ErrorFrame = true
		resp.WireCode = msg.ErrorCode
	}
	return &resp, nil
}
