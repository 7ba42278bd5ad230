package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// MessageType identifies payload variants on the duplex connection.
type MessageType string

const (
	// Inbound control directives.
	TypeProcess MessageType = "process"

	// Outbound message types.
	TypeTranscript        MessageType = "transcript"
	TypeTranscriptPartial MessageType = "transcript_partial"
	TypeAudio             MessageType = "audio"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrUnknownDirective = errors.New("unknown control directive")

type envelope struct {
	Type MessageType `json:"type"`
}

// AudioFrame carries one inbound binary frame of raw PCM16LE mono audio.
// It never appears as JSON on the wire; the transport layer wraps binary
// frames in it before handing them to the session loop.
type AudioFrame struct {
	PCM []byte
}

// ClientControl is a structured inbound directive, e.g. {"type":"process"}.
type ClientControl struct {
	Type MessageType `json:"type"`
}

// Transcript is the committed user transcript for one processing cycle.
type Transcript struct {
	Type MessageType `json:"type"`
	Role string      `json:"role"`
	Text string      `json:"text"`
}

// TranscriptPartial carries the cumulative assistant text so far. The client
// replaces its in-progress display with each one; successive payloads within
// a cycle are prefix extensions of each other.
type TranscriptPartial struct {
	Type MessageType `json:"type"`
	Role string      `json:"role"`
	Text string      `json:"text"`
}

// TranscriptFinal closes the assistant turn with the complete response text.
type TranscriptFinal struct {
	Type      MessageType `json:"type"`
	Role      string      `json:"role"`
	Text      string      `json:"text"`
	IsPartial bool        `json:"isPartial"`
}

// Audio carries one fully synthesized sentence. Data is base64-encoded so the
// payload survives the text frame; Format names the container ("mp3").
type Audio struct {
	Type   MessageType `json:"type"`
	Format string      `json:"format"`
	Data   string      `json:"data"`
}

// ParseClientControl decodes an inbound text frame. Unknown directives map to
// ErrUnknownDirective so the caller can ignore them without noise.
func ParseClientControl(raw []byte) (ClientControl, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return ClientControl{}, fmt.Errorf("invalid envelope: %w", err)
	}
	switch env.Type {
	case TypeProcess:
		return ClientControl{Type: env.Type}, nil
	default:
		return ClientControl{}, ErrUnknownDirective
	}
}

// Encode marshals an outbound message for a text frame.
func Encode(msg any) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode outbound message: %w", err)
	}
	return data, nil
}

// TypeOf reports the wire type of a message for metrics labeling.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case AudioFrame:
		return "binary_audio", true
	case ClientControl:
		return m.Type, true
	case Transcript:
		return m.Type, true
	case TranscriptPartial:
		return m.Type, true
	case TranscriptFinal:
		return m.Type, true
	case Audio:
		return m.Type, true
	default:
		return "", false
	}
}
