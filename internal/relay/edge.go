package relay

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dhvani-ai/dhvani/internal/reliability"
)

const edgeTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

type EdgeConfig struct {
	WSBaseURL    string
	Voice        string
	Rate         string
	Volume       string
	OutputFormat string
	CallLimit    time.Duration
}

// EdgeSynthesizer speaks sentences through the Edge read-aloud websocket
// endpoint. Each Synthesize call is one connection: speech.config, one SSML
// turn, then binary audio frames until turn.end.
type EdgeSynthesizer struct {
	cfg EdgeConfig
}

func NewEdgeSynthesizer(cfg EdgeConfig) *EdgeSynthesizer {
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://speech.platform.bing.com"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "hi-IN-SwaraNeural"
	}
	if strings.TrimSpace(cfg.Rate) == "" {
		cfg.Rate = "+0%"
	}
	if strings.TrimSpace(cfg.Volume) == "" {
		cfg.Volume = "+0%"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	}
	if cfg.CallLimit <= 0 {
		cfg.CallLimit = 15 * time.Second
	}
	return &EdgeSynthesizer{cfg: cfg}
}

func (s *EdgeSynthesizer) Synthesize(ctx context.Context, text string) (SynthesisResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallLimit)
	defer cancel()

	conn, err := s.dial(callCtx)
	if err != nil {
		return SynthesisResult{}, err
	}
	defer conn.Close()

	// ReadMessage has no context hook; closing the connection is the only way
	// to unblock it when the caller goes away.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-callCtx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	deadline, ok := callCtx.Deadline()
	if ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := s.sendSpeechConfig(conn); err != nil {
		return SynthesisResult{}, fmt.Errorf("send speech config: %w", err)
	}
	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	ssml := buildSSML(s.cfg.Voice, s.cfg.Rate, s.cfg.Volume, text)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlFrame(requestID, ssml))); err != nil {
		return SynthesisResult{}, fmt.Errorf("send ssml: %w", err)
	}

	var audio []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := callCtx.Err(); ctxErr != nil {
				return SynthesisResult{}, ctxErr
			}
			return SynthesisResult{}, fmt.Errorf("read synthesis frame: %w", err)
		}
		switch msgType {
		case websocket.TextMessage:
			if frameHasPath(string(data), "turn.end") {
				if len(audio) == 0 {
					return SynthesisResult{}, fmt.Errorf("synthesis returned no audio")
				}
				return SynthesisResult{Audio: audio, Format: "mp3"}, nil
			}
		case websocket.BinaryMessage:
			path, payload, err := parseBinaryFrame(data)
			if err != nil {
				return SynthesisResult{}, fmt.Errorf("parse binary frame: %w", err)
			}
			if path == "audio" {
				audio = append(audio, payload...)
			}
		}
	}
}

// dial retries once when the first attempt fails; the endpoint sheds
// connections under load and a fresh dial usually succeeds.
func (s *EdgeSynthesizer) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.WSBaseURL, "/") + "/consumer/speech/synthesize/readaloud/edge/v1")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("TrustedClientToken", edgeTrustedClientToken)
	q.Set("ConnectionId", strings.ReplaceAll(uuid.NewString(), "-", ""))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Origin", "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold")

	var conn *websocket.Conn
	for attempt := 0; ; attempt++ {
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
		if err == nil {
			return conn, nil
		}
		if attempt > 0 {
			return nil, fmt.Errorf("dial synthesis websocket: %w", err)
		}
		select {
		case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *EdgeSynthesizer) sendSpeechConfig(conn *websocket.Conn) error {
	payload, err := sonic.Marshal(map[string]any{
		"context": map[string]any{
			"synthesis": map[string]any{
				"audio": map[string]any{
					"metadataoptions": map[string]any{
						"sentenceBoundaryEnabled": "false",
						"wordBoundaryEnabled":     "false",
					},
					"outputFormat": s.cfg.OutputFormat,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	frame := "X-Timestamp:" + edgeTimestamp() + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" + string(payload)
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func ssmlFrame(requestID, ssml string) string {
	return "X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + edgeTimestamp() + "\r\n" +
		"Path:ssml\r\n\r\n" + ssml
}

func buildSSML(voice, rate, volume, text string) string {
	return `<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>` +
		`<voice name='` + voice + `'>` +
		`<prosody pitch='+0Hz' rate='` + rate + `' volume='` + volume + `'>` +
		escapeSSMLText(text) +
		`</prosody></voice></speak>`
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeSSMLText(text string) string {
	return ssmlEscaper.Replace(text)
}

// parseBinaryFrame splits an Edge binary message into its Path header value
// and payload. The first two bytes are the big-endian header block length.
func parseBinaryFrame(data []byte) (path string, payload []byte, err error) {
	if len(data) < 2 {
		return "", nil, fmt.Errorf("binary frame too short: %d bytes", len(data))
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if 2+headerLen > len(data) {
		return "", nil, fmt.Errorf("binary frame header length %d exceeds frame size %d", headerLen, len(data))
	}
	headers := string(data[2 : 2+headerLen])
	for _, line := range strings.Split(headers, "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if found && strings.TrimSpace(name) == "Path" {
			path = strings.TrimSpace(value)
		}
	}
	return path, data[2+headerLen:], nil
}

// frameHasPath reports whether a text frame's header block carries the given
// Path value.
func frameHasPath(frame, want string) bool {
	head, _, _ := strings.Cut(frame, "\r\n\r\n")
	for _, line := range strings.Split(head, "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if found && strings.TrimSpace(name) == "Path" && strings.TrimSpace(value) == want {
			return true
		}
	}
	return false
}

func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 2 2006 15:04:05") + " GMT+0000 (Coordinated Universal Time)"
}

// EncodeAudioBase64 is the wire encoding for synthesized audio payloads.
func EncodeAudioBase64(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}
