package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhvani-ai/dhvani/internal/config"
	"github.com/dhvani-ai/dhvani/internal/observability"
	"github.com/dhvani-ai/dhvani/internal/relay"
	"github.com/dhvani-ai/dhvani/internal/session"
)

func newTestServer(t *testing.T, namespace string) (*httptest.Server, *session.Manager) {
	ts, _, sessions := newTestServerFull(t, namespace)
	return ts, sessions
}

func newTestServerFull(t *testing.T, namespace string) (*httptest.Server, *Server, *session.Manager) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(namespace + "_" + time.Now().Format("150405000000000"))
	orchestrator := relay.NewOrchestrator(
		sessions,
		relay.NewMockTranscriber(),
		relay.NewMockChatStreamer(),
		relay.NewMockSynthesizer(),
		metrics,
		relay.NewLogSink(metrics),
		relay.Settings{
			SystemPrompt:    "translate",
			HistoryCap:      10,
			SampleRate:      16000,
			FlushFloorBytes: 1600,
			MaxBufferBytes:  1 << 20,
		},
	)
	srv := New(cfg, sessions, orchestrator, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, srv, sessions
}

func TestRootAndHealth(t *testing.T) {
	ts, _ := newTestServer(t, "test_httpapi_root")

	res, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var root map[string]any
	if err := json.NewDecoder(res.Body).Decode(&root); err != nil {
		t.Fatalf("decode root response: %v", err)
	}
	if root["endpoint"] != "/ws/translate" {
		t.Fatalf("root endpoint = %v", root["endpoint"])
	}

	healthRes, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer healthRes.Body.Close()
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", healthRes.StatusCode, http.StatusOK)
	}
	var health map[string]any
	if err := json.NewDecoder(healthRes.Body).Decode(&health); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Fatalf("health status = %v, want healthy", health["status"])
	}
}

func TestTranslateWSRoundTrip(t *testing.T) {
	ts, sessions := newTestServer(t, "test_httpapi_ws")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/translate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	waitForSessions(t, sessions, 1)

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 2000)); err != nil {
		t.Fatalf("write audio frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"process"}`)); err != nil {
		t.Fatalf("write process directive: %v", err)
	}

	var sawUser, sawPartial, sawAudio, sawFinal bool
	deadline := time.Now().Add(3 * time.Second)
	for !sawFinal {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message (user=%v partial=%v audio=%v): %v", sawUser, sawPartial, sawAudio, err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("non-json server message %q: %v", data, err)
		}
		switch msg["type"] {
		case "transcript":
			switch msg["role"] {
			case "user":
				sawUser = true
			case "assistant":
				if partial, ok := msg["isPartial"].(bool); ok && !partial {
					sawFinal = true
				}
			}
		case "transcript_partial":
			sawPartial = true
		case "audio":
			sawAudio = true
			if msg["data"] == "" {
				t.Fatalf("audio message with empty payload")
			}
		}
	}
	if !sawUser || !sawPartial || !sawAudio {
		t.Fatalf("incomplete cycle: user=%v partial=%v audio=%v", sawUser, sawPartial, sawAudio)
	}

	conn.Close()
	waitForSessions(t, sessions, 0)
}

func TestTranslateWSIgnoresUnknownDirective(t *testing.T) {
	ts, _ := newTestServer(t, "test_httpapi_unknown")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/translate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write bogus directive: %v", err)
	}

	// The connection must survive the unknown directive and keep serving.
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 2000)); err != nil {
		t.Fatalf("write audio after bogus directive: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"process"}`)); err != nil {
		t.Fatalf("write process directive: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("connection died after unknown directive: %v", err)
	}
}

func TestTranslateWSDisconnectsSilentPeer(t *testing.T) {
	ts, srv, sessions := newTestServerFull(t, "test_httpapi_silent")
	srv.readWait = 150 * time.Millisecond

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/translate"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	waitForSessions(t, sessions, 1)

	// A peer that sends nothing must be disconnected once the read deadline
	// lapses, and its session must be released.
	start := time.Now()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the idle connection")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("idle disconnect took %v, want under the read deadline margin", elapsed)
	}
	waitForSessions(t, sessions, 0)
}

func TestTranslateWSRejectsCrossOrigin(t *testing.T) {
	ts, _ := newTestServer(t, "test_httpapi_origin")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/translate"
	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, res, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatalf("expected cross-origin dial to fail")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake response, got %+v", res)
	}
}

func waitForSessions(t *testing.T, sessions *session.Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sessions.ActiveCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("active sessions = %d, want %d", sessions.ActiveCount(), want)
}
