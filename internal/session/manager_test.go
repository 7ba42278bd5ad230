package session

import (
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("127.0.0.1:52110")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RemoteAddr != "127.0.0.1:52110" || got.Status != StatusOpen {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusClosed {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusClosed)
	}
	if _, err := m.Get(s.ID); err != ErrNotFound {
		t.Fatalf("Get() after End() error = %v, want ErrNotFound", err)
	}
}

func TestManagerRecordCycle(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("127.0.0.1:52111")

	if err := m.RecordCycle(s.ID); err != nil {
		t.Fatalf("RecordCycle() error = %v", err)
	}
	if err := m.RecordCycle(s.ID); err != nil {
		t.Fatalf("RecordCycle() error = %v", err)
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Cycles != 2 {
		t.Fatalf("Cycles = %d, want 2", got.Cycles)
	}
}

func TestManagerExpiresInactiveSessions(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("127.0.0.1:52112")

	expired := make(chan *Session, 1)
	m.SetExpireHook(func(s *Session) { expired <- s })

	// Backdate activity past the timeout, then trigger the sweep directly.
	m.mu.Lock()
	m.sessions[s.ID].LastActivityAt = time.Now().UTC().Add(-2 * time.Minute)
	m.mu.Unlock()
	m.expireInactive()

	select {
	case e := <-expired:
		if e.ID != s.ID || e.Status != StatusClosed {
			t.Fatalf("expired session = %+v, want closed %s", e, s.ID)
		}
	default:
		t.Fatalf("expire hook was not invoked")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}
