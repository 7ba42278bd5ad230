package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhvani-ai/dhvani/internal/history"
	"github.com/dhvani-ai/dhvani/internal/protocol"
)

// MockTranscriber is a local fallback used when no speech provider is
// configured. It reports a fixed phrase sized to the audio it received.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) Transcribe(_ context.Context, pcm []byte, _ int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	return fmt.Sprintf("simulated speech of %d bytes", len(pcm)), nil
}

// MockChatStreamer echoes the last user turn back one word at a time,
// terminated with a full stop so segmentation still fires.
type MockChatStreamer struct{}

func NewMockChatStreamer() *MockChatStreamer { return &MockChatStreamer{} }

func (c *MockChatStreamer) StreamChat(_ context.Context, turns []history.Turn, onDelta func(delta string) error) (string, error) {
	var last string
	for _, turn := range turns {
		if turn.Role == protocol.RoleUser {
			last = turn.Content
		}
	}
	if strings.TrimSpace(last) == "" {
		last = "koi input nahi mila"
	}
	response := "anuvaad: " + strings.TrimRight(last, ".") + "."

	var full strings.Builder
	words := strings.Fields(response)
	for i, word := range words {
		delta := word
		if i < len(words)-1 {
			delta += " "
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

// MockSynthesizer returns the sentence bytes as fake audio.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(_ context.Context, text string) (SynthesisResult, error) {
	return SynthesisResult{Audio: []byte(text), Format: "mock_text_bytes"}, nil
}
