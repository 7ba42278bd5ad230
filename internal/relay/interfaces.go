package relay

import (
	"context"

	"github.com/dhvani-ai/dhvani/internal/history"
)

// Transcriber converts one finite utterance of raw PCM16LE mono audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// ChatStreamer drives a chat completion stream over the conversation history.
// onDelta is invoked for every incremental text fragment in arrival order; a
// non-nil return aborts the stream. The complete response text is returned
// once the stream ends.
type ChatStreamer interface {
	StreamChat(ctx context.Context, turns []history.Turn, onDelta func(delta string) error) (string, error)
}

// SynthesisResult is one fully rendered audio unit for a sentence.
type SynthesisResult struct {
	Audio  []byte
	Format string
}

// Synthesizer renders one sentence of text to speech. Implementations must
// return the complete audio payload; the client never receives partial frames.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (SynthesisResult, error)
}

// ErrorSink receives upstream failures that are deliberately not surfaced to
// the client. A stricter deployment can swap in a sink that also emits a
// client-visible error message without touching the pipeline.
type ErrorSink interface {
	Report(sessionID, stage string, err error)
}
