package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dhvani-ai/dhvani/internal/audio"
	"github.com/dhvani-ai/dhvani/internal/history"
	"github.com/dhvani-ai/dhvani/internal/observability"
	"github.com/dhvani-ai/dhvani/internal/protocol"
	"github.com/dhvani-ai/dhvani/internal/session"
)

// Settings are the per-connection knobs the orchestrator needs.
type Settings struct {
	SystemPrompt    string
	HistoryCap      int
	SampleRate      int
	FlushFloorBytes int
	MaxBufferBytes  int
}

// Orchestrator drives one translation connection: it accumulates inbound
// audio, runs the transcribe/translate/synthesize cycle on each process
// directive, and emits transcript and audio messages in order.
type Orchestrator struct {
	sessions    *session.Manager
	transcriber Transcriber
	chat        ChatStreamer
	synth       Synthesizer
	metrics     *observability.Metrics
	errs        ErrorSink
	settings    Settings
}

func NewOrchestrator(
	sessions *session.Manager,
	transcriber Transcriber,
	chat ChatStreamer,
	synth Synthesizer,
	metrics *observability.Metrics,
	errs ErrorSink,
	settings Settings,
) *Orchestrator {
	if settings.SampleRate <= 0 {
		settings.SampleRate = 16000
	}
	return &Orchestrator{
		sessions:    sessions,
		transcriber: transcriber,
		chat:        chat,
		synth:       synth,
		metrics:     metrics,
		errs:        errs,
		settings:    settings,
	}
}

// RunConnection consumes inbound frames and directives until the context is
// canceled or inbound closes. Outbound messages are produced in cycle order;
// the caller owns the websocket write side.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	acc := audio.NewAccumulator(o.settings.FlushFloorBytes, o.settings.MaxBufferBytes)
	defer acc.Reset()
	turns := history.New(o.settings.SystemPrompt, o.settings.HistoryCap)

	var (
		processing bool
		cycleDone  = make(chan struct{}, 1)
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cycleDone:
			processing = false
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case protocol.AudioFrame:
				if !acc.Append(m.PCM) {
					o.metrics.SessionEvents.WithLabelValues("buffer_overflow").Inc()
					log.Printf("session=%s dropping audio frame, buffer at cap (%d bytes)", s.ID, acc.Len())
				}
				_ = o.sessions.Touch(s.ID)
			case protocol.ClientControl:
				if m.Type != protocol.TypeProcess {
					continue
				}
				_ = o.sessions.Touch(s.ID)
				if processing {
					o.metrics.SessionEvents.WithLabelValues("process_rejected_busy").Inc()
					log.Printf("session=%s process directive rejected, cycle in flight", s.ID)
					continue
				}
				pcm, ok := acc.Flush()
				if !ok {
					o.metrics.SessionEvents.WithLabelValues("flush_below_floor").Inc()
					continue
				}
				processing = true
				go func() {
					defer func() { cycleDone <- struct{}{} }()
					o.runCycle(ctx, s, turns, pcm, outbound)
				}()
			}
		}
	}
}

// runCycle executes one transcribe/translate/synthesize pass. History is
// committed only once the full response has been assembled, so a failed cycle
// leaves the conversation state untouched.
func (o *Orchestrator) runCycle(ctx context.Context, s *session.Session, turns *history.Log, pcm []byte, outbound chan<- any) {
	cycleStart := time.Now()
	cycleID := uuid.NewString()
	log.Printf("session=%s cycle=%s processing %d bytes", s.ID, cycleID, len(pcm))

	text, err := o.transcriber.Transcribe(ctx, pcm, o.settings.SampleRate)
	if err != nil {
		o.errs.Report(s.ID, "transcription", err)
		return
	}
	o.metrics.ObserveStage("transcription", time.Since(cycleStart))

	if IsNoise(text) {
		o.metrics.SessionEvents.WithLabelValues("noise_filtered").Inc()
		return
	}

	if !o.send(ctx, outbound, protocol.Transcript{
		Type: protocol.TypeTranscript,
		Role: protocol.RoleUser,
		Text: text,
	}) {
		return
	}

	prompt := append(turns.Turns(), history.Turn{Role: protocol.RoleUser, Content: text})
	final, ok := o.streamAssistant(ctx, s, prompt, outbound, cycleStart)
	if !ok {
		return
	}

	if !o.send(ctx, outbound, protocol.TranscriptFinal{
		Type:      protocol.TypeTranscript,
		Role:      protocol.RoleAssistant,
		Text:      final,
		IsPartial: false,
	}) {
		return
	}
	turns.Append(protocol.RoleUser, text)
	turns.Append(protocol.RoleAssistant, final)
	turns.Truncate()

	_ = o.sessions.RecordCycle(s.ID)
	o.metrics.SessionEvents.WithLabelValues("cycle_completed").Inc()
	o.metrics.ObserveStage("cycle", time.Since(cycleStart))
	cycles := 1
	if snap, err := o.sessions.Get(s.ID); err == nil {
		cycles = snap.Cycles
	}
	log.Printf("session=%s cycle=%s completed in %s (cycle %d)", s.ID, cycleID, time.Since(cycleStart).Round(time.Millisecond), cycles)
}

// streamAssistant runs the chat stream, forwarding cumulative partials and
// synthesizing each completed sentence as it closes. Returns the full
// response text, or ok=false when the cycle must abort.
func (o *Orchestrator) streamAssistant(ctx context.Context, s *session.Session, prompt []history.Turn, outbound chan<- any, cycleStart time.Time) (string, bool) {
	var (
		carry      string
		cumulative string
		firstAudio = true
		chatStart  = time.Now()
		sendFailed bool
	)

	dispatch := func(sentence string, minRunes int) {
		text, ok := speakable(sentence, minRunes)
		if !ok {
			return
		}
		synthStart := time.Now()
		result, err := o.synth.Synthesize(ctx, text)
		if err != nil {
			o.errs.Report(s.ID, "synthesis", err)
			return
		}
		o.metrics.ObserveStage("synthesis", time.Since(synthStart))
		if firstAudio {
			firstAudio = false
			o.metrics.ObserveFirstAudioLatency(time.Since(cycleStart))
		}
		if !o.send(ctx, outbound, protocol.Audio{
			Type:   protocol.TypeAudio,
			Format: result.Format,
			Data:   EncodeAudioBase64(result.Audio),
		}) {
			sendFailed = true
		}
	}

	final, err := o.chat.StreamChat(ctx, prompt, func(delta string) error {
		cumulative += delta
		if !o.send(ctx, outbound, protocol.TranscriptPartial{
			Type: protocol.TypeTranscriptPartial,
			Role: protocol.RoleAssistant,
			Text: cumulative,
		}) {
			return ctx.Err()
		}
		var completed []string
		completed, carry = SegmentSentences(carry, delta)
		for _, sentence := range completed {
			if sendFailed {
				return ctx.Err()
			}
			dispatch(sentence, minSynthesisRunes)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.errs.Report(s.ID, "chat", err)
		}
		return "", false
	}
	o.metrics.ObserveStage("chat", time.Since(chatStart))

	if !sendFailed {
		dispatch(carry, minResidualRunes)
	}
	if sendFailed {
		return "", false
	}
	return final, true
}

// send blocks until the writer drains or the connection dies.
func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) bool {
	select {
	case outbound <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
