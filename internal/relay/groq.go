package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dhvani-ai/dhvani/internal/audio"
	"github.com/dhvani-ai/dhvani/internal/history"
	"github.com/dhvani-ai/dhvani/internal/reliability"
)

// GroqSettings carries the provider knobs resolved from config.
type GroqSettings struct {
	APIKey          string
	BaseURL         string
	STTModel        string
	ChatModel       string
	SourceLanguage  string
	Temperature     float32
	MaxTokens       int
	TranscribeLimit time.Duration
	ChatLimit       time.Duration
}

// GroqProvider implements Transcriber and ChatStreamer against Groq's
// OpenAI-compatible API.
type GroqProvider struct {
	client   *openai.Client
	settings GroqSettings
}

func NewGroqProvider(settings GroqSettings) *GroqProvider {
	cfg := openai.DefaultConfig(settings.APIKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	return &GroqProvider{
		client:   openai.NewClientWithConfig(cfg),
		settings: settings,
	}
}

// Transcribe wraps the raw PCM in a WAV container and sends it for
// transcription. A retryable upstream status gets exactly one more attempt.
func (p *GroqProvider) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	wav, err := audio.EncodeWAVPCM16LE(pcm, sampleRate)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	var text string
	for attempt := 0; ; attempt++ {
		text, err = p.transcribeOnce(ctx, wav)
		if err == nil {
			return text, nil
		}
		if attempt > 0 || !isRetryableProviderError(err) {
			return "", err
		}
		select {
		case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 2*time.Second)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (p *GroqProvider) transcribeOnce(ctx context.Context, wav []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.settings.TranscribeLimit)
	defer cancel()

	resp, err := p.client.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    p.settings.STTModel,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: p.settings.SourceLanguage,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// StreamChat streams a completion for the given turns, invoking onDelta for
// every non-empty content fragment, and returns the assembled response.
// Chat failures are not retried; a stale translation is worse than none.
func (p *GroqProvider) StreamChat(ctx context.Context, turns []history.Turn, onDelta func(delta string) error) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.settings.ChatLimit)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	stream, err := p.client.CreateChatCompletionStream(callCtx, openai.ChatCompletionRequest{
		Model:       p.settings.ChatModel,
		Messages:    messages,
		Temperature: p.settings.Temperature,
		MaxTokens:   p.settings.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	defer stream.Close()

	var full bytes.Buffer
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("chat recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func isRetryableProviderError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reliability.IsRetryableHTTPStatus(reqErr.HTTPStatusCode)
	}
	return false
}
