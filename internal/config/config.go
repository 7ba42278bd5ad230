package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSystemPrompt keeps the assistant terse so sentence audio starts early.
const DefaultSystemPrompt = "You are Dhvani. Translate English to Hindi. Be concise (1-2 sentences max). Use clear Hindi only."

// Config contains all runtime settings for the translation relay service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	GroqAPIKey    string
	GroqBaseURL   string
	GroqSTTModel  string
	GroqChatModel string

	SystemPrompt    string
	SourceLanguage  string
	ChatTemperature float64
	ChatMaxTokens   int
	HistoryCap      int

	SampleRate      int
	FlushFloorBytes int
	MaxBufferBytes  int

	TranscribeTimeout time.Duration
	ChatTimeout       time.Duration
	SynthesisTimeout  time.Duration

	SynthProvider string
	EdgeWSBaseURL string
	EdgeVoice     string
	EdgeRate      string
	EdgeVolume    string
	EdgeOutputFmt string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "dhvani"),
		AllowAnyOrigin:   false,

		GroqAPIKey:  trimmedEnv("GROQ_API_KEY"),
		GroqBaseURL: envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		// Whisper for transcription, an instant-tier model for translation.
		GroqSTTModel:  envOrDefault("GROQ_STT_MODEL", "whisper-large-v3"),
		GroqChatModel: envOrDefault("GROQ_CHAT_MODEL", "llama-3.1-8b-instant"),

		SystemPrompt:    envOrDefault("APP_SYSTEM_PROMPT", DefaultSystemPrompt),
		SourceLanguage:  envOrDefault("APP_SOURCE_LANGUAGE", "en"),
		ChatTemperature: 0.3,
		ChatMaxTokens:   100,
		HistoryCap:      10,

		// 16 kHz PCM16 mono; below 1600 bytes (50 ms) a flush cannot hold speech.
		SampleRate:      16000,
		FlushFloorBytes: 1600,
		MaxBufferBytes:  10 << 20,

		TranscribeTimeout: 15 * time.Second,
		ChatTimeout:       30 * time.Second,
		SynthesisTimeout:  12 * time.Second,

		SynthProvider: envOrDefault("SYNTH_PROVIDER", "auto"),
		EdgeWSBaseURL: envOrDefault("EDGE_TTS_WS_BASE_URL", "wss://speech.platform.bing.com"),
		// Hindi neural voice matching the default translation direction.
		EdgeVoice:     envOrDefault("EDGE_TTS_VOICE", "hi-IN-SwaraNeural"),
		EdgeRate:      envOrDefault("EDGE_TTS_RATE", "+0%"),
		EdgeVolume:    envOrDefault("EDGE_TTS_VOLUME", "+0%"),
		EdgeOutputFmt: envOrDefault("EDGE_TTS_OUTPUT_FORMAT", "audio-24khz-48kbitrate-mono-mp3"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TranscribeTimeout, err = durationFromEnv("APP_TRANSCRIBE_TIMEOUT", cfg.TranscribeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTimeout, err = durationFromEnv("APP_CHAT_TIMEOUT", cfg.ChatTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisTimeout, err = durationFromEnv("APP_SYNTHESIS_TIMEOUT", cfg.SynthesisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTemperature, err = floatFromEnv("APP_CHAT_TEMPERATURE", cfg.ChatTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatMaxTokens, err = intFromEnv("APP_CHAT_MAX_TOKENS", cfg.ChatMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryCap, err = intFromEnv("APP_HISTORY_CAP", cfg.HistoryCap)
	if err != nil {
		return Config{}, err
	}
	cfg.SampleRate, err = intFromEnv("APP_SAMPLE_RATE", cfg.SampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FlushFloorBytes, err = intFromEnv("APP_FLUSH_FLOOR_BYTES", cfg.FlushFloorBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBufferBytes, err = intFromEnv("APP_MAX_BUFFER_BYTES", cfg.MaxBufferBytes)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ChatTemperature < 0 || cfg.ChatTemperature > 2 {
		return Config{}, fmt.Errorf("APP_CHAT_TEMPERATURE must be in [0, 2]")
	}
	if cfg.ChatMaxTokens <= 0 {
		return Config{}, fmt.Errorf("APP_CHAT_MAX_TOKENS must be positive")
	}
	if cfg.HistoryCap < 2 {
		return Config{}, fmt.Errorf("APP_HISTORY_CAP must be at least 2 (system turn plus one exchange)")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("APP_SAMPLE_RATE must be positive")
	}
	if cfg.FlushFloorBytes <= 0 {
		return Config{}, fmt.Errorf("APP_FLUSH_FLOOR_BYTES must be positive")
	}
	if cfg.MaxBufferBytes <= cfg.FlushFloorBytes {
		return Config{}, fmt.Errorf("APP_MAX_BUFFER_BYTES must exceed APP_FLUSH_FLOOR_BYTES")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SynthProvider)) {
	case "auto", "edge", "mock":
	default:
		return Config{}, fmt.Errorf("invalid SYNTH_PROVIDER: %q (expected auto|edge|mock)", cfg.SynthProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
