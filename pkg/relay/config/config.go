package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Upstream OpenAI-compatible API shared by completion, STT, and TTS.
	OpenAIAPIKey  string
	OpenAIBaseURL string

	ChatModel string
	STTModel  string
	TTSModel  string
	TTSVoice  string

	// Greeting is the fixed first agent turn sent on connect.
	Greeting string

	// CORS / websocket origin allowlist. Empty => same-origin only.
	CORSAllowedOrigins map[string]struct{}

	// Upload limit for the transcription endpoint.
	MaxAudioBodyBytes int64

	// Live WebSocket relay.
	WSMaxMessageBytes    int64
	WSWriteTimeout       time.Duration
	WSMaxSessionDuration time.Duration

	// Completion stream policy.
	StreamIdleTimeout time.Duration
	TurnTimeout       time.Duration

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults.
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("RELAY_ADDR", ":8080"),
		OpenAIAPIKey:                  strings.TrimSpace(os.Getenv("RELAY_OPENAI_API_KEY")),
		OpenAIBaseURL:                 envOr("RELAY_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:                     envOr("RELAY_CHAT_MODEL", "gpt-4o-mini"),
		STTModel:                      envOr("RELAY_STT_MODEL", "whisper-1"),
		TTSModel:                      envOr("RELAY_TTS_MODEL", "tts-1"),
		TTSVoice:                      envOr("RELAY_TTS_VOICE", "alloy"),
		Greeting:                      envOr("RELAY_GREETING", "Hi, how can I help you today?"),
		CORSAllowedOrigins:            make(map[string]struct{}),
		MaxAudioBodyBytes:             envInt64Or("RELAY_MAX_AUDIO_BODY_BYTES", 25<<20), // whisper upload cap
		WSMaxMessageBytes:             envInt64Or("RELAY_WS_MAX_MESSAGE_BYTES", 64*1024),
		WSWriteTimeout:                envDurationOr("RELAY_WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxSessionDuration:          envDurationOr("RELAY_WS_MAX_DURATION", 2*time.Hour),
		StreamIdleTimeout:             envDurationOr("RELAY_STREAM_IDLE_TIMEOUT", 30*time.Second),
		TurnTimeout:                   envDurationOr("RELAY_TURN_TIMEOUT", 2*time.Minute),
		ReadHeaderTimeout:             envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:           envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("RELAY_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("RELAY_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("RELAY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("RELAY_OPENAI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
		return Config{}, fmt.Errorf("RELAY_OPENAI_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		return Config{}, fmt.Errorf("RELAY_CHAT_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.Greeting) == "" {
		return Config{}, fmt.Errorf("RELAY_GREETING must not be empty")
	}
	if cfg.MaxAudioBodyBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_AUDIO_BODY_BYTES must be > 0")
	}
	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("RELAY_WS_MAX_DURATION must be > 0")
	}
	if cfg.StreamIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_STREAM_IDLE_TIMEOUT must be > 0")
	}
	if cfg.TurnTimeout < 0 {
		return Config{}, fmt.Errorf("RELAY_TURN_TIMEOUT must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("RELAY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
