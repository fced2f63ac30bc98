package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultBaseURL is the default speech API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default synthesis model.
	DefaultModel = "tts-1"

	// DefaultVoice is the default voice identifier.
	DefaultVoice = "alloy"
)

// OpenAI implements Provider against the OpenAI speech API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	httpClient *http.Client
}

// Option configures the OpenAI provider.
type Option func(*OpenAI)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(p *OpenAI) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithModel overrides the synthesis model.
func WithModel(model string) Option {
	return func(p *OpenAI) {
		if model != "" {
			p.model = model
		}
	}
}

// WithVoice overrides the voice identifier.
func WithVoice(voice string) Option {
	return func(p *OpenAI) {
		if voice != "" {
			p.voice = voice
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *OpenAI) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// NewOpenAI creates a speech provider.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	p := &OpenAI{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		voice:      DefaultVoice,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return "openai" }

// speechRequest is the upstream speech payload.
type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize converts text to audio.
func (p *OpenAI) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	body, err := json.Marshal(speechRequest{Model: p.model, Input: text, Voice: p.voice})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("speech returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Synthesis{Audio: audio, ContentType: contentType}, nil
}
