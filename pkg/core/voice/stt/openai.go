package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	// DefaultBaseURL is the default transcription API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the default transcription model.
	DefaultModel = "whisper-1"
)

// OpenAI implements Provider against the OpenAI audio transcription API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures the OpenAI provider.
type Option func(*OpenAI)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(p *OpenAI) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(p *OpenAI) {
		if model != "" {
			p.model = model
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

// NewOpenAI creates a transcription provider.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	p := &OpenAI{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *OpenAI) Name() string { return "openai" }

// Transcribe uploads the audio and returns the recognized text.
func (p *OpenAI) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcript, error) {
	if filename == "" {
		filename = "audio.webm"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("copy audio: %w", err)
	}
	if err := form.WriteField("model", p.model); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out Transcript
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	return &out, nil
}
