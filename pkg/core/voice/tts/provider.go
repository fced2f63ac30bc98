// Package tts provides text-to-speech for the relay's voice endpoints.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string) (*Synthesis, error)
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio       []byte // Encoded audio data, opaque to the relay
	ContentType string // e.g. "audio/mpeg"
}
