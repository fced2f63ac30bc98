// Package stt provides speech-to-text for the relay's voice endpoints.
package stt

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts recorded audio to text. The audio payload is
	// opaque to the relay; the filename carries the format hint.
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcript, error)
}

// Transcript is the result of transcription.
type Transcript struct {
	Text string `json:"text"`
}
