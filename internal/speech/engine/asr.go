package engine

import "context"

// Utterance is a finite buffer of mono 16-bit PCM audio.
type Utterance struct {
	PCM        []byte
	SampleRate int
}

// ModelInfo describes an available model for a backend.
type ModelInfo struct {
	ID          string
	DisplayName string
	IsDefault   bool
}

// Transcriber converts one utterance into text. Short utterances may
// legitimately yield an empty string.
type Transcriber interface {
	Transcribe(ctx context.Context, u Utterance) (string, error)
	Models() []ModelInfo
	Close() error
}
