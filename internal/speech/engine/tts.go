package engine

import (
	"context"
	"io"
)

// Voice describes an available TTS voice.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// VoiceParams selects a voice and its tuning for one synthesis call.
type VoiceParams struct {
	ID              string
	Stability       float64
	SimilarityBoost float64
}

// Synthesizer converts text into a stream of raw PCM in Format().
// The caller must close the returned reader.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice VoiceParams) (io.ReadCloser, error)
	Format() AudioFormat
	Voices() []Voice
	Models() []ModelInfo
	Close() error
}
