// Package audio provides the microphone and speaker devices the interview
// pipeline reads from and plays to.
package audio

import (
	"context"
	"errors"
)

// ErrClosed is returned by devices that have been closed or whose peer
// went away. Pipelines treat it as fatal.
var ErrClosed = errors.New("audio device closed")

// Source yields mono 16-bit samples at InputRate.
type Source interface {
	// ReadBlock fills buf with up to len(buf) samples and returns how many
	// were read. Short reads are allowed.
	ReadBlock(ctx context.Context, buf []int16) (int, error)
	InputRate() int
}

// Sink plays mono 16-bit little-endian PCM at OutputRate.
type Sink interface {
	WriteChunk(ctx context.Context, pcm []byte) error
	OutputRate() int
}

// Device is a full-duplex audio endpoint.
type Device interface {
	Source
	Sink
	Close() error
}
