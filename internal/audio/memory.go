package audio

import (
	"context"
	"sync"
)

// Memory is an in-process Device backed by a fixed input recording.
// Once the input is exhausted it yields silence (PadSilence), blocks until
// the context ends or the device is closed (Hold), or reports ErrClosed.
// Written audio is retained for inspection.
type Memory struct {
	Rate       int
	OutRate    int
	PadSilence bool
	Hold       bool
	// MaxRead caps samples returned per ReadBlock, for short-read behavior.
	MaxRead int
	// WriteErr, when set, is returned by every WriteChunk.
	WriteErr error

	mu      sync.Mutex
	input   []int16
	pos     int
	written [][]byte
	closed  bool
	done    chan struct{}
}

// NewMemory creates a memory device that will play back input.
func NewMemory(rate int, input []int16) *Memory {
	return &Memory{Rate: rate, OutRate: rate, input: input, done: make(chan struct{})}
}

func (m *Memory) InputRate() int  { return m.Rate }
func (m *Memory) OutputRate() int { return m.OutRate }

func (m *Memory) ReadBlock(ctx context.Context, buf []int16) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	if m.Hold && m.pos >= len(m.input) {
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-m.done:
			return 0, ErrClosed
		}
	}
	defer m.mu.Unlock()

	want := len(buf)
	if m.MaxRead > 0 && want > m.MaxRead {
		want = m.MaxRead
	}
	n := copy(buf[:want], m.input[m.pos:])
	m.pos += n
	if n == 0 {
		if !m.PadSilence {
			return 0, ErrClosed
		}
		clear(buf[:want])
		n = want
	}
	return n, nil
}

func (m *Memory) WriteChunk(ctx context.Context, pcm []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = append(m.written, append([]byte(nil), pcm...))
	return nil
}

// Written returns a copy of every chunk written so far.
func (m *Memory) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// Consumed returns the number of input samples read so far.
func (m *Memory) Consumed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		if m.done != nil {
			close(m.done)
		}
	}
	return nil
}
