//go:build portaudio

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioAvailable reports whether the binary was built with PortAudio.
const PortAudioAvailable = true

// PortAudioDevice captures from the default microphone and plays to the
// default speaker.
type PortAudioDevice struct {
	inRate  int
	outRate int

	readMu sync.Mutex
	in     []int16
	input  *portaudio.Stream

	writeMu sync.Mutex
	out     []int16
	output  *portaudio.Stream

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenPortAudio initializes PortAudio and opens both default streams.
// framesPerBuffer is the capture block size in samples.
func OpenPortAudio(inRate, outRate, framesPerBuffer int) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	d := &PortAudioDevice{
		inRate:  inRate,
		outRate: outRate,
		in:      make([]int16, framesPerBuffer),
		out:     make([]int16, outRate/25), // 40ms
		closed:  make(chan struct{}),
	}

	var err error
	d.input, err = portaudio.OpenDefaultStream(1, 0, float64(inRate), len(d.in), d.in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	d.output, err = portaudio.OpenDefaultStream(0, 1, float64(outRate), len(d.out), d.out)
	if err != nil {
		d.input.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := d.input.Start(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	if err := d.output.Start(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}

	slog.Info("portaudio device opened",
		slog.Int("input_rate", inRate), slog.Int("output_rate", outRate),
		slog.Int("frames_per_buffer", framesPerBuffer))
	return d, nil
}

func (d *PortAudioDevice) InputRate() int  { return d.inRate }
func (d *PortAudioDevice) OutputRate() int { return d.outRate }

// ReadBlock blocks for one hardware buffer. Reads larger than the buffer
// are served in several hardware reads.
func (d *PortAudioDevice) ReadBlock(ctx context.Context, buf []int16) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	n := 0
	for n < len(buf) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		select {
		case <-d.closed:
			return n, ErrClosed
		default:
		}
		if err := d.input.Read(); err != nil {
			// Input overflow drops samples but the stream is still usable.
			if err == portaudio.InputOverflowed {
				continue
			}
			return n, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		n += copy(buf[n:], d.in)
	}
	return n, nil
}

// WriteChunk plays pcm, padding the final hardware buffer with silence.
func (d *PortAudioDevice) WriteChunk(ctx context.Context, pcm []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	for off := 0; off < len(pcm); off += len(d.out) * 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-d.closed:
			return ErrClosed
		default:
		}
		for i := range d.out {
			if j := off + i*2; j+1 < len(pcm) {
				d.out[i] = int16(binary.LittleEndian.Uint16(pcm[j:]))
			} else {
				d.out[i] = 0
			}
		}
		if err := d.output.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				continue
			}
			return fmt.Errorf("portaudio write: %w", err)
		}
	}
	return nil
}

// Close stops both streams and terminates PortAudio.
func (d *PortAudioDevice) Close() error {
	d.closeOnce.Do(func() {
		close(d.closed)
		d.readMu.Lock()
		d.input.Stop()
		d.input.Close()
		d.readMu.Unlock()
		d.writeMu.Lock()
		d.output.Stop()
		d.output.Close()
		d.writeMu.Unlock()
		portaudio.Terminate()
	})
	return nil
}
