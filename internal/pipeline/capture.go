package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// DefaultNoSpeechTimeout abandons a turn when nobody speaks for this long.
const DefaultNoSpeechTimeout = 10 * time.Second

// CaptureConfig controls turn detection.
type CaptureConfig struct {
	BlockSize        int // samples per detector step
	SilenceThreshold float64
	Metric           engine.Metric
	SilenceDuration  time.Duration // trailing window that must be quiet to end a turn
	MaxRecord        time.Duration
	NoSpeechTimeout  time.Duration
}

// Recorder reads blocks from a source and cuts them into turns.
// It is owned by a single capture task.
type Recorder struct {
	src      audio.Source
	cfg      CaptureConfig
	detector engine.Detector
	turns    int64
}

// NewRecorder creates a recorder over src.
func NewRecorder(src audio.Source, cfg CaptureConfig) *Recorder {
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = DefaultNoSpeechTimeout
	}
	return &Recorder{
		src:      src,
		cfg:      cfg,
		detector: engine.Detector{Threshold: cfg.SilenceThreshold, Metric: cfg.Metric},
	}
}

// RecordTurn blocks until one turn has been captured.
//
// Onset is the first block after which the trailing window is above the
// threshold. Every block from onset on is buffered. The turn ends when the
// trailing window falls back below the threshold, or at MaxRecord. Without
// onset within NoSpeechTimeout it returns ErrNoSpeech. Durations count
// audio consumed, not wall time.
func (r *Recorder) RecordTurn(ctx context.Context) (*Turn, error) {
	rate := r.src.InputRate()
	if rate <= 0 {
		return nil, newStageError(StageCapture, ErrDevice, r.turns+1, fmt.Errorf("invalid input rate %d", rate))
	}
	blockSize := r.cfg.BlockSize
	if blockSize <= 0 {
		blockSize = rate / 10
	}
	windowLen := int(r.cfg.SilenceDuration.Seconds() * float64(rate))
	if windowLen < blockSize {
		windowLen = blockSize
	}
	maxRecord := samplesFor(r.cfg.MaxRecord, rate)
	noSpeech := samplesFor(r.cfg.NoSpeechTimeout, rate)

	window := newRing(windowLen)
	block := make([]int16, blockSize)
	filled := 0

	var (
		consumed int64
		onset    int64
		heard    bool
		buf      []int16
	)

	for {
		// Short reads are assembled into a full block before detection.
		n, err := r.src.ReadBlock(ctx, block[filled:])
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, newStageError(StageCapture, ErrDevice, r.turns+1, err)
		}
		filled += n
		if filled < blockSize {
			continue
		}
		filled = 0

		window.push(block)
		consumed += int64(blockSize)
		speech := r.detector.IsSpeech(window.samples())

		if !heard && speech {
			heard = true
			onset = consumed - int64(blockSize)
		}
		if !heard {
			if consumed >= noSpeech {
				return nil, ErrNoSpeech
			}
			continue
		}

		buf = append(buf, block...)

		reason := ""
		switch {
		case !speech:
			reason = EndSilence
		case maxRecord > 0 && consumed >= maxRecord:
			reason = EndMaxRecord
		}
		if reason == "" {
			continue
		}

		r.turns++
		return &Turn{
			Number:     r.turns,
			Samples:    buf,
			SampleRate: rate,
			Onset:      time.Duration(onset) * time.Second / time.Duration(rate),
			EndReason:  reason,
		}, nil
	}
}

func samplesFor(d time.Duration, rate int) int64 {
	return int64(d.Seconds() * float64(rate))
}

// ring is a fixed-length trailing window of samples, zero-initialized.
// Sample order is irrelevant to the detector so it is never unrolled.
type ring struct {
	buf []int16
	pos int
}

func newRing(n int) *ring {
	return &ring{buf: make([]int16, n)}
}

func (r *ring) push(samples []int16) {
	for len(samples) > 0 {
		n := copy(r.buf[r.pos:], samples)
		samples = samples[n:]
		r.pos = (r.pos + n) % len(r.buf)
	}
}

func (r *ring) samples() []int16 {
	return r.buf
}
