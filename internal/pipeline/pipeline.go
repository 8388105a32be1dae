// Package pipeline runs the turn-taking voice loop of one interview:
// capture, transcription, dialogue, synthesis and playback, each as its own
// task connected by bounded FIFO queues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/breaker"
	"github.com/voicetyped/interviewer/pkg/events"
)

// Options are the tunables of one pipeline run.
type Options struct {
	Capture CaptureConfig

	// Streaming selects fragment-by-fragment replies instead of one
	// completion per turn.
	Streaming   bool
	Model       string
	Temperature float32
	Voice       engine.VoiceParams

	ChunkSize     int // bytes per AudioChunk
	QueueCapacity int
	CallTimeout   time.Duration // bounds each external model call

	// OverlapTurns lets capture record turn N+1 while reply N is still
	// playing. Off by default so the microphone never hears the avatar.
	OverlapTurns bool

	// OpeningLine is spoken before the first turn is captured.
	OpeningLine string

	AvatarImage   string
	OutputDir     string
	AvatarTimeout time.Duration
}

// Deps are the collaborators of one pipeline run. Animator, Publisher,
// Pool and the breakers are optional.
type Deps struct {
	SessionID string

	Source audio.Source
	Sink   audio.Sink

	ASR      engine.Transcriber
	LLM      engine.ChatModel
	TTS      engine.Synthesizer
	Animator engine.Animator

	Conversation Conversation
	Publisher    *events.Publisher
	Pool         workerpool.WorkerPool

	ASRBreaker *breaker.Breaker
	LLMBreaker *breaker.Breaker
	TTSBreaker *breaker.Breaker
}

// Pipeline is one interview's voice loop.
type Pipeline struct {
	opts   Options
	deps   Deps
	rec    *Recorder
	avatar *avatarRenderer
}

// New validates the dependencies and builds a pipeline.
func New(opts Options, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("pipeline: audio source is required")
	case deps.Sink == nil:
		return nil, errors.New("pipeline: audio sink is required")
	case deps.ASR == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case deps.LLM == nil:
		return nil, errors.New("pipeline: chat model is required")
	case deps.TTS == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case deps.Conversation == nil:
		return nil, errors.New("pipeline: conversation is required")
	}

	p := &Pipeline{
		opts: opts,
		deps: deps,
		rec:  NewRecorder(deps.Source, opts.Capture),
	}

	if deps.Animator != nil {
		if opts.AvatarImage == "" {
			return nil, errors.New("pipeline: avatar image is required when an animator is set")
		}
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("pipeline: output dir: %w", err)
		}
		timeout := opts.AvatarTimeout
		if timeout <= 0 {
			timeout = DefaultAvatarTimeout
		}
		p.avatar = &avatarRenderer{
			p:       p,
			anim:    deps.Animator,
			image:   opts.AvatarImage,
			outDir:  opts.OutputDir,
			timeout: timeout,
		}
	}
	return p, nil
}

// Run drives the loop until ctx is cancelled or a device fails. Cancelling
// ctx is a clean stop and returns nil; in-flight model calls are
// interrupted and no stage pushes further work. A device failure stops
// every stage and is returned as a *StageError matching ErrDevice.
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	capacity := p.opts.QueueCapacity
	if capacity <= 0 {
		capacity = 1
	}
	turns := make(chan *Turn, capacity)
	transcripts := make(chan Transcript, capacity)
	replies := make(chan Reply, capacity)
	chunks := make(chan AudioChunk, capacity)

	var opening *Ticket
	if p.opts.OpeningLine != "" {
		opening = newTicket()
	}

	stages := []struct {
		stage Stage
		run   func() error
	}{
		{StageCapture, func() error { return p.captureLoop(ctx, turns, opening) }},
		{StageTranscription, func() error { return p.transcribeLoop(ctx, turns, transcripts) }},
		{StageDialogue, func() error { return p.dialogueLoop(ctx, transcripts, replies, opening) }},
		{StageSynthesis, func() error { return p.synthesisLoop(ctx, replies, chunks) }},
		{StagePlayback, func() error { return p.playbackLoop(ctx, chunks) }},
	}

	var wg sync.WaitGroup
	var once sync.Once
	var fatal error

	for _, s := range stages {
		wg.Add(1)
		p.submit(ctx, string(s.stage), func() {
			defer wg.Done()
			if err := s.run(); err != nil {
				once.Do(func() { fatal = err })
				cancel()
			}
		})
	}

	slog.InfoContext(ctx, "pipeline: started",
		slog.String("session_id", p.deps.SessionID),
		slog.Bool("streaming", p.opts.Streaming),
		slog.Bool("overlap_turns", p.opts.OverlapTurns),
	)

	wg.Wait()

	slog.InfoContext(ctx, "pipeline: stopped", slog.String("session_id", p.deps.SessionID))
	return fatal
}

// captureLoop records turns back to back. Unless turns may overlap, it
// waits for the previous turn to finish before listening again.
func (p *Pipeline) captureLoop(ctx context.Context, out chan<- *Turn, prev *Ticket) error {
	defer close(out)
	for {
		if !p.opts.OverlapTurns {
			select {
			case <-ctx.Done():
				return nil
			case <-prev.Wait():
			}
		}

		turn, err := p.rec.RecordTurn(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrNoSpeech) {
			slog.DebugContext(ctx, "pipeline: no speech, listening again", slog.String("session_id", p.deps.SessionID))
			p.emit(ctx, events.TurnAbandoned, &events.TurnData{Reason: "no speech"})
			continue
		}
		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				se = newStageError(StageCapture, ErrDevice, 0, err)
			}
			p.report(ctx, se)
			return se
		}

		turn.ticket = newTicket()
		prev = turn.ticket
		p.emit(ctx, events.TurnCaptured, &events.TurnData{
			Turn:       turn.Number,
			DurationMs: turn.Duration().Milliseconds(),
			EndReason:  turn.EndReason,
		})
		if !send(ctx, out, turn) {
			return nil
		}
	}
}

// submit runs fn on the worker pool, falling back to a goroutine.
func (p *Pipeline) submit(ctx context.Context, name string, fn func()) {
	if p.deps.Pool != nil {
		err := p.deps.Pool.Submit(ctx, fn)
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "pipeline: worker pool submit failed, using goroutine",
			slog.String("task", name), slog.String("error", err.Error()))
	}
	go fn()
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) emit(ctx context.Context, t events.EventType, data any) {
	if err := p.deps.Publisher.Emit(ctx, t, p.deps.SessionID, data); err != nil {
		slog.WarnContext(ctx, "pipeline: emit event failed",
			slog.String("event_type", string(t)), slog.String("error", err.Error()))
	}
}

// report logs a stage failure and tells the candidate which step failed.
func (p *Pipeline) report(ctx context.Context, se *StageError) {
	level := slog.LevelWarn
	if se.Fatal() {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "pipeline: stage failed",
		slog.String("session_id", p.deps.SessionID),
		slog.String("stage", string(se.Stage)),
		slog.Int64("turn", se.Turn),
		slog.String("error", se.Err.Error()),
	)
	// The run ctx may already be cancelled by the failure itself.
	p.emit(context.WithoutCancel(ctx), events.StageFailed, &events.StageFailedData{
		Stage:   string(se.Stage),
		Turn:    se.Turn,
		Message: se.UserMessage(),
		Error:   se.Err.Error(),
	})
}

// send pushes v unless ctx is done. It never pushes after cancellation
// has been observed.
func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

func recv[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var zero T
	if ctx.Err() != nil {
		return zero, false
	}
	select {
	case <-ctx.Done():
		return zero, false
	case v, ok := <-ch:
		return v, ok
	}
}
