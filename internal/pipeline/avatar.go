package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/events"
)

// DefaultAvatarTimeout bounds one talking-head render.
const DefaultAvatarTimeout = 10 * time.Minute

// avatarRenderer animates each finished reply out of band. Renders never
// delay the voice loop.
type avatarRenderer struct {
	p       *Pipeline
	anim    engine.Animator
	image   string
	outDir  string
	timeout time.Duration
}

// render saves the reply audio as WAV and queues the animation. Safe on a
// nil renderer.
func (a *avatarRenderer) render(ctx context.Context, turn int64, pcm []byte) {
	if a == nil {
		return
	}
	format := engine.PCM16Mono(a.p.deps.Sink.OutputRate())
	wavPath := filepath.Join(a.outDir, fmt.Sprintf("%s-turn-%03d.wav", a.p.deps.SessionID, turn))

	job := func() {
		data := &events.AvatarRenderedData{Turn: turn, AudioPath: wavPath}
		start := time.Now()

		video, err := a.animate(ctx, wavPath, pcm, format)
		if err != nil {
			data.Error = err.Error()
			slog.WarnContext(ctx, "pipeline: avatar render failed",
				slog.String("session_id", a.p.deps.SessionID),
				slog.Int64("turn", turn),
				slog.String("error", err.Error()),
			)
		} else {
			data.VideoPath = video
			slog.InfoContext(ctx, "pipeline: avatar rendered",
				slog.String("session_id", a.p.deps.SessionID),
				slog.Int64("turn", turn),
				slog.String("video", video),
				slog.Duration("took", time.Since(start)),
			)
		}
		a.p.emit(ctx, events.AvatarRendered, data)
	}

	a.p.submit(ctx, "avatar", job)
}

func (a *avatarRenderer) animate(ctx context.Context, wavPath string, pcm []byte, format engine.AudioFormat) (string, error) {
	if err := codec.WriteWAVFile(wavPath, pcm, format); err != nil {
		return "", fmt.Errorf("write reply audio: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.anim.Animate(ctx, a.image, wavPath)
}
