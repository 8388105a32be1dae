package pipeline

import (
	"context"
	"errors"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/pkg/events"
)

// playbackLoop writes chunks to the sink in arrival order. After a write
// failure the rest of that reply is discarded; a closed sink ends the
// session.
func (p *Pipeline) playbackLoop(ctx context.Context, in <-chan AudioChunk) error {
	failedTurn := int64(-1)
	played := 0

	for {
		c, ok := recv(ctx, in)
		if !ok {
			return nil
		}

		if c.End {
			c.ticket.Done()
			if failedTurn != c.Turn {
				p.emit(ctx, events.PlaybackCompleted, &events.PlaybackData{Turn: c.Turn, Bytes: played})
			}
			failedTurn = -1
			played = 0
			continue
		}
		if c.Turn == failedTurn {
			continue
		}

		if err := p.deps.Sink.WriteChunk(ctx, c.Data); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, audio.ErrClosed) {
				c.ticket.Done()
				se := newStageError(StagePlayback, ErrDevice, c.Turn, err)
				p.report(ctx, se)
				return se
			}
			p.report(ctx, newStageError(StagePlayback, ErrPlayback, c.Turn, err))
			failedTurn = c.Turn
			continue
		}
		played += len(c.Data)
	}
}
