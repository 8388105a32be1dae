package pipeline

import (
	"context"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/events"
)

// transcribeLoop turns captured audio into transcripts. Failed and blank
// turns are dropped; the loop keeps serving the next turn.
func (p *Pipeline) transcribeLoop(ctx context.Context, in <-chan *Turn, out chan<- Transcript) error {
	defer close(out)
	for {
		turn, ok := recv(ctx, in)
		if !ok {
			return nil
		}

		text, err := p.transcribe(ctx, turn)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			turn.ticket.Done()
			p.report(ctx, newStageError(StageTranscription, ErrTranscription, turn.Number, err))
			continue
		}
		if text == "" {
			turn.ticket.Done()
			p.emit(ctx, events.TurnAbandoned, &events.TurnData{Turn: turn.Number, Reason: "empty transcript"})
			continue
		}

		p.emit(ctx, events.SpeechFinal, &events.SpeechFinalData{Turn: turn.Number, Transcript: text})
		if !send(ctx, out, Transcript{Turn: turn.Number, Text: text, ticket: turn.ticket}) {
			return nil
		}
	}
}

func (p *Pipeline) transcribe(ctx context.Context, turn *Turn) (string, error) {
	var text string
	err := p.deps.ASRBreaker.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()

		t, err := p.deps.ASR.Transcribe(callCtx, engine.Utterance{
			PCM:        engine.SamplesToBytes(turn.Samples),
			SampleRate: turn.SampleRate,
		})
		text = strings.TrimSpace(t)
		return err
	})
	return text, err
}
