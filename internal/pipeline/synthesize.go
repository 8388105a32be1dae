package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/pkg/events"
)

// DefaultChunkSize is the AudioChunk size in bytes: 100ms of 16-bit audio
// at 24kHz.
const DefaultChunkSize = 4800

// synthesisLoop speaks replies sentence by sentence. Streamed fragments are
// buffered until a sentence boundary or the end marker.
func (p *Pipeline) synthesisLoop(ctx context.Context, in <-chan Reply, out chan<- AudioChunk) error {
	defer close(out)

	var pending strings.Builder
	var replyAudio []byte

	speakAll := func(r Reply, sentences []string) bool {
		for _, s := range sentences {
			pcm, ok := p.speak(ctx, r, s, out)
			if !ok {
				return false
			}
			if p.avatar != nil {
				replyAudio = append(replyAudio, pcm...)
			}
		}
		return true
	}
	finish := func(r Reply) bool {
		if !send(ctx, out, AudioChunk{Turn: r.Turn, End: true, ticket: r.ticket}) {
			return false
		}
		if len(replyAudio) > 0 {
			p.avatar.render(ctx, r.Turn, replyAudio)
		}
		replyAudio = nil
		return true
	}

	for {
		r, ok := recv(ctx, in)
		if !ok {
			return nil
		}

		switch r.Kind {
		case ReplyComplete:
			if !speakAll(r, sentencesOf(r.Text)) || !finish(r) {
				return nil
			}

		case ReplyFragment:
			pending.WriteString(r.Text)
			sentences, rest := splitSentences(pending.String())
			pending.Reset()
			pending.WriteString(rest)
			if !speakAll(r, sentences) {
				return nil
			}

		case ReplyEnd:
			tail := pending.String()
			pending.Reset()
			if !r.Aborted && !speakAll(r, sentencesOf(tail)) {
				return nil
			}
			if !finish(r) {
				return nil
			}
		}
	}
}

// speak synthesizes one sentence and forwards its audio. It returns the
// audio sent, at the sink rate, and false only when ctx was cancelled. A
// failed sentence is reported and dropped.
func (p *Pipeline) speak(ctx context.Context, r Reply, text string, out chan<- AudioChunk) ([]byte, bool) {
	p.emit(ctx, events.TTSStarted, &events.TTSEventData{Turn: r.Turn, Text: text, Voice: p.opts.Voice.ID})

	var sent []byte
	err := p.deps.TTSBreaker.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()

		stream, err := p.deps.TTS.Synthesize(callCtx, text, p.opts.Voice)
		if err != nil {
			return err
		}
		defer stream.Close()

		return p.forwardAudio(ctx, stream, r, out, func(pcm []byte) {
			if p.avatar != nil {
				sent = append(sent, pcm...)
			}
		})
	})
	if ctx.Err() != nil {
		return nil, false
	}
	if err != nil {
		p.report(ctx, newStageError(StageSynthesis, ErrSynthesis, r.Turn, err))
		return nil, true
	}

	p.emit(ctx, events.TTSCompleted, &events.TTSEventData{Turn: r.Turn, Text: text, Voice: p.opts.Voice.ID, Bytes: len(sent)})
	return sent, true
}

// forwardAudio cuts the synthesizer stream into chunks at the sink rate.
func (p *Pipeline) forwardAudio(ctx context.Context, stream io.Reader, r Reply, out chan<- AudioChunk, onSent func([]byte)) error {
	fromRate := p.deps.TTS.Format().SampleRate
	toRate := p.deps.Sink.OutputRate()

	buf := make([]byte, p.chunkSize())
	carry := 0 // odd trailing byte from the previous read
	for {
		n, err := io.ReadFull(stream, buf[carry:])
		n += carry
		carry = 0
		if n > 0 {
			even := n &^ 1
			chunk := make([]byte, even)
			copy(chunk, buf[:even])
			if even < n {
				buf[0] = buf[even]
				carry = 1
			}
			chunk = codec.Resample(chunk, fromRate, toRate)
			if len(chunk) > 0 {
				if !send(ctx, out, AudioChunk{Turn: r.Turn, Data: chunk, ticket: r.ticket}) {
					return ctx.Err()
				}
				onSent(chunk)
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (p *Pipeline) chunkSize() int {
	if p.opts.ChunkSize > 1 {
		return p.opts.ChunkSize &^ 1
	}
	return DefaultChunkSize
}
