package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/events"
)

var errEmptyReply = errors.New("model returned an empty reply")

// Conversation is the session context read by the dialogue stage. Commit is
// called once per completed exchange, only from the dialogue task, which
// makes that task the single writer of the history.
type Conversation interface {
	Messages(transcript string) []engine.Message
	Commit(ctx context.Context, turn int64, transcript, reply string)
}

// dialogueLoop produces one reply per transcript. A transcript is not
// taken until the previous reply has been fully handed to synthesis.
func (p *Pipeline) dialogueLoop(ctx context.Context, in <-chan Transcript, out chan<- Reply, opening *Ticket) error {
	defer close(out)

	if p.opts.OpeningLine != "" {
		if !send(ctx, out, Reply{Kind: ReplyComplete, Text: p.opts.OpeningLine, ticket: opening}) {
			return nil
		}
		p.emit(ctx, events.ReplyCompleted, &events.ReplyData{Text: p.opts.OpeningLine})
	}

	for {
		tr, ok := recv(ctx, in)
		if !ok {
			return nil
		}
		if p.opts.Streaming {
			p.streamReply(ctx, tr, out)
		} else {
			p.completeReply(ctx, tr, out)
		}
	}
}

func (p *Pipeline) request(tr Transcript) engine.ChatRequest {
	return engine.ChatRequest{
		Model:       p.opts.Model,
		Messages:    p.deps.Conversation.Messages(tr.Text),
		Temperature: p.opts.Temperature,
	}
}

func (p *Pipeline) completeReply(ctx context.Context, tr Transcript, out chan<- Reply) {
	req := p.request(tr)

	var reply string
	err := p.deps.LLMBreaker.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()

		r, err := p.deps.LLM.Complete(callCtx, req)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(r)
		if reply == "" {
			return errEmptyReply
		}
		return nil
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		tr.ticket.Done()
		p.report(ctx, newStageError(StageDialogue, ErrDialogue, tr.Turn, err))
		return
	}

	if !send(ctx, out, Reply{Kind: ReplyComplete, Turn: tr.Turn, Text: reply, ticket: tr.ticket}) {
		return
	}
	p.emit(ctx, events.ReplyCompleted, &events.ReplyData{Turn: tr.Turn, Text: reply})
	p.deps.Conversation.Commit(ctx, tr.Turn, tr.Text, reply)
}

// streamReply forwards each fragment as soon as it arrives and closes the
// reply with ReplyEnd. A stream that fails after fragments were forwarded is
// closed with an aborted ReplyEnd so synthesis drops the unspoken tail.
func (p *Pipeline) streamReply(ctx context.Context, tr Transcript, out chan<- Reply) {
	req := p.request(tr)

	var full strings.Builder
	forwarded := false
	err := p.deps.LLMBreaker.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := p.callContext(ctx)
		defer cancel()

		return p.deps.LLM.Stream(callCtx, req, func(fragment string) error {
			if fragment == "" {
				return nil
			}
			if !send(ctx, out, Reply{Kind: ReplyFragment, Turn: tr.Turn, Text: fragment, ticket: tr.ticket}) {
				return ctx.Err()
			}
			forwarded = true
			full.WriteString(fragment)
			p.emit(ctx, events.ReplyFragment, &events.ReplyData{Turn: tr.Turn, Text: fragment})
			return nil
		})
	})
	if ctx.Err() != nil {
		return
	}
	if err == nil && strings.TrimSpace(full.String()) == "" {
		err = errEmptyReply
	}
	if err != nil {
		p.report(ctx, newStageError(StageDialogue, ErrDialogue, tr.Turn, err))
		if forwarded {
			send(ctx, out, Reply{Kind: ReplyEnd, Turn: tr.Turn, Aborted: true, ticket: tr.ticket})
		} else {
			tr.ticket.Done()
		}
		return
	}

	if !send(ctx, out, Reply{Kind: ReplyEnd, Turn: tr.Turn, ticket: tr.ticket}) {
		return
	}
	reply := strings.TrimSpace(full.String())
	p.emit(ctx, events.ReplyCompleted, &events.ReplyData{Turn: tr.Turn, Text: reply})
	p.deps.Conversation.Commit(ctx, tr.Turn, tr.Text, reply)
}
