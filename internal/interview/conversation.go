package interview

import (
	"context"
	"log/slog"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/hooks"
)

// conversation binds a session to the pipeline's dialogue stage.
type conversation struct {
	m       *Manager
	session *Session
}

func (c *conversation) Messages(transcript string) []engine.Message {
	return c.m.prompter.Messages(c.session, transcript)
}

// Commit records the exchange, then persists it and notifies on_exchange
// hooks off the dialogue task.
func (c *conversation) Commit(ctx context.Context, turn int64, transcript, reply string) {
	ex, answered := c.session.Answer(turn, transcript, reply)
	p := c.session.Profile
	if p.MaxQuestions > 0 && answered >= p.MaxQuestions {
		c.session.MarkClosing(turn)
	}

	ctx = context.WithoutCancel(ctx)
	if store := c.m.deps.Store; store != nil {
		c.m.submit(ctx, func() {
			if err := store.SaveExchange(ctx, c.session.ID, p.Name, ex); err != nil {
				slog.WarnContext(ctx, "persist exchange failed",
					slog.String("session_id", c.session.ID),
					slog.Int64("turn", turn),
					slog.String("error", err.Error()))
			}
		})
	}

	if c.m.deps.Hooks == nil {
		return
	}
	for _, cfg := range p.Hooks.OnExchange {
		c.m.submit(ctx, func() {
			resp, err := c.m.deps.Hooks.Execute(ctx, cfg, hooks.HookRequest{
				SessionID:  c.session.ID,
				Event:      hooks.EventExchange,
				Turn:       turn,
				Variables:  c.session.CopyVariables(),
				Transcript: transcript,
				Reply:      reply,
			})
			if err != nil {
				slog.WarnContext(ctx, "exchange hook failed",
					slog.String("session_id", c.session.ID),
					slog.String("url", cfg.URL),
					slog.String("error", err.Error()))
				return
			}
			for k, v := range resp.Variables {
				c.session.SetVariable(k, v)
			}
		})
	}
}
