package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rs/xid"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/interview"
	"github.com/voicetyped/interviewer/pkg/events"
)

const streamBuffer = 256

// Events handles GET /api/v1/interviews/{id}/events as a server-sent
// event stream. The stream ends when the interview stops.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := h.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "interview not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	pub := h.manager.Publisher()
	subID := "sse-" + xid.New().String()
	ch := pub.Subscribe(subID, id, streamBuffer)
	defer pub.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if !sess.Active() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, env); err != nil {
				return
			}
			flusher.Flush()
			if env.Type == events.InterviewStopped {
				return
			}
		}
	}
}

func writeSSE(w io.Writer, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Type, data)
	return err
}

// Audio handles GET /api/v1/interviews/audio. The browser streams its
// microphone as binary frames (pcm16 at ?rate=, or opus) and receives the
// interviewer's voice as pcm16 binary frames plus JSON control messages.
func (h *Handler) Audio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profileName := q.Get("profile")
	if _, err := h.manager.Profile(profileName); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	encoding := q.Get("encoding")
	if encoding == "" {
		encoding = audio.EncodingPCM
	}
	if encoding != audio.EncodingPCM && encoding != audio.EncodingOpus {
		writeError(w, http.StatusBadRequest, "encoding must be pcm16 or opus")
		return
	}
	inRate := h.cfg.InputRate
	if s := q.Get("rate"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 8000 || n > 48000 {
			writeError(w, http.StatusBadRequest, "rate must be between 8000 and 48000")
			return
		}
		inRate = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	dev := audio.NewWebSocketDevice(conn, encoding, inRate, h.cfg.OutputRate)
	ctx := context.WithoutCancel(r.Context())

	// Subscribe before starting so the opening turn's events are not missed.
	pub := h.manager.Publisher()
	subID := "ws-" + xid.New().String()
	ch := pub.Subscribe(subID, "", streamBuffer)
	defer pub.Unsubscribe(subID)

	sess, err := h.manager.Start(ctx, interview.StartRequest{
		Profile:       profileName,
		ResumeSummary: q.Get("resume_summary"),
		JDSummary:     q.Get("jd_summary"),
		Device:        dev,
		DeviceName:    "websocket",
	})
	if err != nil {
		_ = dev.SendControl(ctx, audio.ControlMessage{Type: "error", Data: "failed to start interview"})
		dev.Close()
		return
	}

	if err := dev.SendControl(ctx, audio.ControlMessage{Type: "ready", Data: map[string]string{"session_id": sess.ID}}); err != nil {
		_ = h.manager.Stop(ctx, sess.ID)
		return
	}

	for {
		select {
		case <-dev.Done():
			if err := h.manager.Stop(ctx, sess.ID); err != nil && !errors.Is(err, interview.ErrNotActive) {
				slog.WarnContext(ctx, "stop interview after disconnect failed",
					slog.String("session_id", sess.ID), slog.String("error", err.Error()))
			}
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if env.SessionID != sess.ID {
				continue
			}
			if err := dev.SendControl(ctx, audio.ControlMessage{Type: "event", Data: env}); err != nil {
				continue
			}
			if env.Type == events.InterviewStopped {
				return
			}
		}
	}
}
