// Package handler exposes interview sessions over HTTP: REST for the
// lifecycle, server-sent events for progress and a websocket for browser
// audio.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/interview"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// DeviceOpener opens the server's local audio device.
type DeviceOpener func() (audio.Device, error)

// Config holds the audio and origin settings of the handler.
type Config struct {
	// InputRate is the default browser microphone rate for pcm16 input.
	InputRate  int
	OutputRate int
	// AllowedOrigins lists websocket origins; empty means same origin only.
	AllowedOrigins []string
}

// Handler provides the interview REST, SSE and websocket endpoints.
type Handler struct {
	manager    *interview.Manager
	summarizer *interview.Summarizer
	openLocal  DeviceOpener
	cfg        Config
	upgrader   websocket.Upgrader
}

// NewHandler creates an interview API handler. openLocal may be nil when
// the server has no audio hardware.
func NewHandler(m *interview.Manager, s *interview.Summarizer, openLocal DeviceOpener, cfg Config) *Handler {
	h := &Handler{manager: m, summarizer: s, openLocal: openLocal, cfg: cfg}
	h.upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if len(cfg.AllowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(cfg.AllowedOrigins, "*") || slices.Contains(cfg.AllowedOrigins, r.Header.Get("Origin"))
		}
	}
	return h
}

// RegisterRoutes registers all interview API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/interviews", h.Start)
	mux.HandleFunc("GET /api/v1/interviews", h.List)
	mux.HandleFunc("GET /api/v1/interviews/audio", h.Audio)
	mux.HandleFunc("GET /api/v1/interviews/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/interviews/{id}", h.Stop)
	mux.HandleFunc("GET /api/v1/interviews/{id}/events", h.Events)
	mux.HandleFunc("GET /api/v1/interviews/{id}/exchanges", h.Exchanges)
	mux.HandleFunc("POST /api/v1/summaries", h.Summarize)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// Start handles POST /api/v1/interviews on the server's local device.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req StartInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.manager.Profile(req.Profile); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if h.openLocal == nil {
		writeError(w, http.StatusServiceUnavailable, "no local audio device; use the websocket endpoint")
		return
	}

	resume, jd, err := h.summaries(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, "summarization failed")
		return
	}

	dev, err := h.openLocal()
	if err != nil {
		slog.ErrorContext(r.Context(), "open local audio device failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "audio device unavailable")
		return
	}

	sess, err := h.manager.Start(r.Context(), interview.StartRequest{
		Profile:       req.Profile,
		ResumeSummary: resume,
		JDSummary:     jd,
		Variables:     req.Variables,
		Device:        dev,
		DeviceName:    "local",
	})
	if err != nil {
		dev.Close()
		writeStartError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, InterviewResponse{Interview: sess.Snapshot()})
}

func writeStartError(w http.ResponseWriter, err error) {
	if errors.Is(err, interview.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to start interview")
}

// summaries fills missing summaries from the raw texts.
func (h *Handler) summaries(ctx context.Context, req StartInterviewRequest) (resume, jd string, err error) {
	resume, jd = req.ResumeSummary, req.JDSummary
	if h.summarizer == nil {
		return resume, jd, nil
	}
	if resume == "" && req.ResumeText != "" {
		if resume, err = h.summarizer.Resume(ctx, req.ResumeText); err != nil {
			return "", "", err
		}
	}
	if jd == "" && req.JDText != "" {
		if jd, err = h.summarizer.JobDescription(ctx, req.JDText); err != nil {
			return "", "", err
		}
	}
	return resume, jd, nil
}

// List handles GET /api/v1/interviews
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.List())
}

// Get handles GET /api/v1/interviews/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "interview not found")
		return
	}
	writeJSON(w, http.StatusOK, InterviewResponse{Interview: sess.Snapshot()})
}

// Stop handles DELETE /api/v1/interviews/{id}
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := h.manager.Stop(r.Context(), id); {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
		return
	case errors.Is(err, interview.ErrNotActive):
		writeError(w, http.StatusConflict, "interview already stopped")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to stop interview")
		return
	}
	sess, _ := h.manager.Get(id)
	writeJSON(w, http.StatusOK, InterviewResponse{Interview: sess.Snapshot()})
}

// Exchanges handles GET /api/v1/interviews/{id}/exchanges
func (h *Handler) Exchanges(w http.ResponseWriter, r *http.Request) {
	out, err := h.manager.Exchanges(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "list exchanges failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}
	writeJSON(w, http.StatusOK, ExchangesResponse{Exchanges: out})
}

// Summarize handles POST /api/v1/summaries
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ResumeText == "" && req.JDText == "" {
		writeError(w, http.StatusBadRequest, "resume_text or jd_text is required")
		return
	}
	if h.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, "summarization is not configured")
		return
	}

	resume, jd, err := h.summaries(r.Context(), StartInterviewRequest{ResumeText: req.ResumeText, JDText: req.JDText})
	if err != nil {
		slog.WarnContext(r.Context(), "summarization failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "summarization failed")
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{ResumeSummary: resume, JDSummary: jd})
}
