// Package api exposes webhook management over REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
	"github.com/voicetyped/interviewer/pkg/webhook"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MiB
	deliveryPageSize   = 50
)

// Store is the persistence the handler needs; *webhook.Repository
// implements it.
type Store interface {
	CreateEndpoint(ctx context.Context, e *webhook.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*webhook.Endpoint, error)
	ListEndpoints(ctx context.Context) ([]webhook.Endpoint, error)
	UpdateEndpoint(ctx context.Context, e *webhook.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]webhook.Delivery, error)
	ListDeadLetters(ctx context.Context, webhookID string) ([]webhook.DeadLetter, error)
	GetDeadLetter(ctx context.Context, webhookID, id string) (*webhook.DeadLetter, error)
	MarkDeadLetterReplayed(ctx context.Context, id string) error
}

// Handler provides REST endpoints for webhook management.
type Handler struct {
	store        Store
	deliverer    *webhook.Deliverer
	validateOpts []urlvalidation.Option
}

// NewHandler creates a webhook API handler. validateOpts apply to
// registered URLs and should match the deliverer's.
func NewHandler(store Store, deliverer *webhook.Deliverer, validateOpts ...urlvalidation.Option) *Handler {
	return &Handler{store: store, deliverer: deliverer, validateOpts: validateOpts}
}

// RegisterRoutes registers all webhook API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/webhooks", h.Create)
	mux.HandleFunc("GET /api/v1/webhooks", h.List)
	mux.HandleFunc("GET /api/v1/webhooks/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/webhooks/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/webhooks/{id}", h.Delete)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/rotate-secret", h.RotateSecret)
	mux.HandleFunc("GET /api/v1/webhooks/{id}/deliveries", h.ListDeliveries)
	mux.HandleFunc("GET /api/v1/webhooks/{id}/dead-letters", h.ListDeadLetters)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/dead-letters/{dlid}/replay", h.ReplayDeadLetter)
	mux.HandleFunc("POST /api/v1/webhooks/{id}/test", h.Test)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeLookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, webhook.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load "+what)
}

// Create handles POST /api/v1/webhooks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.check(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := urlvalidation.Validate(req.URL, h.validateOpts...); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook URL: "+err.Error())
		return
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	e := req.endpoint(secret)
	if err := h.store.CreateEndpoint(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}
	writeJSON(w, http.StatusCreated, newWebhookResponse(e, true))
}

// List handles GET /api/v1/webhooks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.ListEndpoints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}
	writeJSON(w, http.StatusOK, mapAll(endpoints, func(e webhook.Endpoint) WebhookResponse {
		return newWebhookResponse(&e, false)
	}))
}

// Get handles GET /api/v1/webhooks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "webhook")
		return
	}
	writeJSON(w, http.StatusOK, newWebhookResponse(e, false))
}

// Update handles PUT /api/v1/webhooks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	e, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "webhook")
		return
	}

	var req UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.check(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL != nil {
		if err := urlvalidation.Validate(*req.URL, h.validateOpts...); err != nil {
			writeError(w, http.StatusBadRequest, "invalid webhook URL: "+err.Error())
			return
		}
	}
	req.apply(e)

	if err := h.store.UpdateEndpoint(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update webhook")
		return
	}
	writeJSON(w, http.StatusOK, newWebhookResponse(e, false))
}

// Delete handles DELETE /api/v1/webhooks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEndpoint(r.Context(), r.PathValue("id")); err != nil {
		writeLookupError(w, err, "webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles POST /api/v1/webhooks/{id}/rotate-secret
func (h *Handler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "webhook")
		return
	}
	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	e.Secret = secret
	if err := h.store.UpdateEndpoint(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update secret")
		return
	}
	writeJSON(w, http.StatusOK, newWebhookResponse(e, true))
}

// ListDeliveries handles GET /api/v1/webhooks/{id}/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.store.ListDeliveries(r.Context(), r.PathValue("id"), deliveryPageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, mapAll(attempts, newDeliveryResponse))
}

// ListDeadLetters handles GET /api/v1/webhooks/{id}/dead-letters
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.store.ListDeadLetters(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	writeJSON(w, http.StatusOK, mapAll(letters, newDeadLetterResponse))
}

// ReplayDeadLetter handles POST /api/v1/webhooks/{id}/dead-letters/{dlid}/replay
// by redelivering the stored event to its endpoint only.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	e, err := h.store.GetEndpoint(ctx, r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "webhook")
		return
	}
	dl, err := h.store.GetDeadLetter(ctx, e.ID, r.PathValue("dlid"))
	if err != nil {
		writeLookupError(w, err, "dead letter")
		return
	}
	if !dl.Replayable {
		writeError(w, http.StatusConflict, "dead letter already replayed")
		return
	}
	env, err := dl.Envelope()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt dead letter payload")
		return
	}
	if err := h.store.MarkDeadLetterReplayed(ctx, dl.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark dead letter replayed")
		return
	}

	h.deliverLater(ctx, *e, env)
	w.WriteHeader(http.StatusAccepted)
}

// Test handles POST /api/v1/webhooks/{id}/test
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "webhook")
		return
	}
	data, _ := json.Marshal(events.WebhookTestData{
		WebhookID: e.ID,
		Message:   "This is a test delivery from the interviewer service",
	})
	h.deliverLater(r.Context(), *e, events.Envelope{
		ID:        xid.New().String(),
		Type:      events.WebhookTest,
		Source:    "webhook-api",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "test event queued"})
}

func (h *Handler) deliverLater(ctx context.Context, e webhook.Endpoint, env events.Envelope) {
	if h.deliverer == nil {
		return
	}
	go h.deliverer.Deliver(context.WithoutCancel(ctx), e, env)
}
