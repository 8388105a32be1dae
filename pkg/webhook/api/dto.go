package api

import (
	"fmt"
	"time"

	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/webhook"
)

// CreateWebhookRequest registers an endpoint. No event types means all.
type CreateWebhookRequest struct {
	Name        string             `json:"name"`
	URL         string             `json:"url"`
	EventTypes  []events.EventType `json:"event_types"`
	Description string             `json:"description,omitempty"`
}

func (r CreateWebhookRequest) check() error {
	if r.Name == "" || r.URL == "" {
		return fmt.Errorf("name and url are required")
	}
	return checkEventTypes(r.EventTypes)
}

func (r CreateWebhookRequest) endpoint(secret string) *webhook.Endpoint {
	return &webhook.Endpoint{
		Name:        r.Name,
		URL:         r.URL,
		Secret:      secret,
		EventTypes:  webhook.EventTypes(r.EventTypes),
		Active:      true,
		Description: r.Description,
	}
}

// UpdateWebhookRequest is a partial update; nil fields are left alone.
type UpdateWebhookRequest struct {
	Name        *string             `json:"name,omitempty"`
	URL         *string             `json:"url,omitempty"`
	EventTypes  *[]events.EventType `json:"event_types,omitempty"`
	Active      *bool               `json:"active,omitempty"`
	Description *string             `json:"description,omitempty"`
}

func (r UpdateWebhookRequest) check() error {
	if r.Name != nil && *r.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if r.EventTypes != nil {
		return checkEventTypes(*r.EventTypes)
	}
	return nil
}

func (r UpdateWebhookRequest) apply(e *webhook.Endpoint) {
	setIf(&e.Name, r.Name)
	setIf(&e.URL, r.URL)
	setIf(&e.Active, r.Active)
	setIf(&e.Description, r.Description)
	if r.EventTypes != nil {
		e.EventTypes = webhook.EventTypes(*r.EventTypes)
	}
	if r.Active != nil && *r.Active {
		e.FailureCount = 0
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func checkEventTypes(types []events.EventType) error {
	for _, t := range types {
		if !events.Known(t) {
			return fmt.Errorf("unknown event type %q", t)
		}
	}
	return nil
}

// WebhookResponse describes an endpoint. Secret is only returned by
// create and rotate-secret.
type WebhookResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	URL          string             `json:"url"`
	Secret       string             `json:"secret,omitempty"`
	EventTypes   []events.EventType `json:"event_types"`
	Active       bool               `json:"active"`
	Description  string             `json:"description,omitempty"`
	FailureCount int                `json:"failure_count"`
	LastFailure  *time.Time         `json:"last_failure_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	ModifiedAt   time.Time          `json:"modified_at"`
}

func newWebhookResponse(e *webhook.Endpoint, withSecret bool) WebhookResponse {
	resp := WebhookResponse{
		ID:           e.ID,
		Name:         e.Name,
		URL:          e.URL,
		EventTypes:   append([]events.EventType{}, e.EventTypes...),
		Active:       e.Active,
		Description:  e.Description,
		FailureCount: e.FailureCount,
		CreatedAt:    e.CreatedAt,
		ModifiedAt:   e.ModifiedAt,
	}
	if e.LastFailureAt.Valid {
		resp.LastFailure = &e.LastFailureAt.Time
	}
	if withSecret {
		resp.Secret = e.Secret
	}
	return resp
}

// DeliveryResponse is one recorded delivery attempt.
type DeliveryResponse struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`
	Attempt   int       `json:"attempt"`
	Status    string    `json:"status"`
	Code      int       `json:"response_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	At        time.Time `json:"created_at"`
}

func newDeliveryResponse(d webhook.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:        d.ID,
		EventID:   d.EventID,
		EventType: d.EventType,
		SessionID: d.SessionID,
		Attempt:   d.AttemptNumber,
		Status:    d.Status,
		Code:      d.ResponseCode,
		Error:     d.Error,
		Duration:  d.DurationMs,
		At:        d.CreatedAt,
	}
}

// DeadLetterResponse is an event that exhausted its retries.
type DeadLetterResponse struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	LastError  string    `json:"last_error"`
	Attempts   int       `json:"attempts"`
	Replayable bool      `json:"replayable"`
	At         time.Time `json:"created_at"`
}

func newDeadLetterResponse(dl webhook.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:         dl.ID,
		EventID:    dl.EventID,
		EventType:  dl.EventType,
		LastError:  dl.LastError,
		Attempts:   dl.Attempts,
		Replayable: dl.Replayable,
		At:         dl.CreatedAt,
	}
}

func mapAll[S, D any](src []S, f func(S) D) []D {
	out := make([]D, 0, len(src))
	for _, s := range src {
		out = append(out, f(s))
	}
	return out
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
