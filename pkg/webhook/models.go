package webhook

import (
	"database/sql"
	"encoding/json"
	"slices"

	"github.com/pitabwire/frame/data"

	"github.com/voicetyped/interviewer/pkg/events"
)

// Endpoint is a registered receiver of interview events.
type Endpoint struct {
	data.BaseModel

	Name          string       `gorm:"type:varchar(255);not null"  json:"name"`
	URL           string       `gorm:"type:varchar(2048);not null" json:"url"`
	Secret        string       `gorm:"type:varchar(512);not null"  json:"-"`
	EventTypes    EventTypes   `gorm:"type:text"                   json:"event_types"`
	Active        bool         `gorm:"default:true"                json:"active"`
	Description   string       `gorm:"type:text"                   json:"description,omitempty"`
	FailureCount  int          `gorm:"default:0"                   json:"failure_count"`
	LastFailureAt sql.NullTime `json:"last_failure_at,omitempty"`
}

func (Endpoint) TableName() string { return "interview_webhooks" }

// EventTypes is stored as a JSON array. An empty list subscribes to every
// event type.
type EventTypes []events.EventType

func (e EventTypes) Value() (any, error) {
	if e == nil {
		return "[]", nil
	}
	b, err := json.Marshal(e)
	return string(b), err
}

func (e *EventTypes) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		*e = EventTypes{}
		return nil
	}
}

// Matches reports whether an event of type et should be delivered.
func (e EventTypes) Matches(et events.EventType) bool {
	return len(e) == 0 || slices.Contains(e, et)
}

// Delivery statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Delivery records one attempt to deliver an event to an endpoint.
type Delivery struct {
	data.BaseModel

	WebhookID     string `gorm:"type:varchar(50);not null;index:idx_iwd_webhook" json:"webhook_id"`
	EventID       string `gorm:"type:varchar(50);not null"                        json:"event_id"`
	EventType     string `gorm:"type:varchar(100);not null"                       json:"event_type"`
	SessionID     string `gorm:"type:varchar(50);index:idx_iwd_session"           json:"session_id"`
	ResponseCode  int    `gorm:"default:0"                                        json:"response_code"`
	AttemptNumber int    `gorm:"default:1"                                        json:"attempt_number"`
	Status        string `gorm:"type:varchar(20);not null"                        json:"status"`
	Error         string `gorm:"type:text"                                        json:"error,omitempty"`
	DurationMs    int64  `gorm:"default:0"                                        json:"duration_ms"`
}

func (Delivery) TableName() string { return "interview_webhook_deliveries" }

// DeadLetter holds an event that exhausted its delivery attempts.
type DeadLetter struct {
	data.BaseModel

	WebhookID  string `gorm:"type:varchar(50);not null;index:idx_iwdl_webhook" json:"webhook_id"`
	EventID    string `gorm:"type:varchar(50);not null"                         json:"event_id"`
	EventType  string `gorm:"type:varchar(100);not null"                        json:"event_type"`
	Payload    string `gorm:"type:text;not null"                                json:"payload"`
	LastError  string `gorm:"type:text"                                         json:"last_error"`
	Attempts   int    `gorm:"default:0"                                         json:"attempts"`
	Replayable bool   `gorm:"default:true"                                      json:"replayable"`
}

func (DeadLetter) TableName() string { return "interview_webhook_dead_letters" }

// Envelope decodes the stored event.
func (dl *DeadLetter) Envelope() (events.Envelope, error) {
	var env events.Envelope
	err := json.Unmarshal([]byte(dl.Payload), &env)
	return env, err
}
