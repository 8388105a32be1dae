package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	InterviewStarted  EventType = "interview.started"
	InterviewStopped  EventType = "interview.stopped"
	TurnCaptured      EventType = "turn.captured"
	TurnAbandoned     EventType = "turn.abandoned"
	SpeechFinal       EventType = "speech.final"
	ReplyFragment     EventType = "reply.fragment"
	ReplyCompleted    EventType = "reply.completed"
	TTSStarted        EventType = "tts.started"
	TTSCompleted      EventType = "tts.completed"
	PlaybackCompleted EventType = "playback.completed"
	AvatarRendered    EventType = "avatar.rendered"
	StageFailed       EventType = "stage.failed"
	HookResult        EventType = "hook.result"
	HookError         EventType = "hook.error"
	WebhookTest       EventType = "webhook.test"
)

var known = map[EventType]bool{
	InterviewStarted: true, InterviewStopped: true,
	TurnCaptured: true, TurnAbandoned: true,
	SpeechFinal: true, ReplyFragment: true, ReplyCompleted: true,
	TTSStarted: true, TTSCompleted: true, PlaybackCompleted: true,
	AvatarRendered: true, StageFailed: true,
	HookResult: true, HookError: true, WebhookTest: true,
}

// Known reports whether t is an event type this service emits.
func Known(t EventType) bool { return known[t] }

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// InterviewStartedData is the payload for interview.started events.
type InterviewStartedData struct {
	Profile string `json:"profile"`
	Device  string `json:"device"` // "local" or "websocket"
	Mode    string `json:"mode"`   // "batch" or "streaming"
}

// InterviewStoppedData is the payload for interview.stopped events.
type InterviewStoppedData struct {
	Reason     string `json:"reason"`
	Exchanges  int    `json:"exchanges"`
	DurationMs int64  `json:"duration_ms"`
}

// TurnData is the payload for turn.captured and turn.abandoned events.
type TurnData struct {
	Turn       int64  `json:"turn"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	EndReason  string `json:"end_reason,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// SpeechFinalData is the payload for speech.final events.
type SpeechFinalData struct {
	Turn       int64  `json:"turn"`
	Transcript string `json:"transcript"`
}

// ReplyData is the payload for reply.fragment and reply.completed events.
type ReplyData struct {
	Turn int64  `json:"turn"`
	Text string `json:"text"`
}

// TTSEventData is the payload for tts.started and tts.completed events.
type TTSEventData struct {
	Turn  int64  `json:"turn"`
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Bytes int    `json:"bytes,omitempty"`
}

// PlaybackData is the payload for playback.completed events.
type PlaybackData struct {
	Turn  int64 `json:"turn"`
	Bytes int   `json:"bytes"`
}

// AvatarRenderedData is the payload for avatar.rendered events.
type AvatarRenderedData struct {
	Turn      int64  `json:"turn"`
	AudioPath string `json:"audio_path"`
	VideoPath string `json:"video_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StageFailedData is the payload for stage.failed events. Message is safe
// to show to the candidate.
type StageFailedData struct {
	Stage   string `json:"stage"`
	Turn    int64  `json:"turn"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HookResultData is the payload for hook.result events.
type HookResultData struct {
	HookURL    string         `json:"hook_url"`
	StatusCode int            `json:"status_code"`
	Response   map[string]any `json:"response,omitempty"`
}

// HookErrorData is the payload for hook.error events.
type HookErrorData struct {
	HookURL string `json:"hook_url"`
	Error   string `json:"error"`
}

// WebhookTestData is the payload for webhook.test events.
type WebhookTestData struct {
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}
