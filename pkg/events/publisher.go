package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

const defaultSubscriberBuffer = 64

// Publisher stamps interview events into Envelopes, hands them to local
// subscribers (SSE streams, websocket clients, the local webhook
// dispatcher) and, when a queue manager is set, to the frame event queue.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string

	mu   sync.RWMutex
	subs map[string]subscriber
}

type subscriber struct {
	session string // empty receives every session
	ch      chan Envelope
}

func (s subscriber) wants(sessionID string) bool {
	return s.session == "" || s.session == sessionID
}

// NewPublisher creates a publisher. A nil queueMgr keeps events in-process.
func NewPublisher(queueMgr queue.Manager, source, queueRef string) *Publisher {
	return &Publisher{
		queueMgr: queueMgr,
		source:   source,
		queueRef: queueRef,
		subs:     map[string]subscriber{},
	}
}

// Emit publishes an event. Local delivery never blocks: a subscriber whose
// buffer is full misses the event. Emit is a no-op on a nil Publisher.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, sessionID string, data any) error {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.fanOut(env)

	if p.queueMgr == nil {
		return nil
	}
	return p.queueMgr.Publish(ctx, p.queueRef, env)
}

func (p *Publisher) fanOut(env Envelope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for id, s := range p.subs {
		if !s.wants(env.SessionID) {
			continue
		}
		select {
		case s.ch <- env:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				"subscriber", id, "event_type", string(env.Type), "session_id", env.SessionID)
		}
	}
}

// Subscribe registers a local subscriber for one session, or for all
// sessions when sessionID is empty. Reusing an id replaces (and closes)
// the earlier subscription. Callers must Unsubscribe when done.
func (p *Publisher) Subscribe(id, sessionID string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}
	ch := make(chan Envelope, bufSize)
	p.mu.Lock()
	if old, ok := p.subs[id]; ok {
		close(old.ch)
	}
	p.subs[id] = subscriber{session: sessionID, ch: ch}
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.subs[id]; ok {
		close(s.ch)
		delete(p.subs, id)
	}
}
