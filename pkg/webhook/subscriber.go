package webhook

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"
	"github.com/rs/xid"

	"github.com/voicetyped/interviewer/pkg/events"
)

// EndpointLister returns the endpoints events may be delivered to.
type EndpointLister interface {
	ListActive(ctx context.Context) ([]Endpoint, error)
}

// Subscriber routes interview events to the endpoints subscribed to them.
// It serves as a frame queue worker through Handle, or consumes a
// publisher's local fan-out through Run.
type Subscriber struct {
	Endpoints EndpointLister
	Deliverer *Deliverer
	Pool      workerpool.WorkerPool
}

// Handle is called by frame's pub/sub for each event message.
func (s *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: unmarshal envelope")
		return err
	}
	return s.Dispatch(ctx, env)
}

// Dispatch hands env to every matching endpoint.
func (s *Subscriber) Dispatch(ctx context.Context, env events.Envelope) error {
	endpoints, err := s.Endpoints.ListActive(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: list endpoints")
		return err
	}

	for _, e := range endpoints {
		if !e.EventTypes.Matches(env.Type) {
			continue
		}
		deliver := func() { s.Deliverer.Deliver(ctx, e, env) }
		if s.Pool == nil {
			go deliver()
			continue
		}
		if err := s.Pool.Submit(ctx, deliver); err != nil {
			slog.WarnContext(ctx, "webhook pool full", slog.String("webhook_id", e.ID))
		}
	}
	return nil
}

// Run dispatches every event of pub until ctx ends.
func (s *Subscriber) Run(ctx context.Context, pub *events.Publisher) {
	id := "webhooks-" + xid.New().String()
	ch := pub.Subscribe(id, "", 1024)
	defer pub.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			_ = s.Dispatch(ctx, env)
		}
	}
}
