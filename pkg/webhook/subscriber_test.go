package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
)

type staticEndpoints []Endpoint

func (s staticEndpoints) ListActive(context.Context) ([]Endpoint, error) { return s, nil }

type receiver struct {
	srv *httptest.Server
	mu  sync.Mutex
	got []events.EventType
}

func newReceiver(t *testing.T) *receiver {
	r := &receiver{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.got = append(r.got, events.EventType(req.Header.Get(EventHeader)))
		r.mu.Unlock()
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *receiver) received() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.got...)
}

func waitLen(t *testing.T, r *receiver, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(r.received()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("received %v, want %d deliveries", r.received(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscriberFiltersByEventType(t *testing.T) {
	all, stopped := newReceiver(t), newReceiver(t)
	e1 := Endpoint{URL: all.srv.URL, Secret: "a"}
	e1.ID = "all"
	e2 := Endpoint{URL: stopped.srv.URL, Secret: "b", EventTypes: EventTypes{events.InterviewStopped}}
	e2.ID = "stopped"

	s := &Subscriber{
		Endpoints: staticEndpoints{e1, e2},
		Deliverer: NewDeliverer(nil, DelivererConfig{MaxRetries: 1}, nil, urlvalidation.AllowPrivateIPs()),
	}

	for _, typ := range []events.EventType{events.InterviewStarted, events.InterviewStopped} {
		msg, _ := json.Marshal(events.Envelope{ID: string(typ), Type: typ, SessionID: "s1"})
		if err := s.Handle(t.Context(), nil, msg); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}

	waitLen(t, all, 2)
	waitLen(t, stopped, 1)
	if got := stopped.received(); got[0] != events.InterviewStopped {
		t.Errorf("filtered endpoint got %v", got)
	}
}

func TestSubscriberRejectsGarbage(t *testing.T) {
	s := &Subscriber{Endpoints: staticEndpoints{}}
	if err := s.Handle(t.Context(), nil, []byte("{")); err == nil {
		t.Error("expected unmarshal error")
	}
}

func TestSubscriberRunsOnLocalEvents(t *testing.T) {
	r := newReceiver(t)
	e := Endpoint{URL: r.srv.URL, Secret: "a"}
	e.ID = "local"
	s := &Subscriber{
		Endpoints: staticEndpoints{e},
		Deliverer: NewDeliverer(nil, DelivererConfig{MaxRetries: 1}, nil, urlvalidation.AllowPrivateIPs()),
	}
	pub := events.NewPublisher(nil, "test", "")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, pub)
		close(done)
	}()

	// Run subscribes asynchronously; emit until the first delivery lands.
	deadline := time.Now().Add(5 * time.Second)
	for len(r.received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no delivery from local events")
		}
		pub.Emit(t.Context(), events.SpeechFinal, "s1", events.SpeechFinalData{Turn: 1, Transcript: "hi"})
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
