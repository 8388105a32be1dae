package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
	"github.com/voicetyped/interviewer/pkg/webhook"
)

type memStore struct {
	mu        sync.Mutex
	endpoints map[string]*webhook.Endpoint
	dead      map[string]*webhook.DeadLetter
	nextID    int
}

func newMemStore() *memStore {
	return &memStore{endpoints: map[string]*webhook.Endpoint{}, dead: map[string]*webhook.DeadLetter{}}
}

func (m *memStore) CreateEndpoint(_ context.Context, e *webhook.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = "wh-" + string(rune('0'+m.nextID))
	e.CreatedAt = time.Now()
	cp := *e
	m.endpoints[e.ID] = &cp
	return nil
}

func (m *memStore) GetEndpoint(_ context.Context, id string) (*webhook.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.endpoints[id]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListEndpoints(context.Context) ([]webhook.Endpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []webhook.Endpoint
	for _, e := range m.endpoints {
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) UpdateEndpoint(_ context.Context, e *webhook.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.endpoints[e.ID] = &cp
	return nil
}

func (m *memStore) DeleteEndpoint(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.endpoints[id]; !ok {
		return webhook.ErrNotFound
	}
	delete(m.endpoints, id)
	return nil
}

func (m *memStore) ListDeliveries(context.Context, string, int) ([]webhook.Delivery, error) {
	return []webhook.Delivery{{WebhookID: "wh-1", EventID: "evt-1", Status: webhook.StatusSuccess, ResponseCode: 200}}, nil
}

func (m *memStore) ListDeadLetters(_ context.Context, webhookID string) ([]webhook.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []webhook.DeadLetter
	for _, dl := range m.dead {
		if dl.WebhookID == webhookID && dl.Replayable {
			out = append(out, *dl)
		}
	}
	return out, nil
}

func (m *memStore) GetDeadLetter(_ context.Context, webhookID, id string) (*webhook.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dl, ok := m.dead[id]
	if !ok || dl.WebhookID != webhookID {
		return nil, webhook.ErrNotFound
	}
	cp := *dl
	return &cp, nil
}

func (m *memStore) MarkDeadLetterReplayed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead[id].Replayable = false
	return nil
}

type hookServer struct {
	srv *httptest.Server
	got chan events.Envelope
}

func newHookServer(t *testing.T) *hookServer {
	h := &hookServer{got: make(chan events.Envelope, 8)}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env events.Envelope
		json.NewDecoder(r.Body).Decode(&env)
		h.got <- env
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *hookServer) next(t *testing.T) events.Envelope {
	t.Helper()
	select {
	case env := <-h.got:
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
		return events.Envelope{}
	}
}

func setup(t *testing.T) (*memStore, *http.ServeMux) {
	store := newMemStore()
	d := webhook.NewDeliverer(nil, webhook.DelivererConfig{MaxRetries: 1}, nil, urlvalidation.AllowPrivateIPs())
	mux := http.NewServeMux()
	NewHandler(store, d, urlvalidation.AllowPrivateIPs()).RegisterRoutes(mux)
	return store, mux
}

func call(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestCreateAndGet(t *testing.T) {
	_, mux := setup(t)
	hooks := newHookServer(t)

	rec := call(mux, http.MethodPost, "/api/v1/webhooks",
		`{"name":"ats","url":"`+hooks.srv.URL+`","event_types":["interview.stopped"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var created WebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Secret == "" || !created.Active || len(created.EventTypes) != 1 {
		t.Errorf("created = %+v", created)
	}

	rec = call(mux, http.MethodGet, "/api/v1/webhooks/"+created.ID, "")
	var got WebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &got)
	if rec.Code != http.StatusOK || got.Secret != "" {
		t.Errorf("get = %d, secret %q", rec.Code, got.Secret)
	}

	rec = call(mux, http.MethodGet, "/api/v1/webhooks", "")
	var list []WebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("list = %s", rec.Body)
	}
}

func TestCreateValidation(t *testing.T) {
	_, mux := setup(t)
	for _, body := range []string{
		"{",
		`{"name":"x"}`,
		`{"name":"x","url":"ftp://example.com"}`,
		`{"name":"x","url":"https://example.com","event_types":["interview.paused"]}`,
	} {
		if rec := call(mux, http.MethodPost, "/api/v1/webhooks", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", body, rec.Code)
		}
	}
}

func TestUpdateRotateDelete(t *testing.T) {
	store, mux := setup(t)
	hooks := newHookServer(t)
	e := &webhook.Endpoint{Name: "ats", URL: hooks.srv.URL, Secret: "old", Active: true}
	store.CreateEndpoint(t.Context(), e)

	rec := call(mux, http.MethodPut, "/api/v1/webhooks/"+e.ID, `{"active":false,"event_types":["speech.final"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body)
	}
	updated, _ := store.GetEndpoint(t.Context(), e.ID)
	if updated.Active || !updated.EventTypes.Matches(events.SpeechFinal) || updated.EventTypes.Matches(events.InterviewStarted) {
		t.Errorf("updated = %+v", updated)
	}

	if rec := call(mux, http.MethodPut, "/api/v1/webhooks/"+e.ID, `{"name":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name update = %d", rec.Code)
	}

	rec = call(mux, http.MethodPost, "/api/v1/webhooks/"+e.ID+"/rotate-secret", "")
	var rotated WebhookResponse
	json.Unmarshal(rec.Body.Bytes(), &rotated)
	if rotated.Secret == "" || rotated.Secret == "old" {
		t.Errorf("rotated secret = %q", rotated.Secret)
	}

	if rec := call(mux, http.MethodDelete, "/api/v1/webhooks/"+e.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := call(mux, http.MethodDelete, "/api/v1/webhooks/"+e.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
	if rec := call(mux, http.MethodPut, "/api/v1/webhooks/missing", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", rec.Code)
	}
}

func TestTestDelivery(t *testing.T) {
	store, mux := setup(t)
	hooks := newHookServer(t)
	e := &webhook.Endpoint{Name: "ats", URL: hooks.srv.URL, Secret: "s", Active: true}
	store.CreateEndpoint(t.Context(), e)

	if rec := call(mux, http.MethodPost, "/api/v1/webhooks/"+e.ID+"/test", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("test = %d", rec.Code)
	}
	if env := hooks.next(t); env.Type != events.WebhookTest {
		t.Errorf("delivered %q", env.Type)
	}
}

func TestReplayDeadLetter(t *testing.T) {
	store, mux := setup(t)
	hooks := newHookServer(t)
	e := &webhook.Endpoint{Name: "ats", URL: hooks.srv.URL, Secret: "s", Active: true}
	store.CreateEndpoint(t.Context(), e)

	payload, _ := json.Marshal(events.Envelope{ID: "evt-9", Type: events.InterviewStopped, SessionID: "s1"})
	dl := &webhook.DeadLetter{WebhookID: e.ID, EventID: "evt-9", Payload: string(payload), Replayable: true}
	dl.ID = "dl-1"
	store.dead[dl.ID] = dl

	rec := call(mux, http.MethodGet, "/api/v1/webhooks/"+e.ID+"/dead-letters", "")
	var letters []DeadLetterResponse
	json.Unmarshal(rec.Body.Bytes(), &letters)
	if len(letters) != 1 {
		t.Fatalf("dead letters = %s", rec.Body)
	}

	path := "/api/v1/webhooks/" + e.ID + "/dead-letters/dl-1/replay"
	if rec := call(mux, http.MethodPost, path, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("replay = %d %s", rec.Code, rec.Body)
	}
	if env := hooks.next(t); env.ID != "evt-9" {
		t.Errorf("replayed %q", env.ID)
	}
	if rec := call(mux, http.MethodPost, path, ""); rec.Code != http.StatusConflict {
		t.Errorf("second replay = %d", rec.Code)
	}
	if rec := call(mux, http.MethodPost, "/api/v1/webhooks/"+e.ID+"/dead-letters/nope/replay", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing dead letter = %d", rec.Code)
	}
}

func TestListDeliveries(t *testing.T) {
	_, mux := setup(t)
	rec := call(mux, http.MethodGet, "/api/v1/webhooks/wh-1/deliveries", "")
	var out []DeliveryResponse
	json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || len(out) != 1 || out[0].Status != webhook.StatusSuccess {
		t.Errorf("deliveries = %d %s", rec.Code, rec.Body)
	}
}
