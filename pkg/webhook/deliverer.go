package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"

	"github.com/voicetyped/interviewer/pkg/breaker"
	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
)

const maxBreakers = 10000

// DelivererConfig holds delivery settings.
type DelivererConfig struct {
	MaxRetries     int
	Timeout        time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Breaker        breaker.Config
}

// Deliverer posts signed event envelopes to endpoints, retrying with
// exponential backoff and dead-lettering what never gets through.
type Deliverer struct {
	recorder     Recorder
	httpClient   *http.Client
	config       DelivererConfig
	pool         workerpool.WorkerPool
	validateOpts []urlvalidation.Option

	mu       sync.Mutex
	breakers map[string]*breaker.Breaker
}

// NewDeliverer creates a deliverer. recorder and pool may be nil.
func NewDeliverer(recorder Recorder, cfg DelivererConfig, pool workerpool.WorkerPool, validateOpts ...urlvalidation.Option) *Deliverer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Deliverer{
		recorder: recorder,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config:       cfg,
		pool:         pool,
		validateOpts: validateOpts,
		breakers:     make(map[string]*breaker.Breaker),
	}
}

func (d *Deliverer) breakerFor(webhookID string) *breaker.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[webhookID]; ok {
		return cb
	}
	if len(d.breakers) >= maxBreakers {
		for k := range d.breakers {
			delete(d.breakers, k)
			break
		}
	}
	cb := breaker.New("webhook:"+webhookID, d.config.Breaker)
	d.breakers[webhookID] = cb
	return cb
}

// Deliver sends env to the endpoint. Failed attempts are retried in the
// background; the first attempt runs on the caller's goroutine.
func (d *Deliverer) Deliver(ctx context.Context, e Endpoint, env events.Envelope) {
	d.attempt(ctx, e, env, 1)
}

func (d *Deliverer) attempt(ctx context.Context, e Endpoint, env events.Envelope, n int) {
	if err := urlvalidation.Validate(e.URL, d.validateOpts...); err != nil {
		slog.ErrorContext(ctx, "webhook URL failed SSRF validation",
			slog.String("webhook_id", e.ID),
			slog.String("url", e.URL),
			slog.String("error", err.Error()))
		return
	}

	body, err := json.Marshal(env)
	if err != nil {
		d.fail(ctx, e, env, n, fmt.Sprintf("marshal: %v", err))
		return
	}

	rec := &Delivery{
		WebhookID:     e.ID,
		EventID:       env.ID,
		EventType:     string(env.Type),
		SessionID:     env.SessionID,
		AttemptNumber: n,
		Status:        StatusSuccess,
	}
	start := time.Now()
	err = d.breakerFor(e.ID).Do(ctx, func(ctx context.Context) error {
		code, err := d.post(ctx, e, env, body)
		rec.ResponseCode = code
		return err
	})
	rec.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	d.record(ctx, rec, err != nil)

	if err != nil {
		d.fail(ctx, e, env, n, rec.Error)
	}
}

func (d *Deliverer) post(ctx context.Context, e Endpoint, env events.Envelope, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(e.Secret, time.Now(), body))
	req.Header.Set(EventHeader, string(env.Type))
	req.Header.Set(DeliveryHeader, env.ID)
	if env.SessionID != "" {
		req.Header.Set(SessionHeader, env.SessionID)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain for connection reuse.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (d *Deliverer) record(ctx context.Context, rec *Delivery, failed bool) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordDelivery(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "record webhook delivery failed", slog.String("error", err.Error()))
	}
	if err := d.recorder.RecordHealth(ctx, rec.WebhookID, failed); err != nil {
		slog.ErrorContext(ctx, "record webhook health failed", slog.String("error", err.Error()))
	}
}

func (d *Deliverer) fail(ctx context.Context, e Endpoint, env events.Envelope, n int, errMsg string) {
	if n >= d.config.MaxRetries {
		slog.WarnContext(ctx, "webhook delivery exhausted retries",
			slog.String("webhook_id", e.ID),
			slog.String("event_id", env.ID),
			slog.Int("attempts", n))
		if d.recorder == nil {
			return
		}
		payload, _ := json.Marshal(env)
		if err := d.recorder.CreateDeadLetter(ctx, &DeadLetter{
			WebhookID:  e.ID,
			EventID:    env.ID,
			EventType:  string(env.Type),
			Payload:    string(payload),
			LastError:  errMsg,
			Attempts:   n,
			Replayable: true,
		}); err != nil {
			slog.ErrorContext(ctx, "create dead letter failed", slog.String("error", err.Error()))
		}
		return
	}

	backoff := d.backoff(n)
	retry := func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			d.attempt(ctx, e, env, n+1)
		}
	}
	if d.pool == nil {
		go retry()
		return
	}
	if err := d.pool.Submit(ctx, retry); err != nil {
		slog.WarnContext(ctx, "retry pool full, dropping retry",
			slog.String("webhook_id", e.ID),
			slog.Int("attempt", n))
	}
}

// backoff returns the wait before attempt n+1.
func (d *Deliverer) backoff(n int) time.Duration {
	b := d.config.BackoffInitial << (n - 1)
	if d.config.BackoffMax > 0 && (b > d.config.BackoffMax || b <= 0) {
		b = d.config.BackoffMax
	}
	return b
}
