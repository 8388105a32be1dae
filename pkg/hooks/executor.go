package hooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20

	// SignatureHeader carries "sha256=<hex>" for hmac-authenticated hooks.
	SignatureHeader = "X-Hook-Signature"
)

// StatusError is returned when a hook answers outside 2xx.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hook %s returned HTTP %d: %s", e.URL, e.Code, e.Body)
}

// Executor posts HookRequests to profile and avatar hook endpoints and
// reports each outcome as a hook.result or hook.error event. A nil
// publisher disables reporting.
type Executor struct {
	client       *http.Client
	publisher    *events.Publisher
	validateOpts []urlvalidation.Option
}

// NewExecutor creates an executor sharing one pooled HTTP client.
func NewExecutor(publisher *events.Publisher, validateOpts ...urlvalidation.Option) *Executor {
	return &Executor{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		publisher:    publisher,
		validateOpts: validateOpts,
	}
}

// Execute calls the hook and decodes its response. The call is bounded by
// cfg.TimeoutSec, or 10s when unset.
func (e *Executor) Execute(ctx context.Context, cfg HookConfig, req HookRequest) (*HookResponse, error) {
	if err := urlvalidation.Validate(cfg.URL, e.validateOpts...); err != nil {
		return nil, fmt.Errorf("hook URL validation: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal hook request: %w", err)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	code, raw, err := e.post(callCtx, cfg, body)
	if err == nil && (code < 200 || code > 299) {
		err = &StatusError{URL: cfg.URL, Code: code, Body: string(raw)}
	}
	if err != nil {
		e.report(ctx, events.HookError, req.SessionID, &events.HookErrorData{HookURL: cfg.URL, Error: err.Error()})
		return nil, err
	}

	var resp HookResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode hook response: %w", err)
	}
	e.report(ctx, events.HookResult, req.SessionID, &events.HookResultData{
		HookURL:    cfg.URL,
		StatusCode: code,
		Response:   resp.Data,
	})
	return &resp, nil
}

func (e *Executor) post(ctx context.Context, cfg HookConfig, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create hook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	switch cfg.AuthType {
	case "bearer":
		httpReq.Header.Set("Authorization", "Bearer "+cfg.AuthSecret)
	case "hmac":
		httpReq.Header.Set(SignatureHeader, Sign(cfg.AuthSecret, body))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("hook request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read hook response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (e *Executor) report(ctx context.Context, t events.EventType, sessionID string, data any) {
	if e.publisher == nil {
		return
	}
	_ = e.publisher.Emit(ctx, t, sessionID, data)
}

// Sign returns the SignatureHeader value for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
