package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/pipeline"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/breaker"
	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/hooks"
	"github.com/voicetyped/interviewer/pkg/profile"
)

const (
	DefaultSessionTTL = 2 * time.Hour
	reaperInterval    = 1 * time.Minute
	stopWait          = 5 * time.Second
)

// Stop reasons reported in interview.stopped events.
const (
	ReasonStopped   = "stopped"
	ReasonCompleted = "completed"
	ReasonExpired   = "expired"
	ReasonDevice    = "device_error"
	ReasonShutdown  = "shutdown"
)

var (
	ErrSessionNotFound = errors.New("interview session not found")
	ErrProfileNotFound = errors.New("interview profile not found")
	ErrNotActive       = errors.New("interview session is not active")
)

// ProfileSource resolves profiles by name.
type ProfileSource interface {
	Get(name string) (*profile.Profile, bool)
}

// Backends are the shared model collaborators. Animator is optional.
type Backends struct {
	ASR      engine.Transcriber
	LLM      engine.ChatModel
	TTS      engine.Synthesizer
	Animator engine.Animator
}

// Config holds the manager settings.
type Config struct {
	// Pipeline is the base for every session; profiles override the model,
	// temperature, voice and opening line.
	Pipeline       pipeline.Options
	DefaultProfile string
	SessionTTL     time.Duration
	Breaker        breaker.Config
}

// Deps are the manager's collaborators. Everything except Backends is
// optional.
type Deps struct {
	Backends  Backends
	Profiles  ProfileSource
	Publisher *events.Publisher
	Pool      workerpool.WorkerPool
	Hooks     *hooks.Executor
	Store     ExchangeStore
}

// StartRequest describes a new interview.
type StartRequest struct {
	Profile       string
	ResumeSummary string
	JDSummary     string
	Variables     map[string]string
	// Device is owned by the session from here on and closed when it ends.
	Device     audio.Device
	DeviceName string
}

type activeSession struct {
	session *Session
	device  audio.Device
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	reason string
}

func (as *activeSession) stop(reason string) {
	as.mu.Lock()
	if as.reason == "" {
		as.reason = reason
	}
	as.mu.Unlock()
	as.cancel()
}

func (as *activeSession) stopReason() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.reason
}

// Manager starts, tracks and stops interview sessions, each with its own
// pipeline.
type Manager struct {
	cfg      Config
	deps     Deps
	prompter Prompter

	asrBreaker *breaker.Breaker
	llmBreaker *breaker.Breaker
	ttsBreaker *breaker.Breaker

	mu       sync.RWMutex
	sessions map[string]*activeSession
}

// NewManager creates a session manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewPublisher(nil, "interviewer", "")
	}
	return &Manager{
		cfg:        cfg,
		deps:       deps,
		asrBreaker: breaker.New("asr", cfg.Breaker),
		llmBreaker: breaker.New("llm", cfg.Breaker),
		ttsBreaker: breaker.New("tts", cfg.Breaker),
		sessions:   make(map[string]*activeSession),
	}
}

// Publisher returns the event publisher sessions report to.
func (m *Manager) Publisher() *events.Publisher {
	return m.deps.Publisher
}

// Profile resolves a profile by name, falling back to the default profile.
func (m *Manager) Profile(name string) (*profile.Profile, error) {
	if name == "" {
		name = m.cfg.DefaultProfile
	}
	if m.deps.Profiles != nil {
		if p, ok := m.deps.Profiles.Get(name); ok {
			return p, nil
		}
	}
	if name == "" || name == profile.Default().Name {
		return profile.Default(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}

// Start begins an interview on the request's device and returns its
// session. The session outlives ctx; it ends through Stop, the reaper,
// the profile's question limit or a device failure.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if req.Device == nil {
		return nil, errors.New("interview: audio device is required")
	}
	p, err := m.Profile(req.Profile)
	if err != nil {
		return nil, err
	}

	sess := NewSession(xid.New().String(), p, req.DeviceName)
	sess.SetSummaries(req.ResumeSummary, req.JDSummary)
	for k, v := range req.Variables {
		sess.SetVariable(k, v)
	}
	if p.OpeningLine != "" {
		sess.Ask(p.OpeningLine)
	}

	pl, err := pipeline.New(m.options(p), pipeline.Deps{
		SessionID:    sess.ID,
		Source:       req.Device,
		Sink:         req.Device,
		ASR:          m.deps.Backends.ASR,
		LLM:          m.deps.Backends.LLM,
		TTS:          m.deps.Backends.TTS,
		Animator:     m.deps.Backends.Animator,
		Conversation: &conversation{m: m, session: sess},
		Publisher:    m.deps.Publisher,
		Pool:         m.deps.Pool,
		ASRBreaker:   m.asrBreaker,
		LLMBreaker:   m.llmBreaker,
		TTSBreaker:   m.ttsBreaker,
	})
	if err != nil {
		return nil, err
	}

	// The session outlives the request that started it.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	as := &activeSession{
		session: sess,
		device:  req.Device,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = as
	m.mu.Unlock()

	sess.Start()
	m.emit(sessionCtx, sess.ID, events.InterviewStarted, &events.InterviewStartedData{
		Profile: p.Name,
		Device:  req.DeviceName,
		Mode:    p.Mode,
	})
	slog.InfoContext(ctx, "interview started",
		slog.String("session_id", sess.ID),
		slog.String("profile", p.Name),
		slog.String("device", req.DeviceName),
	)

	closing := m.watchClosing(sessionCtx, as)
	m.submit(sessionCtx, func() { m.run(sessionCtx, as, pl, closing) })
	return sess, nil
}

func (m *Manager) options(p *profile.Profile) pipeline.Options {
	opts := m.cfg.Pipeline
	if p.Model != "" {
		opts.Model = p.Model
	}
	if p.Temperature != nil {
		opts.Temperature = *p.Temperature
	}
	if p.Voice.ID != "" {
		opts.Voice = engine.VoiceParams{
			ID:              p.Voice.ID,
			Stability:       p.Voice.Stability,
			SimilarityBoost: p.Voice.SimilarityBoost,
		}
	}
	opts.OpeningLine = p.OpeningLine
	return opts
}

func (m *Manager) run(ctx context.Context, as *activeSession, pl *pipeline.Pipeline, closing func()) {
	defer close(as.done)
	sess := as.session

	err := pl.Run(ctx)
	closing()

	reason := as.stopReason()
	if err != nil {
		reason = ReasonDevice
		slog.ErrorContext(ctx, "interview ended by device failure",
			slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	}
	if reason == "" {
		reason = ReasonStopped
	}
	sess.Stop(reason)
	as.cancel()

	if cerr := as.device.Close(); cerr != nil {
		slog.WarnContext(ctx, "close audio device failed",
			slog.String("session_id", sess.ID), slog.String("error", cerr.Error()))
	}

	m.emit(context.WithoutCancel(ctx), sess.ID, events.InterviewStopped, &events.InterviewStoppedData{
		Reason:     reason,
		Exchanges:  sess.Answered(),
		DurationMs: time.Since(sess.StartTime).Milliseconds(),
	})
	slog.InfoContext(ctx, "interview stopped",
		slog.String("session_id", sess.ID),
		slog.String("reason", reason),
		slog.Int("exchanges", sess.Answered()),
	)
}

// watchClosing ends the session once the reply to the last allowed
// question has been played. The returned func stops the watcher.
func (m *Manager) watchClosing(ctx context.Context, as *activeSession) func() {
	if as.session.Profile.MaxQuestions <= 0 {
		return func() {}
	}
	subID := "closing-" + as.session.ID
	ch := m.deps.Publisher.Subscribe(subID, as.session.ID, 64)

	m.submit(ctx, func() {
		for env := range ch {
			if env.Type != events.PlaybackCompleted {
				continue
			}
			var data events.PlaybackData
			if err := json.Unmarshal(env.Data, &data); err != nil {
				continue
			}
			if turn := as.session.ClosingTurn(); turn > 0 && data.Turn == turn {
				as.stop(ReasonCompleted)
			}
		}
	})

	var once sync.Once
	return func() { once.Do(func() { m.deps.Publisher.Unsubscribe(subID) }) }
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	as, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return as.session, true
}

// Exchanges returns a session's transcript. Sessions no longer in memory
// are read from the store when one is configured.
func (m *Manager) Exchanges(ctx context.Context, id string) ([]Exchange, error) {
	if sess, ok := m.Get(id); ok {
		return sess.History(), nil
	}
	if m.deps.Store == nil {
		return nil, ErrSessionNotFound
	}
	out, err := m.deps.Store.ListExchanges(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrSessionNotFound
	}
	return out, nil
}

// List returns snapshots of all known sessions.
func (m *Manager) List() []View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]View, 0, len(m.sessions))
	for _, as := range m.sessions {
		out = append(out, as.session.Snapshot())
	}
	return out
}

// Stop ends a running interview and waits briefly for it to wind down.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.RLock()
	as, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	if !as.session.Active() {
		return ErrNotActive
	}
	return m.stopAndWait(ctx, as, ReasonStopped)
}

func (m *Manager) stopAndWait(ctx context.Context, as *activeSession, reason string) error {
	as.stop(reason)
	select {
	case <-as.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(stopWait):
		slog.Warn("interview did not stop in time", slog.String("session_id", as.session.ID))
		return nil
	}
}

// Shutdown stops every running interview.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	running := make([]*activeSession, 0, len(m.sessions))
	for _, as := range m.sessions {
		if as.session.Active() {
			running = append(running, as)
		}
	}
	m.mu.RUnlock()

	for _, as := range running {
		_ = m.stopAndWait(ctx, as, ReasonShutdown)
	}
}

// StartReaper begins the background session TTL reaper.
func (m *Manager) StartReaper(ctx context.Context) {
	m.submit(ctx, func() {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reap(time.Now())
			}
		}
	})
}

// reap expires sessions running longer than the TTL and forgets finished
// ones a TTL after they stopped.
func (m *Manager) reap(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, as := range m.sessions {
		view := as.session.Snapshot()
		switch {
		case view.Active && now.Sub(view.StartedAt) > m.cfg.SessionTTL:
			slog.Warn("expiring interview session", slog.String("session_id", id))
			as.stop(ReasonExpired)
		case !view.Active && view.StoppedAt != nil && now.Sub(*view.StoppedAt) > m.cfg.SessionTTL:
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) submit(ctx context.Context, fn func()) {
	if m.deps.Pool != nil {
		if err := m.deps.Pool.Submit(ctx, fn); err == nil {
			return
		}
	}
	go fn()
}

func (m *Manager) emit(ctx context.Context, sessionID string, t events.EventType, data any) {
	if err := m.deps.Publisher.Emit(ctx, t, sessionID, data); err != nil {
		slog.WarnContext(ctx, "emit event failed",
			slog.String("event_type", string(t)), slog.String("error", err.Error()))
	}
}
