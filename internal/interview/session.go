// Package interview runs interview sessions on top of the voice pipeline:
// it holds the conversation context, builds prompts from profiles and
// tracks the lifecycle of every active session.
package interview

import (
	"sync"
	"time"

	"github.com/voicetyped/interviewer/pkg/profile"
)

// DefaultMaxHistory is the maximum number of exchanges kept in memory.
const DefaultMaxHistory = 200

// Exchange is one question from the interviewer and the candidate's answer.
type Exchange struct {
	Turn     int64     `json:"turn"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Session holds the context of one interview. All access is thread-safe.
// Only the dialogue stage appends to the history.
type Session struct {
	mu         sync.RWMutex
	maxHistory int

	ID        string
	Profile   *profile.Profile
	Device    string
	StartTime time.Time

	resumeSummary string
	jdSummary     string
	variables     map[string]string
	history       []Exchange
	asked         int
	pending       string // question still waiting for an answer
	active        bool
	stoppedAt     time.Time
	stopReason    string
	closingTurn   int64
}

// NewSession creates an inactive session for the given profile.
func NewSession(id string, p *profile.Profile, device string) *Session {
	return &Session{
		ID:         id,
		Profile:    p,
		Device:     device,
		StartTime:  time.Now(),
		variables:  make(map[string]string),
		maxHistory: DefaultMaxHistory,
	}
}

// SetSummaries stores the résumé and job description summaries.
func (s *Session) SetSummaries(resume, jd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeSummary = resume
	s.jdSummary = jd
}

// Summaries returns the résumé and job description summaries.
func (s *Session) Summaries() (resume, jd string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeSummary, s.jdSummary
}

// SetVariable sets a session variable.
func (s *Session) SetVariable(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[key] = value
}

// CopyVariables returns a snapshot of all session variables.
func (s *Session) CopyVariables() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.variables))
	for k, v := range s.variables {
		cp[k] = v
	}
	return cp
}

// Ask records a question the interviewer has put to the candidate.
func (s *Session) Ask(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = question
}

// Pending returns the question awaiting an answer, if any.
func (s *Session) Pending() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, s.pending != ""
}

// Answer pairs the candidate's answer with the pending question and makes
// reply the next pending question. It returns the recorded exchange and the
// number of answers given so far. Oldest exchanges are evicted past the
// history cap; the answer count is not.
func (s *Session) Answer(turn int64, answer, reply string) (Exchange, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex := Exchange{Turn: turn, Question: s.pending, Answer: answer, At: time.Now()}
	if len(s.history) >= s.maxHistory {
		evict := max(s.maxHistory/10, 1)
		s.history = s.history[evict:]
	}
	s.history = append(s.history, ex)
	s.asked++
	s.pending = reply
	return ex, s.asked
}

// History returns a snapshot of the exchanges.
func (s *Session) History() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Exchange, len(s.history))
	copy(cp, s.history)
	return cp
}

// Answered returns how many answers the candidate has given.
func (s *Session) Answered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.asked
}

// Start marks the session active.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.StartTime = time.Now()
}

// Stop marks the session inactive. Only the first reason is kept.
func (s *Session) Stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active && s.stopReason != "" {
		return
	}
	s.active = false
	s.stoppedAt = time.Now()
	s.stopReason = reason
}

// Active reports whether the interview is running.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// MarkClosing records the turn whose reply ends the interview.
func (s *Session) MarkClosing(turn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closingTurn = turn
}

// ClosingTurn returns the turn whose reply ends the interview, or 0.
func (s *Session) ClosingTurn() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closingTurn
}

// View is a JSON snapshot of a session.
type View struct {
	ID              string            `json:"id"`
	Profile         string            `json:"profile"`
	Device          string            `json:"device"`
	Active          bool              `json:"active"`
	AwaitingAnswer  bool              `json:"awaiting_answer"`
	PendingQuestion string            `json:"pending_question,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	StoppedAt       *time.Time        `json:"stopped_at,omitempty"`
	StopReason      string            `json:"stop_reason,omitempty"`
	ResumeSummary   string            `json:"resume_summary,omitempty"`
	JDSummary       string            `json:"jd_summary,omitempty"`
	Variables       map[string]string `json:"variables,omitempty"`
	Exchanges       []Exchange        `json:"exchanges"`
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		ID:              s.ID,
		Profile:         s.Profile.Name,
		Device:          s.Device,
		Active:          s.active,
		AwaitingAnswer:  s.pending != "",
		PendingQuestion: s.pending,
		StartedAt:       s.StartTime,
		StopReason:      s.stopReason,
		ResumeSummary:   s.resumeSummary,
		JDSummary:       s.jdSummary,
		Variables:       make(map[string]string, len(s.variables)),
		Exchanges:       make([]Exchange, len(s.history)),
	}
	if !s.stoppedAt.IsZero() {
		t := s.stoppedAt
		v.StoppedAt = &t
	}
	for k, val := range s.variables {
		v.Variables[k] = val
	}
	copy(v.Exchanges, s.history)
	return v
}
