package interview

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/voicetyped/interviewer/internal/audio"
	"github.com/voicetyped/interviewer/internal/pipeline"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/events"
	"github.com/voicetyped/interviewer/pkg/profile"
)

const rate = 16000

type fakeASR struct{ text string }

func (f *fakeASR) Transcribe(context.Context, engine.Utterance) (string, error) { return f.text, nil }
func (f *fakeASR) Models() []engine.ModelInfo                                   { return nil }
func (f *fakeASR) Close() error                                                 { return nil }

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []engine.ChatRequest
}

func (f *fakeLLM) Complete(_ context.Context, req engine.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeLLM) Stream(ctx context.Context, req engine.ChatRequest, emit engine.FragmentFunc) error {
	reply, err := f.Complete(ctx, req)
	if err != nil {
		return err
	}
	return emit(reply)
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) Requests() []engine.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(context.Context, string, engine.VoiceParams) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(make([]byte, 640))), nil
}
func (fakeTTS) Format() engine.AudioFormat { return engine.PCM16Mono(rate) }
func (fakeTTS) Voices() []engine.Voice     { return nil }
func (fakeTTS) Models() []engine.ModelInfo { return nil }
func (fakeTTS) Close() error               { return nil }

type profiles map[string]*profile.Profile

func (p profiles) Get(name string) (*profile.Profile, bool) {
	v, ok := p[name]
	return v, ok
}

type fakeStore struct {
	mu    sync.Mutex
	saved []Exchange
}

func (s *fakeStore) SaveExchange(_ context.Context, _, _ string, ex Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, ex)
	return nil
}

func (s *fakeStore) ListExchanges(context.Context, string) ([]Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.saved), nil
}

// closeCounter records Close calls on a memory device.
type closeCounter struct {
	*audio.Memory
	mu     sync.Mutex
	closed int
}

func (c *closeCounter) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return c.Memory.Close()
}

func (c *closeCounter) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// answers returns n spoken answers, each followed by enough silence to
// end the turn.
func answers(n int) []int16 {
	var out []int16
	for range n {
		for i := range rate {
			s := engine.Amplitude(0.5)
			if i%2 == 1 {
				s = -s
			}
			out = append(out, s)
		}
		out = append(out, make([]int16, rate*3/2)...)
	}
	return out
}

func newDevice(turns int) *closeCounter {
	mic := audio.NewMemory(rate, answers(turns))
	mic.Hold = true
	return &closeCounter{Memory: mic}
}

func baseConfig() Config {
	return Config{
		Pipeline: pipeline.Options{
			Capture: pipeline.CaptureConfig{
				BlockSize:        1600,
				SilenceThreshold: 0.008,
				Metric:           engine.MetricMeanAbs,
				SilenceDuration:  1200 * time.Millisecond,
				MaxRecord:        60 * time.Second,
				NoSpeechTimeout:  10 * time.Second,
			},
			Model:         "gpt-4o-mini",
			QueueCapacity: 4,
			CallTimeout:   5 * time.Second,
		},
		DefaultProfile: "backend",
	}
}

func waitFor(t *testing.T, ch <-chan events.Envelope, typ events.EventType) events.Envelope {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("event stream closed before %s", typ)
			}
			if env.Type == typ {
				return env
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
