package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func TestRegistryRequiresKey(t *testing.T) {
	if _, err := registry.ASR.Create("openai", map[string]string{}); err == nil {
		t.Error("expected error without api key")
	}
	if _, err := registry.LLM.Create("openai", map[string]string{"api_key": "k"}); err != nil {
		t.Errorf("LLM create: %v", err)
	}
}

func TestASRTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data[:4]) != "RIFF" {
			t.Error("upload is not a WAV file")
		}
		w.Write([]byte(`{"text":"  I am ready. "}`))
	}))
	defer srv.Close()

	asr, err := registry.ASR.Create("openai", map[string]string{"api_key": "k", "base_url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	text, err := asr.Transcribe(t.Context(), engine.Utterance{PCM: make([]byte, 3200), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "I am ready." {
		t.Errorf("text = %q", text)
	}
}

func TestTTSSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Voice != "nova" || req.ResponseFormat != "pcm" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write(make([]byte, 480))
	}))
	defer srv.Close()

	tts, err := registry.TTS.Create("openai", map[string]string{"api_key": "k", "base_url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if tts.Format().SampleRate != 24000 {
		t.Errorf("format = %+v", tts.Format())
	}
	rc, err := tts.Synthesize(t.Context(), "Hello.", engine.VoiceParams{ID: "nova"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer rc.Close()
	pcm, _ := io.ReadAll(rc)
	if len(pcm) != 480 {
		t.Errorf("got %d bytes", len(pcm))
	}
}

func TestChatComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Tell me about yourself."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	chat := NewChat("k", srv.URL)
	reply, err := chat.Complete(t.Context(), engine.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []engine.Message{
			{Role: engine.RoleSystem, Content: "You are an interviewer."},
			{Role: engine.RoleUser, Content: "Hi."},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Tell me about yourself." {
		t.Errorf("reply = %q", reply)
	}
}

func TestChatStream(t *testing.T) {
	fragments := []string{"Tell ", "me ", "", "more."}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range fragments {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chat := NewChat("k", srv.URL)
	var got []string
	err := chat.Stream(t.Context(), engine.ChatRequest{Model: "m"}, func(f string) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("fragments = %q, want empty deltas skipped", got)
	}
	if strings.Join(got, "") != "Tell me more." {
		t.Errorf("joined = %q", strings.Join(got, ""))
	}
}
