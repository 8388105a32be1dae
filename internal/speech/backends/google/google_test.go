package google

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func TestASRJoinsSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			t.Error("missing key query parameter")
		}
		var req recognizeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Config.SampleRateHertz != 16000 || req.Config.Encoding != "LINEAR16" {
			t.Errorf("config = %+v", req.Config)
		}
		w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"I led a team"}]},{"alternatives":[{"transcript":" of four."}]}]}`))
	}))
	defer srv.Close()

	asr, err := registry.ASR.Create("google", map[string]string{"api_key": "k", "base_url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	text, err := asr.Transcribe(t.Context(), engine.Utterance{PCM: make([]byte, 32), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "I led a team of four." {
		t.Errorf("text = %q", text)
	}
}

func TestTTSStripsWAVHeader(t *testing.T) {
	pcm := engine.SamplesToBytes([]int16{10, 20, 30})
	wav, _ := codec.EncodeWAV(pcm, engine.PCM16Mono(16000))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Voice.LanguageCode != "en-GB" {
			t.Errorf("language = %q", req.Voice.LanguageCode)
		}
		json.NewEncoder(w).Encode(synthResponse{AudioContent: base64.StdEncoding.EncodeToString(wav)})
	}))
	defer srv.Close()

	tts, err := registry.TTS.Create("google", map[string]string{"api_key": "k", "base_url": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	rc, err := tts.Synthesize(t.Context(), "Thanks.", engine.VoiceParams{ID: "en-GB-Neural2-B"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, _ := io.ReadAll(rc)
	if string(got) != string(pcm) {
		t.Errorf("got %v, want %v", got, pcm)
	}
}
