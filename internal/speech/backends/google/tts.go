package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

const ttsSampleRate = 16000

func init() {
	registry.TTS.Register("google", func(config map[string]string) (engine.Synthesizer, error) {
		apiKey := restutil.ConfigValue(config, "", "google_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("google API key required (set google_api_key in config)")
		}
		return &TTS{
			apiKey:  apiKey,
			baseURL: restutil.ConfigValue(config, "https://texttospeech.googleapis.com/v1", "google_tts_url", "base_url"),
		}, nil
	})
}

type synthRequest struct {
	Input       synthInput       `json:"input"`
	Voice       synthVoice       `json:"voice"`
	AudioConfig synthAudioConfig `json:"audioConfig"`
}

type synthInput struct {
	Text string `json:"text"`
}

type synthVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type synthAudioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz"`
}

type synthResponse struct {
	AudioContent string `json:"audioContent"` // base64-encoded
}

// TTS implements engine.Synthesizer using the Google Cloud Text-to-Speech REST API.
type TTS struct {
	apiKey  string
	baseURL string
}

func (g *TTS) Synthesize(ctx context.Context, text string, voice engine.VoiceParams) (io.ReadCloser, error) {
	name := voice.ID
	if name == "" {
		name = "en-US-Neural2-A"
	}

	req := synthRequest{
		Input: synthInput{Text: text},
		Voice: synthVoice{
			LanguageCode: languageOf(name),
			Name:         name,
		},
		AudioConfig: synthAudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: ttsSampleRate,
		},
	}

	var resp synthResponse
	if err := restutil.DoJSON(ctx, http.MethodPost, g.baseURL+"/text:synthesize?key="+g.apiKey, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("google TTS: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google TTS decode audio: %w", err)
	}

	// LINEAR16 responses carry a WAV header.
	if len(audio) >= 44 && string(audio[:4]) == "RIFF" {
		audio = audio[44:]
	}
	return io.NopCloser(bytes.NewReader(audio)), nil
}

func (g *TTS) Format() engine.AudioFormat {
	return engine.PCM16Mono(ttsSampleRate)
}

func (g *TTS) Voices() []engine.Voice {
	return []engine.Voice{
		{ID: "en-US-Neural2-A", Name: "Neural2 A (Female)", Language: "en-US"},
		{ID: "en-US-Neural2-C", Name: "Neural2 C (Female)", Language: "en-US"},
		{ID: "en-US-Studio-M", Name: "Studio M (Male)", Language: "en-US"},
		{ID: "en-US-Studio-O", Name: "Studio O (Female)", Language: "en-US"},
	}
}

func (g *TTS) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "neural2", DisplayName: "Neural2", IsDefault: true},
		{ID: "studio", DisplayName: "Studio"},
	}
}

func (g *TTS) Close() error {
	return nil
}

// languageOf extracts "en-US" from a voice name like "en-US-Neural2-A".
func languageOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return "en-US"
	}
	return parts[0] + "-" + parts[1]
}
