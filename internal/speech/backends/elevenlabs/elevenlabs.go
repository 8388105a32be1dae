package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

const (
	defaultVoice           = "21m00Tcm4TlvDq8ikWAM" // Rachel
	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75
)

func init() {
	registry.TTS.Register("elevenlabs", func(config map[string]string) (engine.Synthesizer, error) {
		apiKey := restutil.ConfigValue(config, "", "elevenlabs_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("elevenlabs API key required (set elevenlabs_api_key in config)")
		}
		rate, err := strconv.Atoi(restutil.ConfigValue(config, "16000", "sample_rate"))
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: invalid sample_rate: %w", err)
		}
		switch rate {
		case 16000, 22050, 24000, 44100:
		default:
			return nil, fmt.Errorf("elevenlabs: unsupported sample_rate %d", rate)
		}
		return &TTS{
			apiKey:     apiKey,
			baseURL:    restutil.ConfigValue(config, "https://api.elevenlabs.io/v1", "elevenlabs_base_url", "base_url"),
			model:      restutil.ConfigValue(config, "eleven_multilingual_v2", "model"),
			sampleRate: rate,
		}, nil
	})
}

type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// TTS implements engine.Synthesizer using the ElevenLabs streaming API.
type TTS struct {
	apiKey     string
	baseURL    string
	model      string
	sampleRate int
}

// Synthesize returns raw PCM as it streams from the service, so playback
// can begin before the whole utterance is generated.
func (e *TTS) Synthesize(ctx context.Context, text string, voice engine.VoiceParams) (io.ReadCloser, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoice
	}
	settings := voiceSettings{Stability: voice.Stability, SimilarityBoost: voice.SimilarityBoost}
	if settings.Stability == 0 {
		settings.Stability = defaultStability
	}
	if settings.SimilarityBoost == 0 {
		settings.SimilarityBoost = defaultSimilarityBoost
	}

	apiURL := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=pcm_%d", e.baseURL, voiceID, e.sampleRate)
	headers := map[string]string{
		"xi-api-key":   e.apiKey,
		"Content-Type": "application/json",
	}
	req := request{Text: text, ModelID: e.model, VoiceSettings: settings}

	body, err := restutil.DoRaw(ctx, http.MethodPost, apiURL, headers, marshalJSON(req))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs TTS: %w", err)
	}
	return body, nil
}

func (e *TTS) Format() engine.AudioFormat {
	return engine.PCM16Mono(e.sampleRate)
}

func (e *TTS) Voices() []engine.Voice {
	return []engine.Voice{
		{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Language: "en"},
		{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Language: "en"},
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Language: "en"},
		{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Language: "en"},
	}
}

func (e *TTS) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "eleven_multilingual_v2", DisplayName: "Multilingual v2", IsDefault: true},
		{ID: "eleven_monolingual_v1", DisplayName: "Monolingual v1"},
		{ID: "eleven_turbo_v2", DisplayName: "Turbo v2"},
	}
}

func (e *TTS) Close() error {
	return nil
}

func marshalJSON(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}
