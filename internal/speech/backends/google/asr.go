package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func init() {
	registry.ASR.Register("google", func(config map[string]string) (engine.Transcriber, error) {
		apiKey := restutil.ConfigValue(config, "", "google_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("google API key required (set google_api_key in config)")
		}
		return &ASR{
			apiKey:   apiKey,
			baseURL:  restutil.ConfigValue(config, "https://speech.googleapis.com/v1", "google_speech_url", "base_url"),
			model:    restutil.ConfigValue(config, "latest_long", "model"),
			language: restutil.ConfigValue(config, "en-US", "language"),
		}, nil
	})
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	Model                      string `json:"model"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float32 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// ASR implements engine.Transcriber using the Google Cloud Speech-to-Text REST API.
type ASR struct {
	apiKey   string
	baseURL  string
	model    string
	language string
}

// Transcribe joins the top alternative of every result segment.
func (g *ASR) Transcribe(ctx context.Context, u engine.Utterance) (string, error) {
	apiURL := g.baseURL + "/speech:recognize?key=" + g.apiKey

	req := recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            u.SampleRate,
			LanguageCode:               g.language,
			Model:                      g.model,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognizeAudio{
			Content: base64.StdEncoding.EncodeToString(u.PCM),
		},
	}

	var resp recognizeResponse
	if err := restutil.DoJSON(ctx, http.MethodPost, apiURL, nil, req, &resp); err != nil {
		return "", fmt.Errorf("google ASR: %w", err)
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *ASR) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "latest_long", DisplayName: "Latest Long", IsDefault: true},
		{ID: "latest_short", DisplayName: "Latest Short"},
		{ID: "chirp_2", DisplayName: "Chirp 2"},
		{ID: "chirp", DisplayName: "Chirp"},
	}
}

func (g *ASR) Close() error {
	return nil
}
