package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func init() {
	registry.ASR.Register("deepgram", func(config map[string]string) (engine.Transcriber, error) {
		apiKey := restutil.ConfigValue(config, "", "deepgram_api_key", "api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("deepgram API key required (set deepgram_api_key in config)")
		}
		return &ASR{
			apiKey:   apiKey,
			baseURL:  restutil.ConfigValue(config, "https://api.deepgram.com/v1", "deepgram_base_url", "base_url"),
			model:    restutil.ConfigValue(config, "nova-2", "model"),
			language: restutil.ConfigValue(config, "en", "language"),
			keywords: splitKeywords(config["keywords"]),
		}, nil
	})
}

type response struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float32 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// splitKeywords parses "kubernetes:2,golang" into boosted terms.
func splitKeywords(raw string) []string {
	var out []string
	for kw := range strings.SplitSeq(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ASR implements engine.Transcriber using the Deepgram pre-recorded REST API.
type ASR struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	keywords []string
}

// Transcribe posts one utterance as linear16 PCM and returns the top
// alternative of the first channel.
func (d *ASR) Transcribe(ctx context.Context, u engine.Utterance) (string, error) {
	params := url.Values{
		"model":        {d.model},
		"language":     {d.language},
		"smart_format": {"true"},
		"keywords":     d.keywords,
	}
	apiURL := d.baseURL + "/listen?" + params.Encode()

	headers := map[string]string{
		"Authorization": "Token " + d.apiKey,
		"Content-Type":  "audio/l16;rate=" + strconv.Itoa(u.SampleRate) + ";channels=1",
	}

	body, err := restutil.DoRaw(ctx, http.MethodPost, apiURL, headers, bytes.NewReader(u.PCM))
	if err != nil {
		return "", fmt.Errorf("deepgram API: %w", err)
	}
	defer body.Close()

	var resp response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("deepgram decode: %w", err)
	}

	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(resp.Results.Channels[0].Alternatives[0].Transcript), nil
	}
	return "", nil
}

func (d *ASR) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "nova-2", DisplayName: "Nova 2", IsDefault: true},
		{ID: "nova-2-general", DisplayName: "Nova 2 General"},
		{ID: "nova-2-meeting", DisplayName: "Nova 2 Meeting"},
		{ID: "nova-2-phonecall", DisplayName: "Nova 2 Phone Call"},
		{ID: "enhanced", DisplayName: "Enhanced"},
		{ID: "base", DisplayName: "Base"},
	}
}

func (d *ASR) Close() error {
	return nil
}
