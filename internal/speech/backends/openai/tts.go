package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// pcmRate is the fixed sample rate of the API's "pcm" response format.
const pcmRate = 24000

// TTS implements engine.Synthesizer using the OpenAI-compatible speech API.
type TTS struct {
	apiKey  string
	baseURL string
	model   string
}

type ttsRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize streams 24kHz 16-bit mono PCM as the server produces it.
func (o *TTS) Synthesize(ctx context.Context, text string, voice engine.VoiceParams) (io.ReadCloser, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = "alloy"
	}

	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"Content-Type":  "application/json",
	}
	req := ttsRequest{
		Model:          o.model,
		Input:          text,
		Voice:          voiceID,
		ResponseFormat: "pcm",
	}

	body, err := restutil.DoRaw(ctx, http.MethodPost, o.baseURL+"/audio/speech", headers, jsonBody(req))
	if err != nil {
		return nil, fmt.Errorf("openai TTS: %w", err)
	}
	return body, nil
}

func (o *TTS) Format() engine.AudioFormat {
	return engine.PCM16Mono(pcmRate)
}

func (o *TTS) Voices() []engine.Voice {
	return []engine.Voice{
		{ID: "alloy", Name: "Alloy", Language: "en"},
		{ID: "echo", Name: "Echo", Language: "en"},
		{ID: "fable", Name: "Fable", Language: "en"},
		{ID: "onyx", Name: "Onyx", Language: "en"},
		{ID: "nova", Name: "Nova", Language: "en"},
		{ID: "shimmer", Name: "Shimmer", Language: "en"},
	}
}

func (o *TTS) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "tts-1", DisplayName: "TTS 1", IsDefault: true},
		{ID: "tts-1-hd", DisplayName: "TTS 1 HD"},
	}
}

func (o *TTS) Close() error {
	return nil
}
