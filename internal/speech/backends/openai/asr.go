package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// ASR implements engine.Transcriber using the OpenAI-compatible
// transcription API.
type ASR struct {
	apiKey   string
	baseURL  string
	model    string
	language string
}

func (o *ASR) Transcribe(ctx context.Context, u engine.Utterance) (string, error) {
	// The API requires a file container, so wrap the PCM as WAV.
	wav, err := codec.EncodeWAV(u.PCM, engine.PCM16Mono(u.SampleRate))
	if err != nil {
		return "", fmt.Errorf("openai ASR: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("openai ASR: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("openai ASR: write form file: %w", err)
	}
	_ = writer.WriteField("model", o.model)
	_ = writer.WriteField("response_format", "json")
	if o.language != "" {
		_ = writer.WriteField("language", o.language)
	}
	writer.Close()

	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"Content-Type":  writer.FormDataContentType(),
	}

	respBody, err := restutil.DoRaw(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", headers, &body)
	if err != nil {
		return "", fmt.Errorf("openai ASR: %w", err)
	}
	defer respBody.Close()

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("openai ASR decode: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

func (o *ASR) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "whisper-1", DisplayName: "Whisper 1", IsDefault: true},
		{ID: "gpt-4o-transcribe", DisplayName: "GPT-4o Transcribe"},
	}
}

func (o *ASR) Close() error {
	return nil
}
