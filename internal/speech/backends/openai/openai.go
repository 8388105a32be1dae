// Package openai provides transcription, speech and chat backends for the
// OpenAI API and compatible servers.
package openai

import (
	"fmt"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	registry.ASR.Register("openai", func(config map[string]string) (engine.Transcriber, error) {
		apiKey, baseURL, err := credentials(config)
		if err != nil {
			return nil, err
		}
		return &ASR{
			apiKey:   apiKey,
			baseURL:  baseURL,
			model:    restutil.ConfigValue(config, "whisper-1", "model"),
			language: config["language"],
		}, nil
	})

	registry.TTS.Register("openai", func(config map[string]string) (engine.Synthesizer, error) {
		apiKey, baseURL, err := credentials(config)
		if err != nil {
			return nil, err
		}
		return &TTS{
			apiKey:  apiKey,
			baseURL: baseURL,
			model:   restutil.ConfigValue(config, "tts-1", "model"),
		}, nil
	})

	registry.LLM.Register("openai", func(config map[string]string) (engine.ChatModel, error) {
		apiKey, baseURL, err := credentials(config)
		if err != nil {
			return nil, err
		}
		return NewChat(apiKey, baseURL), nil
	})
}

func credentials(config map[string]string) (apiKey, baseURL string, err error) {
	apiKey = restutil.ConfigValue(config, "", "openai_api_key", "api_key")
	if apiKey == "" {
		return "", "", fmt.Errorf("openai API key required (set openai_api_key in config)")
	}
	baseURL = restutil.ConfigValue(config, defaultBaseURL, "openai_base_url", "base_url")
	return apiKey, baseURL, nil
}
