// Package config holds the environment-driven configuration of the
// interviewer service.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pitabwire/frame/config"

	"github.com/voicetyped/interviewer/internal/pipeline"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/breaker"
	"github.com/voicetyped/interviewer/pkg/webhook"
)

// Backend kinds accepted by BackendConfig.
const (
	KindASR    = "asr"
	KindTTS    = "tts"
	KindLLM    = "llm"
	KindAvatar = "avatar"
)

// Audio devices.
const (
	DeviceLocal     = "local"
	DeviceWebSocket = "websocket"
)

// ConfigError reports every invalid setting at once.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// InterviewConfig configures the interviewer service.
type InterviewConfig struct {
	config.ConfigurationDefault

	// Capture
	SampleRate       int     `envDefault:"16000"    env:"SAMPLE_RATE"`
	BlockSize        int     `envDefault:"1600"     env:"BLOCK_SIZE"`
	SilenceThreshold float64 `envDefault:"0.008"    env:"SILENCE_THRESHOLD"`
	ThresholdMetric  string  `envDefault:"mean_abs" env:"THRESHOLD_METRIC"`
	SilenceDuration  float64 `envDefault:"1.2"      env:"SILENCE_DURATION_SEC"`
	MaxRecord        float64 `envDefault:"60"       env:"MAX_RECORD_SEC"`
	NoSpeechTimeout  float64 `envDefault:"10"       env:"NO_SPEECH_TIMEOUT_SEC"`
	PlaybackRate     int     `envDefault:"16000"    env:"PLAYBACK_SAMPLE_RATE"`
	AudioDevice      string  `envDefault:"websocket" env:"AUDIO_DEVICE"`
	AllowedOrigins   string  `envDefault:""         env:"ALLOWED_ORIGINS"`

	// Backends
	ASRBackend    string `envDefault:"openai"     env:"ASR_BACKEND"`
	TTSBackend    string `envDefault:"elevenlabs" env:"TTS_BACKEND"`
	LLMBackend    string `envDefault:"openai"     env:"LLM_BACKEND"`
	AvatarBackend string `envDefault:""           env:"AVATAR_BACKEND"`

	OpenAIAPIKey      string `envDefault:""                               env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envDefault:"https://api.openai.com/v1"      env:"OPENAI_BASE_URL"`
	ElevenLabsAPIKey  string `envDefault:""                               env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `envDefault:"https://api.elevenlabs.io/v1"   env:"ELEVENLABS_BASE_URL"`
	DeepgramAPIKey    string `envDefault:""                               env:"DEEPGRAM_API_KEY"`
	GoogleAPIKey      string `envDefault:""                               env:"GOOGLE_API_KEY"`

	ASRModel    string `envDefault:""            env:"ASR_MODEL"`
	ASRLanguage string `envDefault:""            env:"ASR_LANGUAGE"`
	ASRKeywords string `envDefault:""            env:"ASR_KEYWORDS"`
	TTSModel    string `envDefault:""            env:"TTS_MODEL"`
	ChatModel   string `envDefault:"gpt-4o-mini" env:"CHAT_MODEL"`

	VoiceID              string  `envDefault:""     env:"VOICE_ID"`
	VoiceStability       float64 `envDefault:"0.5"  env:"VOICE_STABILITY"`
	VoiceSimilarityBoost float64 `envDefault:"0.75" env:"VOICE_SIMILARITY_BOOST"`
	Temperature          float64 `envDefault:"0.7"  env:"TEMPERATURE"`

	WhisperBinaryPath string `envDefault:"whisper-cli"                    env:"WHISPER_BINARY_PATH"`
	WhisperModelPath  string `envDefault:"./models/ggml-base.bin"         env:"WHISPER_MODEL_PATH"`
	WhisperPoolSize   int    `envDefault:"2"                              env:"WHISPER_POOL_SIZE"`
	PiperBinaryPath   string `envDefault:"piper"                          env:"PIPER_BINARY_PATH"`
	PiperModelPath    string `envDefault:"./models/en_US-amy-medium.onnx" env:"PIPER_MODEL_PATH"`
	PiperSampleRate   int    `envDefault:"22050"                          env:"PIPER_SAMPLE_RATE"`
	SadTalkerDir      string `envDefault:"./SadTalker"                    env:"SADTALKER_DIR"`
	SadTalkerPython   string `envDefault:"python"                         env:"SADTALKER_PYTHON"`
	AvatarHookURL     string `envDefault:""                               env:"AVATAR_HOOK_URL"`
	AvatarHookSecret  string `envDefault:""                               env:"AVATAR_HOOK_SECRET"`
	AvatarImage       string `envDefault:"./avatar.png"                   env:"AVATAR_IMAGE"`
	OutputDir         string `envDefault:"./output"                       env:"OUTPUT_DIR"`
	AvatarTimeoutSec  int    `envDefault:"600"                            env:"AVATAR_TIMEOUT_SEC"`

	// Pipeline
	DialogueMode   string `envDefault:"batch" env:"DIALOGUE_MODE"`
	OverlapTurns   bool   `envDefault:"false" env:"OVERLAP_TURNS"`
	QueueCapacity  int    `envDefault:"8"     env:"QUEUE_CAPACITY"`
	CallTimeoutSec int    `envDefault:"60"    env:"CALL_TIMEOUT_SEC"`
	ChunkSize      int    `envDefault:"4800"  env:"CHUNK_SIZE"`

	BreakerFailures   int `envDefault:"5"  env:"BREAKER_FAILURE_THRESHOLD"`
	BreakerResetSec   int `envDefault:"30" env:"BREAKER_RESET_SEC"`
	SessionTTLMinutes int `envDefault:"120" env:"SESSION_TTL_MINUTES"`

	// Profiles
	ProfileDir     string `envDefault:"./profiles" env:"PROFILE_DIR"`
	DefaultProfile string `envDefault:"default"    env:"DEFAULT_PROFILE"`

	// Persistence and webhooks
	PersistExchanges  bool   `envDefault:"false" env:"PERSIST_EXCHANGES"`
	WebhooksEnabled   bool   `envDefault:"false" env:"WEBHOOKS_ENABLED"`
	WebhookDispatch   string `envDefault:"queue" env:"WEBHOOK_DISPATCH"`
	WebhookMaxRetries int    `envDefault:"5"     env:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeoutSec int    `envDefault:"10"    env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookBackoffSec int    `envDefault:"1"     env:"WEBHOOK_BACKOFF_INITIAL_SEC"`
	WebhookBackoffMax int    `envDefault:"300"   env:"WEBHOOK_BACKOFF_MAX_SEC"`
	AuthEnabled       bool   `envDefault:"false" env:"AUTH_ENABLED"`
}

func sec(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// Validate checks ranges and that the selected backends have their
// credentials. It returns a *ConfigError.
func (c *InterviewConfig) Validate() error {
	var p []string
	add := func(format string, args ...any) { p = append(p, fmt.Sprintf(format, args...)) }

	if c.SampleRate < 16000 || c.SampleRate > 44100 {
		add("SAMPLE_RATE must be between 16000 and 44100, got %d", c.SampleRate)
	}
	if c.PlaybackRate < 8000 || c.PlaybackRate > 48000 {
		add("PLAYBACK_SAMPLE_RATE must be between 8000 and 48000, got %d", c.PlaybackRate)
	}
	if c.BlockSize <= 0 {
		add("BLOCK_SIZE must be positive")
	}
	if c.SilenceThreshold <= 0 || c.SilenceThreshold >= 1 {
		add("SILENCE_THRESHOLD must be in (0,1), got %g", c.SilenceThreshold)
	}
	if _, err := engine.ParseMetric(c.ThresholdMetric); err != nil {
		add("THRESHOLD_METRIC: %v", err)
	}
	if c.SilenceDuration < 0.5 || c.SilenceDuration > 3 {
		add("SILENCE_DURATION_SEC must be between 0.5 and 3, got %g", c.SilenceDuration)
	}
	if c.MaxRecord < 10 || c.MaxRecord > 120 {
		add("MAX_RECORD_SEC must be between 10 and 120, got %g", c.MaxRecord)
	}
	if c.NoSpeechTimeout <= 0 {
		add("NO_SPEECH_TIMEOUT_SEC must be positive")
	}
	if c.DialogueMode != "batch" && c.DialogueMode != "streaming" {
		add("DIALOGUE_MODE must be batch or streaming, got %q", c.DialogueMode)
	}
	if c.AudioDevice != DeviceLocal && c.AudioDevice != DeviceWebSocket {
		add("AUDIO_DEVICE must be local or websocket, got %q", c.AudioDevice)
	}
	if c.QueueCapacity <= 0 {
		add("QUEUE_CAPACITY must be positive")
	}
	if c.CallTimeoutSec <= 0 {
		add("CALL_TIMEOUT_SEC must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		add("TEMPERATURE must be between 0 and 2, got %g", c.Temperature)
	}
	if c.VoiceStability < 0 || c.VoiceStability > 1 || c.VoiceSimilarityBoost < 0 || c.VoiceSimilarityBoost > 1 {
		add("VOICE_STABILITY and VOICE_SIMILARITY_BOOST must be in [0,1]")
	}
	if c.WebhookDispatch != "queue" && c.WebhookDispatch != "local" {
		add("WEBHOOK_DISPATCH must be queue or local, got %q", c.WebhookDispatch)
	}
	// Five stage tasks run per session on the shared pool.
	if c.WorkerPoolCount > 0 && c.WorkerPoolCount < 5 {
		add("WORKER_POOL_COUNT must be at least 5, got %d", c.WorkerPoolCount)
	}

	for _, b := range []struct{ kind, name string }{
		{KindASR, c.ASRBackend}, {KindTTS, c.TTSBackend}, {KindLLM, c.LLMBackend}, {KindAvatar, c.AvatarBackend},
	} {
		if err := c.checkCredentials(b.kind, b.name); err != nil {
			p = append(p, err.Error())
		}
	}

	if len(p) > 0 {
		return &ConfigError{Problems: p}
	}
	return nil
}

func (c *InterviewConfig) checkCredentials(kind, name string) error {
	missing := func(env string) error {
		return fmt.Errorf("%s backend %q requires %s", kind, name, env)
	}
	switch name {
	case "":
		if kind != KindAvatar {
			return fmt.Errorf("%s backend is required", kind)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return missing("OPENAI_API_KEY")
		}
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			return missing("ELEVENLABS_API_KEY")
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return missing("DEEPGRAM_API_KEY")
		}
	case "google":
		if c.GoogleAPIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
	case "hook":
		if c.AvatarHookURL == "" {
			return missing("AVATAR_HOOK_URL")
		}
	case "whisper", "piper", "sadtalker":
	default:
		return errors.New(kind + " backend " + strconv.Quote(name) + " is not supported")
	}
	return nil
}

// Breaker returns the breaker settings shared by the model backends and
// webhook endpoints.
func (c *InterviewConfig) Breaker() breaker.Config {
	return breaker.Config{
		FailureThreshold:    c.BreakerFailures,
		ResetTimeout:        time.Duration(c.BreakerResetSec) * time.Second,
		HalfOpenMaxAttempts: 1,
	}
}

// SessionTTL is how long an interview may run, and how long a stopped one
// stays queryable.
func (c *InterviewConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Origins splits ALLOWED_ORIGINS.
func (c *InterviewConfig) Origins() []string {
	var out []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// PipelineOptions projects the configuration onto the per-session
// pipeline defaults. Profiles may override model, voice and temperature.
func (c *InterviewConfig) PipelineOptions() pipeline.Options {
	metric, _ := engine.ParseMetric(c.ThresholdMetric)
	return pipeline.Options{
		Capture: pipeline.CaptureConfig{
			BlockSize:        c.BlockSize,
			SilenceThreshold: c.SilenceThreshold,
			Metric:           metric,
			SilenceDuration:  sec(c.SilenceDuration),
			MaxRecord:        sec(c.MaxRecord),
			NoSpeechTimeout:  sec(c.NoSpeechTimeout),
		},
		Streaming:   c.DialogueMode == "streaming",
		Model:       c.ChatModel,
		Temperature: float32(c.Temperature),
		Voice: engine.VoiceParams{
			ID:              c.VoiceID,
			Stability:       c.VoiceStability,
			SimilarityBoost: c.VoiceSimilarityBoost,
		},
		ChunkSize:     c.ChunkSize,
		QueueCapacity: c.QueueCapacity,
		CallTimeout:   time.Duration(c.CallTimeoutSec) * time.Second,
		OverlapTurns:  c.OverlapTurns,
		AvatarImage:   c.AvatarImage,
		OutputDir:     c.OutputDir,
		AvatarTimeout: time.Duration(c.AvatarTimeoutSec) * time.Second,
	}
}

// BackendConfig returns the flat factory config for one backend kind.
func (c *InterviewConfig) BackendConfig(kind string) map[string]string {
	m := map[string]string{
		"openai_api_key":      c.OpenAIAPIKey,
		"openai_base_url":     c.OpenAIBaseURL,
		"elevenlabs_api_key":  c.ElevenLabsAPIKey,
		"elevenlabs_base_url": c.ElevenLabsBaseURL,
		"deepgram_api_key":    c.DeepgramAPIKey,
		"google_api_key":      c.GoogleAPIKey,
	}
	switch kind {
	case KindASR:
		m["model"] = c.ASRModel
		m["language"] = c.ASRLanguage
		m["keywords"] = c.ASRKeywords
		m["binary_path"] = c.WhisperBinaryPath
		m["model_path"] = c.WhisperModelPath
		m["pool_size"] = strconv.Itoa(c.WhisperPoolSize)
	case KindTTS:
		m["model"] = c.TTSModel
		m["binary_path"] = c.PiperBinaryPath
		m["model_path"] = c.PiperModelPath
		if c.TTSBackend == "piper" {
			m["sample_rate"] = strconv.Itoa(c.PiperSampleRate)
		} else {
			m["sample_rate"] = strconv.Itoa(c.PlaybackRate)
		}
	case KindLLM:
		m["model"] = c.ChatModel
	case KindAvatar:
		m["sadtalker_dir"] = c.SadTalkerDir
		m["python_path"] = c.SadTalkerPython
		m["result_dir"] = c.OutputDir + "/video"
		m["hook_url"] = c.AvatarHookURL
		if c.AvatarHookSecret != "" {
			m["auth_type"] = "hmac"
			m["auth_secret"] = c.AvatarHookSecret
		}
		m["timeout_sec"] = strconv.Itoa(c.AvatarTimeoutSec)
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

// DelivererConfig projects the webhook settings.
func (c *InterviewConfig) DelivererConfig() webhook.DelivererConfig {
	return webhook.DelivererConfig{
		MaxRetries:     c.WebhookMaxRetries,
		Timeout:        time.Duration(c.WebhookTimeoutSec) * time.Second,
		BackoffInitial: time.Duration(c.WebhookBackoffSec) * time.Second,
		BackoffMax:     time.Duration(c.WebhookBackoffMax) * time.Second,
		Breaker:        c.Breaker(),
	}
}
