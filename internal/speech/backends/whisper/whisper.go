package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/codec"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

// whisper.cpp only accepts 16kHz input.
const modelRate = 16000

func init() {
	registry.ASR.Register("whisper", func(config map[string]string) (engine.Transcriber, error) {
		modelPath := config["model_path"]
		if modelPath == "" {
			// Derive model path from model name if specified.
			if m := config["model"]; m != "" {
				modelPath = "./models/" + m + ".bin"
			} else {
				modelPath = "./models/ggml-base.bin"
			}
		}
		poolSize := 2
		if s := config["pool_size"]; s != "" {
			if v, err := strconv.Atoi(s); err == nil {
				poolSize = v
			}
		}
		return NewWhisperASR(
			restutil.ConfigValue(config, "whisper-cli", "binary_path"),
			modelPath,
			restutil.ConfigValue(config, "en", "language"),
			poolSize,
		)
	})
}

// WhisperASR implements engine.Transcriber by running the whisper.cpp CLI
// on a temporary WAV file. At most poolSize processes run concurrently.
type WhisperASR struct {
	binaryPath string
	modelPath  string
	language   string
	slots      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewWhisperASR creates a new Whisper ASR engine.
func NewWhisperASR(binaryPath, modelPath, language string, poolSize int) (*WhisperASR, error) {
	if poolSize <= 0 {
		poolSize = 2
	}

	return &WhisperASR{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		language:   language,
		slots:      make(chan struct{}, poolSize),
	}, nil
}

func (w *WhisperASR) Transcribe(ctx context.Context, u engine.Utterance) (string, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", errors.New("whisper ASR is closed")
	}
	w.mu.Unlock()

	select {
	case w.slots <- struct{}{}:
		defer func() { <-w.slots }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	dir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return "", fmt.Errorf("whisper: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "utterance.wav")
	pcm := codec.Resample(u.PCM, u.SampleRate, modelRate)
	if err := codec.WriteWAVFile(wavPath, pcm, engine.PCM16Mono(modelRate)); err != nil {
		return "", fmt.Errorf("whisper: write wav: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.binaryPath,
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", w.language,
		"-nt", // no timestamps
		"-np", // no progress or system prints
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	lines := strings.Fields(stdout.String())
	return strings.Join(lines, " "), nil
}

// Models returns the available Whisper models.
func (w *WhisperASR) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "ggml-base", DisplayName: "Whisper Base", IsDefault: true},
		{ID: "ggml-small", DisplayName: "Whisper Small"},
		{ID: "ggml-medium", DisplayName: "Whisper Medium"},
		{ID: "ggml-large-v3", DisplayName: "Whisper Large v3"},
	}
}

// Close rejects further transcriptions.
func (w *WhisperASR) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
