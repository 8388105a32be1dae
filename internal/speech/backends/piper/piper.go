package piper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func init() {
	registry.TTS.Register("piper", func(config map[string]string) (engine.Synthesizer, error) {
		rate, err := strconv.Atoi(restutil.ConfigValue(config, "22050", "sample_rate"))
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("piper: invalid sample_rate %q", config["sample_rate"])
		}
		return NewPiperTTS(
			restutil.ConfigValue(config, "piper", "binary_path"),
			restutil.ConfigValue(config, "./models/en_US-amy-medium.onnx", "model_path"),
			rate,
		), nil
	})
}

// PiperTTS implements engine.Synthesizer using the Piper TTS binary.
type PiperTTS struct {
	binaryPath string
	modelPath  string
	sampleRate int
}

// NewPiperTTS creates a new Piper TTS engine. sampleRate must match the
// voice model's native rate since raw output carries no header.
func NewPiperTTS(binaryPath, modelPath string, sampleRate int) *PiperTTS {
	return &PiperTTS{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		sampleRate: sampleRate,
	}
}

// Synthesize starts piper and streams its raw PCM as it is produced, so
// playback can begin before the whole sentence is rendered. A numeric
// voice ID selects a speaker of a multi-speaker model. A failing binary
// surfaces as a read error carrying its stderr.
func (p *PiperTTS) Synthesize(ctx context.Context, text string, voice engine.VoiceParams) (io.ReadCloser, error) {
	args := []string{"--model", p.modelPath, "--output-raw"}
	if _, err := strconv.Atoi(voice.ID); err == nil {
		args = append(args, "--speaker", voice.ID)
	}
	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	cmd.Stdin = strings.NewReader(text)
	s := &stream{cmd: cmd}
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piper TTS: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("piper TTS: start %s: %w", p.binaryPath, err)
	}
	s.stdout = stdout
	return s, nil
}

// stream reads piper's stdout and reaps the process at EOF or Close.
type stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	done   bool
	err    error
}

func (s *stream) Read(b []byte) (int, error) {
	n, err := s.stdout.Read(b)
	if err == io.EOF {
		if werr := s.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (s *stream) Close() error {
	if !s.done {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

func (s *stream) wait() error {
	if s.done {
		return s.err
	}
	s.done = true
	if err := s.cmd.Wait(); err != nil {
		s.err = fmt.Errorf("piper TTS: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return s.err
}

func (p *PiperTTS) Format() engine.AudioFormat {
	return engine.PCM16Mono(p.sampleRate)
}

// Voices returns available TTS voices.
func (p *PiperTTS) Voices() []engine.Voice {
	return []engine.Voice{
		{
			ID:       "default",
			Name:     "Default",
			Language: "en-US",
		},
	}
}

// Models returns available Piper models.
func (p *PiperTTS) Models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{ID: "en_US-amy-medium", DisplayName: "Amy (Medium)", IsDefault: true},
	}
}

// Close releases TTS resources.
func (p *PiperTTS) Close() error {
	return nil
}
