package piper

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "piper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSynthesize(t *testing.T) {
	bin := fakeBinary(t, "cat > /dev/null\nprintf '\\001\\000\\002\\000'\n")
	tts := NewPiperTTS(bin, "model.onnx", 22050)

	rc, err := tts.Synthesize(t.Context(), "Hello there.", engine.VoiceParams{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	pcm, _ := io.ReadAll(rc)
	samples := engine.BytesToSamples(pcm)
	if len(samples) != 2 || samples[0] != 1 || samples[1] != 2 {
		t.Errorf("samples = %v", samples)
	}
	if tts.Format().SampleRate != 22050 {
		t.Errorf("format = %+v", tts.Format())
	}
}

func TestSynthesizeFailureSurfacesOnRead(t *testing.T) {
	bin := fakeBinary(t, "cat > /dev/null\necho 'model not found' >&2\nexit 1\n")
	tts := NewPiperTTS(bin, "missing.onnx", 22050)

	rc, err := tts.Synthesize(t.Context(), "x", engine.VoiceParams{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer rc.Close()
	_, err = io.ReadAll(rc)
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("read err = %v, want stderr in message", err)
	}
}

func TestSynthesizeMissingBinary(t *testing.T) {
	tts := NewPiperTTS(filepath.Join(t.TempDir(), "nope"), "model.onnx", 22050)
	if _, err := tts.Synthesize(t.Context(), "x", engine.VoiceParams{}); err == nil {
		t.Error("expected start error")
	}
}

func TestCloseStopsSynthesis(t *testing.T) {
	bin := fakeBinary(t, "cat > /dev/null\nwhile true; do printf '\\000\\000'; done\n")
	tts := NewPiperTTS(bin, "model.onnx", 22050)

	rc, err := tts.Synthesize(t.Context(), "a long answer", engine.VoiceParams{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	buf := make([]byte, 64)
	if _, err := io.ReadFull(rc, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
