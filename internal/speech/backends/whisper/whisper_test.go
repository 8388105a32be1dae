package whisper

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "whisper-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	// The fake CLI checks that -f points at a readable file.
	bin := fakeCLI(t, `while [ $# -gt 0 ]; do
  if [ "$1" = "-f" ]; then test -s "$2" || exit 2; fi
  shift
done
printf '\n  I enjoy distributed systems.\n'
`)
	asr, err := NewWhisperASR(bin, "model.bin", "en", 1)
	if err != nil {
		t.Fatal(err)
	}
	text, err := asr.Transcribe(t.Context(), engine.Utterance{PCM: make([]byte, 4800), SampleRate: 24000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "I enjoy distributed systems." {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribeAfterClose(t *testing.T) {
	asr, _ := NewWhisperASR("whisper-cli", "model.bin", "en", 1)
	asr.Close()
	if _, err := asr.Transcribe(t.Context(), engine.Utterance{}); err == nil {
		t.Error("expected error after Close")
	}
}
