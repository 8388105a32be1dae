package codec

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320)
	f := engine.PCM16Mono(16000)

	wav, err := EncodeWAV(pcm, f)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), wavHeaderSize+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Error("missing RIFF/WAVE/data markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if byteRate := binary.LittleEndian.Uint32(wav[28:32]); byteRate != 32000 {
		t.Errorf("byte rate = %d, want 32000", byteRate)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}

func TestEncodeWAVRejectsBadFormat(t *testing.T) {
	if _, err := EncodeWAV(nil, engine.AudioFormat{}); err == nil {
		t.Error("expected error for zero format")
	}
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reply.wav")
	pcm := engine.SamplesToBytes([]int16{1, 2, 3, 4})
	if err := WriteWAVFile(path, pcm, engine.PCM16Mono(24000)); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(data[wavHeaderSize:], pcm) {
		t.Error("payload mismatch")
	}
}

func TestResample(t *testing.T) {
	in := engine.SamplesToBytes(make([]int16, 2400))

	if got := len(Resample(in, 24000, 16000)) / 2; got != 1600 {
		t.Errorf("24k->16k samples = %d, want 1600", got)
	}
	if got := len(Resample(in, 16000, 44100)) / 2; got != 6615 {
		t.Errorf("16k->44.1k samples = %d, want 6615", got)
	}
	if got := Resample(in, 16000, 16000); len(got) != len(in) {
		t.Error("same-rate resample should be identity")
	}
}

func TestResampleInterpolates(t *testing.T) {
	in := engine.SamplesToBytes([]int16{0, 300, 600, 900})
	out := engine.BytesToSamples(Resample(in, 2, 4))
	if len(out) != 8 {
		t.Fatalf("got %d samples, want 8", len(out))
	}
	if out[1] != 150 || out[2] != 300 {
		t.Errorf("interpolated samples = %v", out[:3])
	}
}
