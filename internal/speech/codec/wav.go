package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

const wavHeaderSize = 44

// WriteWAV writes a canonical RIFF/WAVE file containing the raw PCM.
func WriteWAV(w io.Writer, pcm []byte, f engine.AudioFormat) error {
	if f.Channels <= 0 || f.BitDepth <= 0 || f.SampleRate <= 0 {
		return fmt.Errorf("invalid audio format %+v", f)
	}
	blockAlign := f.Channels * f.BitDepth / 8

	header := []any{
		[]byte("RIFF"),
		uint32(wavHeaderSize - 8 + len(pcm)),
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(f.Channels),
		uint32(f.SampleRate),
		uint32(f.BytesPerSecond()),
		uint16(blockAlign),
		uint16(f.BitDepth),
		[]byte("data"),
		uint32(len(pcm)),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	_, err := w.Write(pcm)
	return err
}

// EncodeWAV returns the PCM wrapped in a WAV container.
func EncodeWAV(pcm []byte, f engine.AudioFormat) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	if err := WriteWAV(&buf, pcm, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVFile writes the PCM as a WAV file at path.
func WriteWAVFile(path string, pcm []byte, f engine.AudioFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(file, pcm, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
