package codec

import (
	"encoding/binary"
	"io"

	"github.com/pion/opus"
)

// OpusDecoder decodes 20 ms Opus packets into 16kHz mono S16LE PCM,
// the format browsers send when the microphone is captured with MediaRecorder.
type OpusDecoder struct {
	decoder  *opus.Decoder
	pcmBuf48 []byte // 48kHz decoded samples
	pcmBuf16 []byte // 16kHz downsampled output
}

// NewOpusDecoder creates a decoder producing 16kHz mono PCM.
func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{
		decoder:  &opus.Decoder{},
		pcmBuf48: make([]byte, 960*2*2), // 20ms at 48kHz stereo = 1920 samples * 2 bytes
		pcmBuf16: make([]byte, 320*2),   // 20ms at 16kHz mono = 320 samples * 2 bytes
	}
}

// Decode decodes a single Opus packet. The returned slice is reused by the
// next call.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	_, isStereo, err := d.decoder.Decode(packet, d.pcmBuf48)
	if err != nil {
		return nil, err
	}

	// Downsample 48kHz -> 16kHz (3:1), folding stereo to mono.
	channels := 1
	if isStereo {
		channels = 2
	}
	const samplesPerChannel = 960
	outSamples := samplesPerChannel / 3

	for i := 0; i < outSamples; i++ {
		srcIdx := i * 3 * channels * 2
		if srcIdx+1 >= len(d.pcmBuf48) {
			outSamples = i
			break
		}
		sample := int16(binary.LittleEndian.Uint16(d.pcmBuf48[srcIdx:]))
		if isStereo && srcIdx+3 < len(d.pcmBuf48) {
			right := int16(binary.LittleEndian.Uint16(d.pcmBuf48[srcIdx+2:]))
			sample = int16((int32(sample) + int32(right)) / 2)
		}
		binary.LittleEndian.PutUint16(d.pcmBuf16[i*2:], uint16(sample))
	}

	return d.pcmBuf16[:outSamples*2], nil
}

// OpusToPCM16Writer decodes each written Opus packet and forwards 16kHz
// mono S16LE PCM to dst. Each Write must carry exactly one packet.
type OpusToPCM16Writer struct {
	dec *OpusDecoder
	dst io.Writer
}

// NewOpusToPCM16Writer creates a decoding writer.
func NewOpusToPCM16Writer(dst io.Writer) *OpusToPCM16Writer {
	return &OpusToPCM16Writer{dec: NewOpusDecoder(), dst: dst}
}

// Write decodes one packet. It reports the full packet as consumed on success.
func (w *OpusToPCM16Writer) Write(opusPacket []byte) (int, error) {
	pcm, err := w.dec.Decode(opusPacket)
	if err != nil {
		return 0, err
	}
	if _, err := w.dst.Write(pcm); err != nil {
		return 0, err
	}
	return len(opusPacket), nil
}
