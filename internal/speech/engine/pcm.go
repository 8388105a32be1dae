package engine

import (
	"encoding/binary"
	"math"
)

// fullScale is the magnitude used to normalize signed 16-bit samples to [0,1].
const fullScale = 32768.0

// AudioFormat describes raw PCM audio.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM16Mono returns a 16-bit mono format at the given rate.
func PCM16Mono(sampleRate int) AudioFormat {
	return AudioFormat{SampleRate: sampleRate, Channels: 1, BitDepth: 16}
}

// BytesPerSecond returns the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

// SamplesToBytes encodes signed 16-bit samples as little-endian PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples decodes little-endian PCM into signed 16-bit samples.
// A trailing odd byte is ignored.
func BytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// MeanAbs returns the mean absolute amplitude of the samples normalized to [0,1].
func MeanAbs(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples)) / fullScale
}

// RMS returns the root-mean-square amplitude of the samples normalized to [0,1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares/float64(len(samples))) / fullScale
}

// Amplitude converts a normalized amplitude in [-1,1] to a 16-bit sample.
func Amplitude(a float64) int16 {
	if a >= 1 {
		return math.MaxInt16
	}
	if a <= -1 {
		return math.MinInt16
	}
	return int16(a * fullScale)
}
