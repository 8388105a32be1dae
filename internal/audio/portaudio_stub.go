//go:build !portaudio

package audio

import "errors"

// PortAudioAvailable reports whether the binary was built with PortAudio.
const PortAudioAvailable = false

// PortAudioDevice is unavailable without the portaudio build tag.
type PortAudioDevice struct {
	Memory
}

// OpenPortAudio always fails; rebuild with -tags portaudio for local audio.
func OpenPortAudio(inRate, outRate, framesPerBuffer int) (*PortAudioDevice, error) {
	return nil, errors.New("built without portaudio support (use -tags portaudio)")
}
