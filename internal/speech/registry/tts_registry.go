package registry

import "github.com/voicetyped/interviewer/internal/speech/engine"

// TTS is the global text-to-speech registry.
var TTS = New[engine.Synthesizer]("tts")
