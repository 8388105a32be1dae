package registry

import "github.com/voicetyped/interviewer/internal/speech/engine"

// ASR is the global speech-to-text registry.
var ASR = New[engine.Transcriber]("asr")
