package registry

import "github.com/voicetyped/interviewer/internal/speech/engine"

// Avatar is the global talking-head renderer registry.
var Avatar = New[engine.Animator]("avatar")
