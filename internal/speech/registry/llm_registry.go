package registry

import "github.com/voicetyped/interviewer/internal/speech/engine"

// LLM is the global chat-completion registry.
var LLM = New[engine.ChatModel]("llm")
