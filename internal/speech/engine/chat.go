package engine

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-completion conversation.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
}

// FragmentFunc receives streamed reply fragments in arrival order.
// Returning an error aborts the stream.
type FragmentFunc func(fragment string) error

// ChatModel produces assistant replies, either whole or as a fragment stream.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Stream(ctx context.Context, req ChatRequest, emit FragmentFunc) error
	Close() error
}
