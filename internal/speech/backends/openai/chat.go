package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// Chat implements engine.ChatModel on top of the go-openai client.
type Chat struct {
	client *goopenai.Client
}

// NewChat creates a chat model for the given key and API base URL.
func NewChat(apiKey, baseURL string) *Chat {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Chat{client: goopenai.NewClientWithConfig(cfg)}
}

func (c *Chat) Complete(ctx context.Context, req engine.ChatRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, toRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream emits content deltas in arrival order. Empty deltas are skipped.
func (c *Chat) Stream(ctx context.Context, req engine.ChatRequest, emit engine.FragmentFunc) error {
	stream, err := c.client.CreateChatCompletionStream(ctx, toRequest(req, true))
	if err != nil {
		return fmt.Errorf("openai chat stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai chat stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return err
		}
	}
}

func (c *Chat) Close() error {
	return nil
}

func toRequest(req engine.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}
