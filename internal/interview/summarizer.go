package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/engine"
)

// ErrEmptyDocument is returned when there is nothing to summarize.
var ErrEmptyDocument = errors.New("document is empty")

// maxDocumentChars bounds the text sent for summarization.
const maxDocumentChars = 32000

// Summarizer condenses résumés and job descriptions into a few bullet
// lines that fit into every turn's prompt.
type Summarizer struct {
	llm         engine.ChatModel
	model       string
	temperature float32
}

// NewSummarizer creates a summarizer backed by the given chat model.
func NewSummarizer(llm engine.ChatModel, model string) *Summarizer {
	return &Summarizer{llm: llm, model: model, temperature: 0.7}
}

// Resume summarizes a résumé in three lines.
func (s *Summarizer) Resume(ctx context.Context, text string) (string, error) {
	return s.summarize(ctx, "You are a recruitment assistant.",
		"Summarise the following résumé in exactly THREE concise bullet-lines, each on its own line. "+
			"Focus on degree, key tech skills, major projects and leadership. Keep each line ≤ 20 words.",
		text)
}

// JobDescription summarizes a job description in at most four lines.
func (s *Summarizer) JobDescription(ctx context.Context, text string) (string, error) {
	return s.summarize(ctx, "You summarise job-descriptions for recruiters.",
		"Summarise the JD below in MAX FOUR short bullet-lines. "+
			"Include role core-focus, mandatory tech / experience, any nice-to-haves, and key perks.",
		text)
}

func (s *Summarizer) summarize(ctx context.Context, system, instruction, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	if len(text) > maxDocumentChars {
		text = strings.ToValidUTF8(text[:maxDocumentChars], "")
	}

	out, err := s.llm.Complete(ctx, engine.ChatRequest{
		Model: s.model,
		Messages: []engine.Message{
			{Role: engine.RoleSystem, Content: system},
			{Role: engine.RoleUser, Content: instruction + "\n\n" + text},
		},
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("summarize: model returned an empty summary")
	}
	return out, nil
}
