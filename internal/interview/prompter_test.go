package interview

import (
	"strings"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/pkg/profile"
)

var pr Prompter

func TestPrompterChatMode(t *testing.T) {
	p := &profile.Profile{Name: "chat", Mode: profile.ModeChat, Persona: "a friendly recruiter"}
	s := NewSession("s1", p, "local")
	s.SetSummaries("Go and Rust", "")
	s.Ask("Hi, introduce yourself.")
	s.Answer(1, "I'm Sam.", "Nice to meet you. What do you work on?")

	msgs := pr.Messages(s, "Payments infrastructure.")

	wantRoles := []string{engine.RoleSystem, engine.RoleAssistant, engine.RoleUser, engine.RoleAssistant, engine.RoleUser}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages: %+v", len(msgs), msgs)
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, msgs[i].Role, role)
		}
	}
	sys := msgs[0].Content
	if !strings.Contains(sys, "a friendly recruiter") || !strings.Contains(sys, "Go and Rust") {
		t.Errorf("system prompt = %q", sys)
	}
	if strings.Contains(sys, "Job description summary") {
		t.Error("empty JD summary should be omitted")
	}
	if msgs[4].Content != "Payments infrastructure." {
		t.Errorf("last message = %q", msgs[4].Content)
	}
}

func TestPrompterQuestionMode(t *testing.T) {
	s := NewSession("s1", profile.Default(), "local")
	s.SetSummaries("BSc CS; Go, Kubernetes", "Platform engineer")

	first := pr.Messages(s, "Hello.")
	if !strings.Contains(first[0].Content, "• Q: \n  A: Hello.") {
		t.Errorf("first turn dialogue missing: %q", first[0].Content)
	}

	s.Ask("Tell me about yourself.")
	s.Answer(1, "", "What is your strongest skill?")
	msgs := pr.Messages(s, "Distributed systems.")
	if len(msgs) != 1 || msgs[0].Role != engine.RoleUser {
		t.Fatalf("messages = %+v", msgs)
	}
	content := msgs[0].Content
	for _, want := range []string{
		"a calm and professional job interviewer",
		"BSc CS; Go, Kubernetes",
		"Platform engineer",
		"• Q: Tell me about yourself.\n  A: (no answer)",
		"• Q: What is your strongest skill?\n  A: Distributed systems.",
		"Never repeat earlier questions.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("prompt missing %q\n%s", want, content)
		}
	}
	if strings.Contains(content, "close the interview") {
		t.Error("closing instruction without a question limit")
	}
}

func TestPrompterClosingTurn(t *testing.T) {
	p := profile.Default()
	p.MaxQuestions = 2
	s := NewSession("s1", p, "local")

	if strings.Contains(pr.Messages(s, "one")[0].Content, "close the interview") {
		t.Error("first answer should not close")
	}
	s.Answer(1, "one", "next?")
	if !strings.Contains(pr.Messages(s, "two")[0].Content, "close the interview") {
		t.Error("last answer should close")
	}
}

func TestPrompterCustomTemplate(t *testing.T) {
	p := &profile.Profile{
		Name:         "custom",
		Mode:         profile.ModeChat,
		SystemPrompt: "Interview for {{.Variables.company}}. Asked {{.Asked}} so far.",
	}
	s := NewSession("s1", p, "local")
	s.SetVariable("company", "Acme")

	if got := pr.Messages(s, "hi")[0].Content; got != "Interview for Acme. Asked 0 so far." {
		t.Errorf("system prompt = %q", got)
	}

	// A template failing at execution falls back to the built-in prompt.
	p.SystemPrompt = "{{.Missing}}"
	if got := pr.Messages(s, "hi")[0].Content; !strings.Contains(got, defaultPersona) {
		t.Errorf("fallback prompt = %q", got)
	}
}
