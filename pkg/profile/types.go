// Package profile loads interview profiles: who the interviewer is, how
// it asks questions and how its replies sound.
package profile

import (
	"errors"
	"fmt"

	"github.com/voicetyped/interviewer/pkg/hooks"
)

// Interview modes.
const (
	// ModeChat keeps a running chat history and answers each turn.
	ModeChat = "chat"
	// ModeQuestion asks one acknowledgement plus one follow-up question per
	// turn, built from the résumé, the job description and the dialogue so far.
	ModeQuestion = "question"
)

// Profile is a YAML-mappable interview definition.
type Profile struct {
	Name         string   `yaml:"name"          json:"name"`
	Description  string   `yaml:"description"   json:"description,omitempty"`
	Persona      string   `yaml:"persona"       json:"persona,omitempty"`
	Mode         string   `yaml:"mode"          json:"mode"`
	Model        string   `yaml:"model"         json:"model,omitempty"`
	Temperature  *float32 `yaml:"temperature"   json:"temperature,omitempty"`
	Voice        Voice    `yaml:"voice"         json:"voice"`
	OpeningLine  string   `yaml:"opening_line"  json:"opening_line,omitempty"`
	MaxQuestions int      `yaml:"max_questions" json:"max_questions,omitempty"`
	// SystemPrompt is a Go template rendered with Vars. Empty selects the
	// built-in prompt for the mode.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt,omitempty"`
	Hooks        Hooks  `yaml:"hooks"         json:"hooks,omitempty"`
}

// Voice overrides the configured synthesis voice.
type Voice struct {
	ID              string  `yaml:"id"               json:"id,omitempty"`
	Stability       float64 `yaml:"stability"        json:"stability,omitempty"`
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarity_boost,omitempty"`
}

// Hooks are external endpoints notified during an interview.
type Hooks struct {
	OnExchange []hooks.HookConfig `yaml:"on_exchange" json:"on_exchange,omitempty"`
}

// Validate checks the profile for inconsistencies.
func (p *Profile) Validate() error {
	var errs []error
	switch p.Mode {
	case ModeChat, ModeQuestion:
	default:
		errs = append(errs, fmt.Errorf("mode %q must be %q or %q", p.Mode, ModeChat, ModeQuestion))
	}
	if p.MaxQuestions < 0 {
		errs = append(errs, fmt.Errorf("max_questions must not be negative, got %d", p.MaxQuestions))
	}
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		errs = append(errs, fmt.Errorf("temperature %.2f outside [0, 2]", *p.Temperature))
	}
	for _, v := range []struct {
		name string
		val  float64
	}{{"voice.stability", p.Voice.Stability}, {"voice.similarity_boost", p.Voice.SimilarityBoost}} {
		if v.val < 0 || v.val > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f outside [0, 1]", v.name, v.val))
		}
	}
	for i, h := range p.Hooks.OnExchange {
		if h.URL == "" {
			errs = append(errs, fmt.Errorf("hooks.on_exchange[%d]: url is required", i))
		}
	}
	if p.SystemPrompt != "" {
		if _, err := parse(p.SystemPrompt); err != nil {
			errs = append(errs, fmt.Errorf("system_prompt: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Default is used when no profile directory is configured.
func Default() *Profile {
	return &Profile{
		Name:         "default",
		Persona:      "a calm and professional job interviewer",
		Mode:         ModeQuestion,
		OpeningLine:  "Hello, thanks for joining. To start, could you briefly introduce yourself?",
		MaxQuestions: 5,
	}
}
