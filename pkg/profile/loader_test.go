package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const backendProfile = `
name: backend-engineer
persona: a senior Go engineer hiring for a platform team
mode: question
model: gpt-4o-mini
temperature: 0.4
voice:
  id: Rachel
  stability: 0.5
  similarity_boost: 0.75
opening_line: "Hi, thanks for joining. Tell me about yourself."
max_questions: 3
system_prompt: |
  You are {{.Persona}}.
  Résumé: {{.ResumeSummary}}
hooks:
  on_exchange:
    - url: https://ats.example.com/hooks/exchange
      auth_type: hmac
      auth_secret: s3cret
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "backend.yaml", backendProfile)
	writeFile(t, dir, "casual.yml", "mode: chat\n")
	writeFile(t, dir, "notes.txt", "ignored")

	loader := NewLoader(dir)
	profiles, err := loader.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("loaded %d profiles, want 2", len(profiles))
	}

	p, ok := loader.Get("backend-engineer")
	if !ok {
		t.Fatal("profile 'backend-engineer' not found")
	}
	if p.Mode != ModeQuestion || p.MaxQuestions != 3 {
		t.Errorf("mode = %q, max_questions = %d", p.Mode, p.MaxQuestions)
	}
	if p.Temperature == nil || *p.Temperature != 0.4 {
		t.Errorf("temperature = %v", p.Temperature)
	}
	if p.Voice.ID != "Rachel" || p.Voice.SimilarityBoost != 0.75 {
		t.Errorf("voice = %+v", p.Voice)
	}
	if len(p.Hooks.OnExchange) != 1 || p.Hooks.OnExchange[0].AuthType != "hmac" {
		t.Errorf("hooks = %+v", p.Hooks)
	}

	// Name falls back to the file name.
	if c, ok := loader.Get("casual"); !ok || c.Mode != ModeChat {
		t.Errorf("casual profile = %+v, %v", c, ok)
	}
	if len(loader.All()) != 2 {
		t.Errorf("All() returned %d profiles", len(loader.All()))
	}
}

func TestLoaderDefaultsMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain.yaml", "persona: friendly recruiter\n")

	loader := NewLoader(dir)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatal(err)
	}
	p, _ := loader.Get("plain")
	if p.Mode != ModeQuestion {
		t.Errorf("mode = %q, want %q", p.Mode, ModeQuestion)
	}
}

func TestLoaderRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "{{invalid yaml", "parse YAML"},
		{"bad mode", "mode: monologue\n", "mode"},
		{"negative questions", "max_questions: -1\n", "max_questions"},
		{"temperature", "temperature: 3\n", "temperature"},
		{"stability", "voice:\n  stability: 1.5\n", "voice.stability"},
		{"hook without url", "hooks:\n  on_exchange:\n    - auth_type: bearer\n", "url is required"},
		{"bad template", "system_prompt: \"{{.Persona\"\n", "system_prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "p.yaml", tt.content)
			_, err := NewLoader(dir).LoadAll()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoaderDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "name: same\n")
	writeFile(t, dir, "b.yaml", "name: same\n")
	if _, err := NewLoader(dir).LoadAll(); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestLoaderKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", "name: good\n")
	loader := NewLoader(dir)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "broken.yaml", "mode: nope\n")
	if _, err := loader.LoadAll(); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := loader.Get("good"); !ok {
		t.Error("failed reload dropped the previous profiles")
	}
}

func TestLoaderMissingDir(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing")).LoadAll(); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoaderWatchAndReload(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(dir)
	if _, err := loader.LoadAll(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	errc := make(chan error, 1)
	go func() { errc <- loader.WatchAndReload(done) }()
	defer func() {
		close(done)
		if err := <-errc; err != nil {
			t.Errorf("WatchAndReload: %v", err)
		}
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "late.yaml", "name: late\nmode: chat\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := loader.Get("late"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("new profile was not picked up")
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestRender(t *testing.T) {
	vars := Vars{
		Persona:       "a hiring manager",
		ResumeSummary: "Go, Kubernetes",
		Asked:         2,
		MaxQuestions:  5,
		Variables:     map[string]string{"company": "Acme"},
	}

	got, err := Render("You are {{.Persona}} at {{.Variables.company}}. {{if .Closing}}Wrap up.{{else}}Question {{.Asked}}/{{.MaxQuestions}}.{{end}}", vars)
	if err != nil {
		t.Fatal(err)
	}
	if want := "You are a hiring manager at Acme. Question 2/5."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	plain := "no template here"
	if got, _ := Render(plain, vars); got != plain {
		t.Errorf("plain text changed: %q", got)
	}

	if _, err := Render(`{{range $i := .Variables}}{{printf "%070000d" 1}}{{end}}`, vars); err == nil {
		t.Error("expected output limit error")
	}
}
