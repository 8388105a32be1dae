package profile

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"
)

const maxTemplateOutput = 64 * 1024

// templateCache caches parsed templates to avoid re-parsing on every turn.
var templateCache sync.Map

// Vars is the data available in prompt templates.
type Vars struct {
	Profile       string
	Persona       string
	ResumeSummary string
	JDSummary     string
	// Dialogue is the previous exchanges rendered as bullet lines.
	Dialogue     string
	Asked        int
	MaxQuestions int
	// Closing is set on the last allowed turn.
	Closing   bool
	Variables map[string]string
}

// Render evaluates a Go template string against vars.
func Render(tmpl string, vars Vars) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	t, err := parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	lw := &limitWriter{w: &buf, n: maxTemplateOutput}
	if err := t.Execute(lw, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parse(tmpl string) (*template.Template, error) {
	if cached, ok := templateCache.Load(tmpl); ok {
		return cached.(*template.Template), nil
	}
	t, err := template.New("").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return nil, err
	}
	templateCache.Store(tmpl, t)
	return t, nil
}

// limitWriter caps output from template.Execute.
type limitWriter struct {
	w       io.Writer
	n       int64
	written int64
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	if lw.written+int64(len(p)) > lw.n {
		allowed := lw.n - lw.written
		if allowed > 0 {
			n, err := lw.w.Write(p[:allowed])
			lw.written += int64(n)
			if err != nil {
				return n, err
			}
		}
		return 0, fmt.Errorf("template output exceeds %d bytes", lw.n)
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}
