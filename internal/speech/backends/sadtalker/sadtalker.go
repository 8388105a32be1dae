// Package sadtalker renders talking-head videos by running the SadTalker
// inference script as a subprocess.
package sadtalker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/voicetyped/interviewer/internal/speech/backends/restutil"
	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
)

func init() {
	registry.Avatar.Register("sadtalker", func(config map[string]string) (engine.Animator, error) {
		return New(Options{
			Python:    restutil.ConfigValue(config, "python", "python_path"),
			Dir:       restutil.ConfigValue(config, "./SadTalker", "sadtalker_dir"),
			ResultDir: restutil.ConfigValue(config, "./output/video", "result_dir"),
			Enhancer:  restutil.ConfigValue(config, "gfpgan", "enhancer"),
			Still:     config["still"] != "false",
		}), nil
	})
}

// Options configures the subprocess invocation.
type Options struct {
	Python    string
	Dir       string // SadTalker checkout containing inference.py
	ResultDir string
	Enhancer  string // empty disables face enhancement
	Still     bool
}

// Animator implements engine.Animator.
type Animator struct {
	opts Options
}

// New creates a SadTalker animator.
func New(opts Options) *Animator {
	return &Animator{opts: opts}
}

// Animate runs inference and returns the newest video written to the
// result directory.
func (a *Animator) Animate(ctx context.Context, imagePath, audioPath string) (string, error) {
	resultDir, err := filepath.Abs(a.opts.ResultDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return "", fmt.Errorf("sadtalker: result dir: %w", err)
	}
	if imagePath, err = filepath.Abs(imagePath); err != nil {
		return "", err
	}
	if audioPath, err = filepath.Abs(audioPath); err != nil {
		return "", err
	}

	args := []string{
		"inference.py",
		"--driven_audio", audioPath,
		"--source_image", imagePath,
		"--result_dir", resultDir,
		"--preprocess", "full",
	}
	if a.opts.Enhancer != "" {
		args = append(args, "--enhancer", a.opts.Enhancer)
	}
	if a.opts.Still {
		args = append(args, "--still")
	}

	cmd := exec.CommandContext(ctx, a.opts.Python, args...)
	cmd.Dir = a.opts.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("sadtalker: %w: %s", err, strings.TrimSpace(lastLine(stderr.String())))
	}

	return newestVideo(resultDir)
}

func (a *Animator) Close() error {
	return nil
}

func newestVideo(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.mp4"))
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", errors.New("sadtalker: no video produced")
	}
	return newest, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
