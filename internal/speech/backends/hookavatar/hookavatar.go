// Package hookavatar delegates talking-head rendering to an external HTTP
// service through the hook executor.
package hookavatar

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/voicetyped/interviewer/internal/speech/engine"
	"github.com/voicetyped/interviewer/internal/speech/registry"
	"github.com/voicetyped/interviewer/pkg/hooks"
	"github.com/voicetyped/interviewer/pkg/urlvalidation"
)

func init() {
	registry.Avatar.Register("hook", func(config map[string]string) (engine.Animator, error) {
		url := config["hook_url"]
		if url == "" {
			return nil, errors.New("hook avatar requires hook_url")
		}
		timeout, _ := strconv.Atoi(config["timeout_sec"])
		if timeout <= 0 {
			timeout = 300
		}
		var opts []urlvalidation.Option
		if config["allow_private_ips"] == "true" {
			opts = append(opts, urlvalidation.AllowPrivateIPs())
		}
		return New(hooks.NewExecutor(nil, opts...), hooks.HookConfig{
			URL:        url,
			AuthType:   config["auth_type"],
			AuthSecret: config["auth_secret"],
			TimeoutSec: timeout,
		}), nil
	})
}

// Animator implements engine.Animator by posting an animate hook.
type Animator struct {
	exec *hooks.Executor
	cfg  hooks.HookConfig
}

// New creates a hook-backed animator.
func New(exec *hooks.Executor, cfg hooks.HookConfig) *Animator {
	return &Animator{exec: exec, cfg: cfg}
}

func (a *Animator) Animate(ctx context.Context, imagePath, audioPath string) (string, error) {
	resp, err := a.exec.Execute(ctx, a.cfg, hooks.HookRequest{
		Event:     hooks.EventAnimate,
		ImagePath: imagePath,
		AudioPath: audioPath,
	})
	if err != nil {
		return "", fmt.Errorf("avatar hook: %w", err)
	}
	if resp.VideoPath == "" {
		return "", errors.New("avatar hook: response has no video_path")
	}
	return resp.VideoPath, nil
}

func (a *Animator) Close() error {
	return nil
}
