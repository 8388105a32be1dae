package hookavatar

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicetyped/interviewer/internal/speech/registry"
	"github.com/voicetyped/interviewer/pkg/hooks"
)

func TestAnimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hooks.HookRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Event != hooks.EventAnimate || req.AudioPath != "reply.wav" || req.ImagePath != "face.png" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(hooks.HookResponse{VideoPath: "/videos/1.mp4"})
	}))
	defer srv.Close()

	a, err := registry.Avatar.Create("hook", map[string]string{"hook_url": srv.URL, "allow_private_ips": "true"})
	if err != nil {
		t.Fatal(err)
	}
	video, err := a.Animate(t.Context(), "face.png", "reply.wav")
	if err != nil {
		t.Fatalf("Animate: %v", err)
	}
	if video != "/videos/1.mp4" {
		t.Errorf("video = %q", video)
	}
}

func TestAnimateMissingVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a, _ := registry.Avatar.Create("hook", map[string]string{"hook_url": srv.URL, "allow_private_ips": "true"})
	if _, err := a.Animate(t.Context(), "face.png", "reply.wav"); err == nil {
		t.Error("expected error for empty video_path")
	}
}

func TestRequiresURL(t *testing.T) {
	if _, err := registry.Avatar.Create("hook", map[string]string{}); err == nil {
		t.Error("expected error without hook_url")
	}
}
