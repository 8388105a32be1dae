package registry

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

type fakeBackend struct{ voice string }

func newFakes() *Registry[*fakeBackend] {
	r := New[*fakeBackend]("tts")
	r.Register("piper", func(cfg map[string]string) (*fakeBackend, error) {
		return &fakeBackend{voice: cfg["voice"]}, nil
	})
	r.Register("broken", func(map[string]string) (*fakeBackend, error) {
		return nil, errors.New("api_key is required")
	})
	return r
}

func TestCreatePassesConfig(t *testing.T) {
	got, err := newFakes().Create("piper", map[string]string{"voice": "amy"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.voice != "amy" {
		t.Errorf("voice = %q, want amy", got.voice)
	}
}

func TestCreateWrapsFactoryError(t *testing.T) {
	_, err := newFakes().Create("broken", nil)
	if err == nil || !strings.Contains(err.Error(), `tts backend "broken"`) {
		t.Errorf("err = %v, want kind and name in message", err)
	}
}

func TestCreateUnknownListsAvailable(t *testing.T) {
	_, err := newFakes().Create("festival", nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
	if !strings.Contains(err.Error(), "broken, piper") {
		t.Errorf("err = %v, want available names", err)
	}
}

func TestListSorted(t *testing.T) {
	if got := newFakes().List(); !slices.Equal(got, []string{"broken", "piper"}) {
		t.Errorf("List = %v", got)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := newFakes()
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate name")
		}
	}()
	r.Register("piper", nil)
}
