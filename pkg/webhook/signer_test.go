package webhook

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	secret := "test-secret-key"
	payload := []byte(`{"type":"interview.started","data":{}}`)
	at := time.Unix(1_760_000_000, 0)
	header := Sign(secret, at, payload)

	if !strings.HasPrefix(header, "t=1760000000,v1=") {
		t.Fatalf("header = %q", header)
	}

	tests := []struct {
		name    string
		secret  string
		payload []byte
		header  string
		now     time.Time
		want    error
	}{
		{"valid", secret, payload, header, at.Add(time.Minute), nil},
		{"wrong secret", "other", payload, header, at, ErrSignatureMismatch},
		{"tampered", secret, []byte("tampered"), header, at, ErrSignatureMismatch},
		{"too old", secret, payload, header, at.Add(DefaultTolerance + time.Second), ErrSignatureExpired},
		{"from the future", secret, payload, header, at.Add(-DefaultTolerance - time.Second), ErrSignatureExpired},
		{"no timestamp", secret, payload, "v1=abc", at, ErrMalformedSignature},
		{"garbage", secret, payload, "sha256", at, ErrMalformedSignature},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Verify(tc.secret, tc.payload, tc.header, DefaultTolerance, tc.now)
			if !errors.Is(err, tc.want) {
				t.Errorf("Verify = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSecret()
	if len(a) != 64 || a == b {
		t.Errorf("secrets %q and %q", a, b)
	}
}

func TestEventTypesMatches(t *testing.T) {
	var all EventTypes
	if !all.Matches("interview.started") {
		t.Error("empty list should match every event")
	}
	some := EventTypes{"interview.stopped"}
	if some.Matches("interview.started") || !some.Matches("interview.stopped") {
		t.Errorf("%v matched wrongly", some)
	}
}

func TestEventTypesStorage(t *testing.T) {
	v, err := EventTypes{"speech.final", "reply.completed"}.Value()
	if err != nil {
		t.Fatal(err)
	}
	var got EventTypes
	if err := got.Scan(v); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != "reply.completed" {
		t.Errorf("round trip = %v", got)
	}

	if v, _ := EventTypes(nil).Value(); v != "[]" {
		t.Errorf("nil list stored as %v", v)
	}
	if err := got.Scan(nil); err != nil || len(got) != 0 {
		t.Errorf("scan nil = %v, %v", got, err)
	}
}
