package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Delivery headers.
const (
	SignatureHeader = "X-Interviewer-Signature-256"
	EventHeader     = "X-Interviewer-Event"
	DeliveryHeader  = "X-Interviewer-Delivery"
	SessionHeader   = "X-Interviewer-Session"
)

// DefaultTolerance bounds how old a signed delivery may be when verified.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMalformedSignature = errors.New("webhook: malformed signature header")
	ErrSignatureMismatch  = errors.New("webhook: signature mismatch")
	ErrSignatureExpired   = errors.New("webhook: signature timestamp outside tolerance")
)

// Sign returns the SignatureHeader value "t=<unix>,v1=<hex>", where the
// MAC covers "<unix>." followed by the payload. Binding the timestamp lets
// receivers refuse replays of captured deliveries.
func Sign(secret string, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + mac(secret, ts, payload)
}

// Verify checks a SignatureHeader value against payload. Signatures
// older or newer than tolerance relative to now are rejected.
func Verify(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) error {
	var ts, sig string
	for part := range strings.SplitSeq(header, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return ErrMalformedSignature
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sig == "" {
		return ErrMalformedSignature
	}
	if d := now.Sub(time.Unix(unix, 0)); d > tolerance || d < -tolerance {
		return ErrSignatureExpired
	}
	if !hmac.Equal([]byte(mac(secret, ts, payload)), []byte(sig)) {
		return ErrSignatureMismatch
	}
	return nil
}

func mac(secret, ts string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(ts))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
