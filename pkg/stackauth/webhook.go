package stackauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Svix delivery headers.
const (
	HeaderWebhookID        = "svix-id"
	HeaderWebhookTimestamp = "svix-timestamp"
	HeaderWebhookSignature = "svix-signature"

	secretPrefix     = "whsec_"
	signatureVersion = "v1"
)

// ErrMissingHeaders is returned before any signature work when a delivery
// header is absent.
var ErrMissingHeaders = errors.New("missing webhook signature headers")

// SignatureError marks a delivery whose signature could not be trusted.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid webhook signature: " + e.Reason
}

// WebhookHeaders are the three values every delivery must carry.
type WebhookHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

// HeadersFrom reads the delivery headers and fails if any is missing.
func HeadersFrom(h http.Header) (WebhookHeaders, error) {
	out := WebhookHeaders{
		ID:        strings.TrimSpace(h.Get(HeaderWebhookID)),
		Timestamp: strings.TrimSpace(h.Get(HeaderWebhookTimestamp)),
		Signature: strings.TrimSpace(h.Get(HeaderWebhookSignature)),
	}
	if out.ID == "" || out.Timestamp == "" || out.Signature == "" {
		return WebhookHeaders{}, ErrMissingHeaders
	}
	return out, nil
}

// Verifier checks svix-style HMAC signatures.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier decodes a "whsec_" prefixed base64 secret.
func NewVerifier(secret string, tolerance time.Duration) (*Verifier, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	if trimmed == "" {
		return nil, errors.New("webhook secret is required")
	}
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode webhook secret: %w", err)
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Verifier{key: key, tolerance: tolerance, now: time.Now}, nil
}

// Verify accepts the payload when any v1 signature matches and the timestamp
// is within tolerance.
func (v *Verifier) Verify(headers WebhookHeaders, body []byte) error {
	seconds, err := strconv.ParseInt(headers.Timestamp, 10, 64)
	if err != nil {
		return &SignatureError{Reason: "malformed timestamp"}
	}
	sent := time.Unix(seconds, 0)
	now := v.now()
	if sent.Before(now.Add(-v.tolerance)) {
		return &SignatureError{Reason: "timestamp too old"}
	}
	if sent.After(now.Add(v.tolerance)) {
		return &SignatureError{Reason: "timestamp too new"}
	}

	expected := v.Sign(headers.ID, headers.Timestamp, body)
	for _, candidate := range strings.Fields(headers.Signature) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != signatureVersion {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return &SignatureError{Reason: "no matching signature"}
}

// Sign computes the base64 signature for a delivery.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
