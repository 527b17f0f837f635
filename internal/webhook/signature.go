// Package webhook verifies and dispatches provider callbacks announcing that
// an asynchronous LLM job settled.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds the accepted clock skew on signed timestamps.
const DefaultTolerance = 5 * time.Minute

// Verification failure sentinels. There is no partial success: a delivery
// either proves possession of the shared secret or is rejected.
var (
	ErrMissingSignature   = errors.New("webhook: no signature headers present")
	ErrMalformedSignature = errors.New("webhook: malformed signature material")
	ErrStaleTimestamp     = errors.New("webhook: signed timestamp outside tolerance")
	ErrVerificationFailed = errors.New("webhook: signature verification failed")
)

// Signature header names for the three supported schemes.
const (
	headerProviderSignature = "X-Provider-Signature"
	headerProviderTimestamp = "X-Provider-Timestamp"

	headerSvixID        = "svix-id"
	headerSvixTimestamp = "svix-timestamp"
	headerSvixSignature = "svix-signature"

	headerWebhookID        = "webhook-id"
	headerWebhookTimestamp = "webhook-timestamp"
	headerWebhookSignature = "webhook-signature"
)

const secretPrefix = "whsec_"

// Event is the payload carried by a verified delivery. Unknown body fields
// are tolerated.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData references the job the delivery is about.
type EventData struct {
	JobID string `json:"job_id"`
}

// Verifier checks webhook deliveries against the shared secret. The zero
// value uses DefaultTolerance and the wall clock.
type Verifier struct {
	// Tolerance bounds |now - signed timestamp|; <= 0 means DefaultTolerance.
	Tolerance time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Verify authenticates body against the signature headers, trying each scheme
// in fixed order and short-circuiting on the first success. The body must be
// the exact bytes received on the wire. On success the body is decoded as an
// Event, with the header delivery id taking precedence over the body id.
func (v *Verifier) Verify(secret string, body []byte, header http.Header) (*Event, error) {
	if secret == "" {
		return nil, ErrVerificationFailed
	}

	attempted := false
	var lastErr error

	type scheme struct {
		present func(http.Header) bool
		verify  func(string, []byte, http.Header) (string, error)
	}
	schemes := []scheme{
		{presentProvider, v.verifyProvider},
		{presentSvix, v.verifySvix},
		{presentStandard, v.verifyStandard},
	}

	for _, s := range schemes {
		if !s.present(header) {
			continue
		}
		attempted = true
		deliveryID, err := s.verify(secret, body, header)
		if err == nil {
			return decodeEvent(body, deliveryID)
		}
		lastErr = err
	}

	if !attempted {
		return nil, ErrMissingSignature
	}
	return nil, lastErr
}

func decodeEvent(body []byte, deliveryID string) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: decode event body: %v", ErrMalformedSignature, err)
	}
	if deliveryID != "" {
		event.ID = deliveryID
	}
	return &event, nil
}

func presentProvider(h http.Header) bool { return h.Get(headerProviderSignature) != "" }

func presentSvix(h http.Header) bool {
	return h.Get(headerSvixID) != "" || h.Get(headerSvixSignature) != ""
}

func presentStandard(h http.Header) bool {
	return h.Get(headerWebhookID) != "" || h.Get(headerWebhookSignature) != ""
}

// verifyProvider handles "X-Provider-Signature: t=<unix>,v1=<sig>[,...]" with
// the message "{t}.{body}" and base64- or hex-encoded candidates.
func (v *Verifier) verifyProvider(secret string, body []byte, header http.Header) (string, error) {
	raw := header.Get(headerProviderSignature)

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return "", fmt.Errorf("%w: element %q", ErrMalformedSignature, part)
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
		// Other keys are future scheme versions; skip them.
	}
	if timestamp == "" || len(candidates) == 0 {
		return "", fmt.Errorf("%w: missing t or v1 element", ErrMalformedSignature)
	}

	if err := v.checkTimestamp(timestamp); err != nil {
		return "", err
	}

	expected := computeHMAC([]byte(secret), timestamp+"."+string(body))
	for _, candidate := range candidates {
		if sig, ok := decodeSignature(candidate, len(expected)); ok && hmac.Equal(sig, expected) {
			return "", nil
		}
	}
	return "", ErrVerificationFailed
}

// verifySvix handles the broker-style scheme: svix-id/svix-timestamp/
// svix-signature with "v1,<base64>" candidates over "{id}.{ts}.{body}".
// Some senders carry their native timestamp header next to the broker
// signature instead of svix-timestamp; that value is accepted as a fallback.
func (v *Verifier) verifySvix(secret string, body []byte, header http.Header) (string, error) {
	id := header.Get(headerSvixID)
	timestamp := header.Get(headerSvixTimestamp)
	if timestamp == "" {
		timestamp = providerTimestamp(header)
	}
	sigHeader := header.Get(headerSvixSignature)
	if id == "" || timestamp == "" || sigHeader == "" {
		return "", fmt.Errorf("%w: incomplete svix header set", ErrMalformedSignature)
	}

	var candidates []string
	for _, token := range strings.Fields(sigHeader) {
		version, value, found := strings.Cut(token, ",")
		if !found {
			return "", fmt.Errorf("%w: signature token %q", ErrMalformedSignature, token)
		}
		if version == "v1" {
			candidates = append(candidates, value)
		}
	}

	return id, v.verifyKeyed(secret, id, timestamp, body, candidates)
}

// verifyStandard handles webhook-id/webhook-timestamp/webhook-signature with
// "v1=<sig>" or space-interleaved "v1 <sig>" tokens.
func (v *Verifier) verifyStandard(secret string, body []byte, header http.Header) (string, error) {
	id := header.Get(headerWebhookID)
	timestamp := header.Get(headerWebhookTimestamp)
	sigHeader := header.Get(headerWebhookSignature)
	if id == "" || timestamp == "" || sigHeader == "" {
		return "", fmt.Errorf("%w: incomplete webhook header set", ErrMalformedSignature)
	}

	var candidates []string
	tokens := strings.Fields(sigHeader)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		switch {
		case strings.HasPrefix(token, "v1="):
			candidates = append(candidates, strings.TrimPrefix(token, "v1="))
		case token == "v1" && i+1 < len(tokens):
			i++
			candidates = append(candidates, tokens[i])
		}
		// Tokens for other versions are skipped.
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no v1 signature token", ErrMalformedSignature)
	}

	return id, v.verifyKeyed(secret, id, timestamp, body, candidates)
}

// verifyKeyed implements the shared core of schemes 2 and 3: whsec-wrapped
// key, "{id}.{ts}.{body}" message, base64 candidates.
func (v *Verifier) verifyKeyed(secret, id, timestamp string, body []byte, candidates []string) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no v1 signature token", ErrMalformedSignature)
	}
	if err := v.checkTimestamp(timestamp); err != nil {
		return err
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return err
	}

	expected := computeHMAC(key, id+"."+timestamp+"."+string(body))
	for _, candidate := range candidates {
		sig, err := base64.StdEncoding.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrVerificationFailed
}

// providerTimestamp extracts a timestamp from the provider-native headers:
// X-Provider-Timestamp, or the t element of X-Provider-Signature.
func providerTimestamp(h http.Header) string {
	if ts := h.Get(headerProviderTimestamp); ts != "" {
		return ts
	}
	for _, part := range strings.Split(h.Get(headerProviderSignature), ",") {
		if key, value, found := strings.Cut(strings.TrimSpace(part), "="); found && key == "t" {
			return value
		}
	}
	return ""
}

func (v *Verifier) checkTimestamp(raw string) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrMalformedSignature, raw)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	drift := now().Sub(time.Unix(ts, 0))
	if drift > tolerance || drift < -tolerance {
		return ErrStaleTimestamp
	}
	return nil
}

// decodeSecret unwraps a "whsec_<base64>" signing secret into raw key bytes.
// A secret without the prefix is used verbatim.
func decodeSecret(secret string) ([]byte, error) {
	trimmed, found := strings.CutPrefix(secret, secretPrefix)
	if !found {
		return []byte(secret), nil
	}
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: signing secret is not valid base64", ErrMalformedSignature)
	}
	return key, nil
}

// decodeSignature accepts base64 or hex, whichever decodes to the digest size.
func decodeSignature(candidate string, digestLen int) ([]byte, bool) {
	if sig, err := base64.StdEncoding.DecodeString(candidate); err == nil && len(sig) == digestLen {
		return sig, true
	}
	if sig, err := hex.DecodeString(candidate); err == nil && len(sig) == digestLen {
		return sig, true
	}
	return nil, false
}

func computeHMAC(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}
