package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testBody = []byte(`{"id":"evt_1","type":"job.completed","data":{"job_id":"job_42"}}`)
	testNow  = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
)

func testVerifier() *Verifier {
	return &Verifier{Now: func() time.Time { return testNow }}
}

func sign(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

func providerHeader(secret string, body []byte, ts int64) http.Header {
	sig := sign([]byte(secret), fmt.Sprintf("%d.%s", ts, body))
	h := http.Header{}
	h.Set("X-Provider-Signature", fmt.Sprintf("t=%d,v1=%s", ts, base64.StdEncoding.EncodeToString(sig)))
	return h
}

func keyedHeaders(prefix, id string, key, body []byte, ts int64, format string) http.Header {
	msg := fmt.Sprintf("%s.%d.%s", id, ts, body)
	sig := base64.StdEncoding.EncodeToString(sign(key, msg))
	h := http.Header{}
	h.Set(prefix+"-id", id)
	h.Set(prefix+"-timestamp", fmt.Sprintf("%d", ts))
	h.Set(prefix+"-signature", fmt.Sprintf(format, sig))
	return h
}

func TestVerifyProviderScheme(t *testing.T) {
	v := testVerifier()
	secret := "top-secret"
	ts := testNow.Unix()

	t.Run("valid base64 signature", func(t *testing.T) {
		event, err := v.Verify(secret, testBody, providerHeader(secret, testBody, ts))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, "job_42", event.Data.JobID)
	})

	t.Run("valid hex signature", func(t *testing.T) {
		sig := sign([]byte(secret), fmt.Sprintf("%d.%s", ts, testBody))
		h := http.Header{}
		h.Set("X-Provider-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(sig)))

		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("one matching candidate among several", func(t *testing.T) {
		sig := sign([]byte(secret), fmt.Sprintf("%d.%s", ts, testBody))
		h := http.Header{}
		h.Set("X-Provider-Signature", fmt.Sprintf(
			"t=%d,v1=%s,v1=%s",
			ts,
			base64.StdEncoding.EncodeToString(make([]byte, sha256.Size)),
			base64.StdEncoding.EncodeToString(sig),
		))

		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.Verify("other-secret", testBody, providerHeader(secret, testBody, ts))
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})

	t.Run("tampered body", func(t *testing.T) {
		_, err := v.Verify(secret, []byte(`{"id":"evt_1"}`), providerHeader(secret, testBody, ts))
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		old := testNow.Add(-10 * time.Minute).Unix()
		_, err := v.Verify(secret, testBody, providerHeader(secret, testBody, old))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("future timestamp outside tolerance", func(t *testing.T) {
		future := testNow.Add(10 * time.Minute).Unix()
		_, err := v.Verify(secret, testBody, providerHeader(secret, testBody, future))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("malformed header", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Provider-Signature", "not a signature")
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})

	t.Run("missing t element", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Provider-Signature", "v1=abcd")
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})
}

func TestVerifySvixScheme(t *testing.T) {
	v := testVerifier()
	key := []byte("raw-signing-key-0123456789abcdef")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(key)
	ts := testNow.Unix()

	t.Run("valid signature", func(t *testing.T) {
		h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,%s")
		event, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
		// Header delivery id wins over the body id.
		assert.Equal(t, "msg_1", event.ID)
	})

	t.Run("matching candidate among rotated signatures", func(t *testing.T) {
		h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,AAAA v1,%s")
		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("secret without whsec prefix is used verbatim", func(t *testing.T) {
		raw := "verbatim-key"
		h := keyedHeaders("svix", "msg_1", []byte(raw), testBody, ts, "v1,%s")
		_, err := v.Verify(raw, testBody, h)
		require.NoError(t, err)
	})

	t.Run("undecodable whsec secret", func(t *testing.T) {
		h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,%s")
		_, err := v.Verify("whsec_!!!!", testBody, h)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})

	t.Run("timestamp from provider-native header", func(t *testing.T) {
		h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,%s")
		h.Del("svix-timestamp")
		h.Set("X-Provider-Timestamp", fmt.Sprintf("%d", ts))
		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("timestamp from provider signature element", func(t *testing.T) {
		h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,%s")
		h.Del("svix-timestamp")
		// The native scheme is tried first and fails; its t element still
		// feeds the broker recency check.
		h.Set("X-Provider-Signature", fmt.Sprintf("t=%d,v1=AAAA", ts))
		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("stale provider fallback timestamp", func(t *testing.T) {
		old := testNow.Add(-10 * time.Minute).Unix()
		h := keyedHeaders("svix", "msg_1", key, testBody, old, "v1,%s")
		h.Del("svix-timestamp")
		h.Set("X-Provider-Timestamp", fmt.Sprintf("%d", old))
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("incomplete header set", func(t *testing.T) {
		h := http.Header{}
		h.Set("svix-id", "msg_1")
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})
}

func TestVerifyStandardScheme(t *testing.T) {
	v := testVerifier()
	key := []byte("raw-signing-key-0123456789abcdef")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(key)
	ts := testNow.Unix()

	t.Run("v1= token form", func(t *testing.T) {
		h := keyedHeaders("webhook", "msg_9", key, testBody, ts, "v1=%s")
		event, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
		assert.Equal(t, "msg_9", event.ID)
	})

	t.Run("space-interleaved token form", func(t *testing.T) {
		h := keyedHeaders("webhook", "msg_9", key, testBody, ts, "v1 %s")
		_, err := v.Verify(secret, testBody, h)
		require.NoError(t, err)
	})

	t.Run("no v1 token", func(t *testing.T) {
		h := keyedHeaders("webhook", "msg_9", key, testBody, ts, "v2=%s")
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})

	t.Run("wrong signature", func(t *testing.T) {
		h := keyedHeaders("webhook", "msg_9", []byte("wrong-key"), testBody, ts, "v1=%s")
		_, err := v.Verify(secret, testBody, h)
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})
}

func TestVerifySchemeFallthrough(t *testing.T) {
	v := testVerifier()
	key := []byte("raw-signing-key-0123456789abcdef")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(key)
	ts := testNow.Unix()

	// A bogus provider-native header must not mask a valid broker signature.
	h := keyedHeaders("svix", "msg_1", key, testBody, ts, "v1,%s")
	h.Set("X-Provider-Signature", fmt.Sprintf("t=%d,v1=AAAA", ts))

	_, err := v.Verify(secret, testBody, h)
	require.NoError(t, err)
}

func TestVerifyEdgeCases(t *testing.T) {
	v := testVerifier()

	t.Run("no signature headers", func(t *testing.T) {
		_, err := v.Verify("secret", testBody, http.Header{})
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := v.Verify("", testBody, providerHeader("secret", testBody, testNow.Unix()))
		assert.ErrorIs(t, err, ErrVerificationFailed)
	})

	t.Run("unparsable body after valid signature", func(t *testing.T) {
		secret := "top-secret"
		body := []byte("not json")
		_, err := v.Verify(secret, body, providerHeader(secret, body, testNow.Unix()))
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})

	t.Run("body id used when scheme carries no delivery id", func(t *testing.T) {
		secret := "top-secret"
		event, err := v.Verify(secret, testBody, providerHeader(secret, testBody, testNow.Unix()))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
	})

	t.Run("custom tolerance", func(t *testing.T) {
		tight := &Verifier{Tolerance: time.Second, Now: func() time.Time { return testNow }}
		secret := "top-secret"
		old := testNow.Add(-2 * time.Second).Unix()
		_, err := tight.Verify(secret, testBody, providerHeader(secret, testBody, old))
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})
}
