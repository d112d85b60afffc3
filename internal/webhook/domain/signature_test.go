package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifierRequiresSecret(t *testing.T) {
	for _, secret := range []string{"", "   "} {
		_, err := NewVerifier(secret)
		assert.ErrorIs(t, err, ErrMissingSecret)
	}
}

func TestVerifyAcceptsKnownSignature(t *testing.T) {
	payload := []byte(`{"event":"partner_signup","email":"a@example.com"}`)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	assert.Equal(t, expected, v.Sign(payload))
	assert.NoError(t, v.Verify(payload, expected))
	assert.NoError(t, v.Verify(payload, "sha256="+expected))
	assert.NoError(t, v.Verify(payload, strings.ToUpper(expected)))
}

func TestVerifierKeysWithUntrimmedSecret(t *testing.T) {
	payload := []byte(`{"event":"partner_signup","email":"a@example.com"}`)
	mac := hmac.New(sha256.New, []byte(" s3cret\n"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	v, err := NewVerifier(" s3cret\n")
	require.NoError(t, err)
	assert.NoError(t, v.Verify(payload, expected))

	trimmed, err := NewVerifier("s3cret")
	require.NoError(t, err)
	assert.ErrorIs(t, trimmed.Verify(payload, expected), ErrInvalidSignature)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)
	payload := []byte(`{"event":"user_signup"}`)
	good := v.Sign(payload)

	other, err := NewVerifier("other")
	require.NoError(t, err)

	cases := map[string]struct {
		payload   []byte
		signature string
	}{
		"missing":         {payload, ""},
		"short":           {payload, good[:10]},
		"long":            {payload, good + "00"},
		"not hex":         {payload, strings.Repeat("zz", 32)},
		"wrong secret":    {payload, other.Sign(payload)},
		"tampered body":   {[]byte(`{"event":"user_signup" }`), good},
		"prefix only":     {payload, "sha256="},
		"flipped last ch": {payload, good[:63] + flip(good[63])},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, v.Verify(tc.payload, tc.signature), ErrInvalidSignature)
		})
	}
}

func flip(c byte) string {
	if c == '0' {
		return "1"
	}
	return "0"
}
