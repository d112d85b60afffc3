package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	signaturePrefix = "sha256="
)

// Verifier checks the HMAC-SHA-256 signature a trusted sender computes over
// the raw request body.
type Verifier struct {
	secret []byte
}

// NewVerifier keys the HMAC with secret exactly as configured.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify rejects malformed signatures before comparing, so a length
// mismatch never reaches the constant-time comparison.
func (v *Verifier) Verify(payload []byte, signature string) error {
	sig := strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	if len(sig) != hex.EncodedLen(sha256.Size) {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, v.mac(payload)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the hex signature a sender would attach to payload.
func (v *Verifier) Sign(payload []byte) string {
	return hex.EncodeToString(v.mac(payload))
}

func (v *Verifier) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write(payload)
	return h.Sum(nil)
}
