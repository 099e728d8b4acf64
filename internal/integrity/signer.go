// Package integrity provides HMAC signing for downloadable module content
// and self-contained, time-boxed, user-bound download tokens. Tokens carry
// their own proof: validation is a pure function of the secret and the
// clock, with no server-side session table.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and verifies HMAC-SHA256 signatures with the configured
// platform secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex-encoded HMAC-SHA256 of content.
func (s *Signer) Sign(content []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(content)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a hex signature against content. The comparison is constant
// time so verification latency leaks nothing about where a forged signature
// first diverges.
func (s *Signer) Verify(content []byte, signatureHex string) bool {
	expected, err := hex.DecodeString(s.Sign(content))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}

// verifyRaw checks a hex signature against a payload string without
// re-encoding, used by token validation.
func (s *Signer) verifyRaw(payload, signatureHex string) bool {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(mac.Sum(nil), provided)
}
