// Package auth signs outbound Graphwise Transformer calls with a
// time-stamped HMAC and verifies such signatures on the server side.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Metadata keys carrying the signature. gRPC metadata keys are lowercase.
const (
	TimestampHeader = "x-timestamp"
	SignatureHeader = "x-signature"
)

// Sign returns the lowercase hex HMAC-SHA256 of timestamp keyed by secret.
func Sign(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the valid signature of timestamp.
func Verify(secret, timestamp, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	return hmac.Equal(mac.Sum(nil), want)
}

// Signer stamps calls with the current Unix time and its signature.
type Signer struct {
	secret string
	now    func() time.Time
}

// NewSigner returns a Signer for secret, or nil when secret is empty so
// unauthenticated deployments send no headers at all.
func NewSigner(secret string) *Signer {
	if secret == "" {
		return nil
	}
	return &Signer{secret: secret, now: time.Now}
}

// Headers returns the timestamp and its signature for a call made now.
func (s *Signer) Headers() (timestamp, signature string) {
	timestamp = strconv.FormatInt(s.now().Unix(), 10)
	return timestamp, Sign(s.secret, timestamp)
}
