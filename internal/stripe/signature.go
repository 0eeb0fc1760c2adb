package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader is the header Stripe signs webhook deliveries with.
const SignatureHeader = "Stripe-Signature"

var (
	// ErrBadSignatureFormat indicates the signature header could not be
	// parsed into its timestamp and signature components.
	ErrBadSignatureFormat = errors.New("bad stripe-signature format")

	// ErrInvalidSignature indicates the provided signature does not match
	// the expected HMAC of the payload.
	ErrInvalidSignature = errors.New("invalid signature")
)

// SignatureParts holds the components of a Stripe-Signature header value.
type SignatureParts struct {
	Timestamp string // "t" pair, Unix seconds as sent
	Signature string // "v1" pair, hex-encoded HMAC-SHA256
}

// ParseSignatureHeader splits a Stripe-Signature header into its t and v1
// components. The header is a comma-separated list of key=value pairs with
// no ordering requirement; unknown pairs are ignored. Values are split on
// the first "=" only, since the signature itself never contains one but the
// rule keeps parsing robust.
func ParseSignatureHeader(value string) (SignatureParts, error) {
	var parts SignatureParts

	for _, segment := range strings.Split(value, ",") {
		key, val, found := strings.Cut(strings.TrimSpace(segment), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parts.Timestamp = val
		case "v1":
			parts.Signature = val
		}
	}

	if parts.Timestamp == "" || parts.Signature == "" {
		return SignatureParts{}, ErrBadSignatureFormat
	}
	return parts, nil
}

// ComputeSignature returns the hex-encoded HMAC-SHA256 of the signed payload
// "{timestamp}.{payload}", keyed by secret. The payload must be the verbatim
// raw request body: re-serializing it would change the byte sequence and
// break verification.
func ComputeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the Stripe-Signature header against the raw request
// body. The length check short-circuits in ordinary time; the byte-by-byte
// comparison is constant-time so a mismatch position cannot be probed via
// timing.
func VerifySignature(payload []byte, headerValue, secret string) error {
	parts, err := ParseSignatureHeader(headerValue)
	if err != nil {
		return err
	}

	expected := ComputeSignature(parts.Timestamp, payload, secret)
	if len(expected) != len(parts.Signature) {
		return ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(parts.Signature)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
