package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sign computes the HMAC-SHA256 signature of body using secret as the key.
// Returns the lower-case hex encoding of the digest.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid HMAC-SHA256 signature of body
// under secret. An empty secret never verifies. Malformed signatures return
// false, never an error.
func Verify(body []byte, secret, signature string) bool {
	return verifyHMACSignature(body, signature, secret) == nil
}

// verifyHMACSignature verifies an HMAC-SHA256 signature against the request body.
//
// This function uses constant-time comparison (crypto/subtle) to prevent timing
// attacks. It supports the signature formats commonly sent by webhook senders.
//
// Supported formats:
//   - "sha256=<hex>" (GitHub style)
//   - "<hex>" (plain hex)
//
// Returns nil if signature is valid, error otherwise.
// All errors are generic to prevent information leakage.
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" {
		return fmt.Errorf("webhook verification failed")
	}

	if signature == "" {
		return fmt.Errorf("webhook verification failed")
	}

	// Compute HMAC-SHA256 of request body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedMAC := mac.Sum(nil)

	// Parse signature from header (handle different formats)
	actualMAC, err := parseSignature(signature)
	if err != nil {
		// Generic error - don't leak format details
		return fmt.Errorf("webhook verification failed")
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare(expectedMAC, actualMAC) != 1 {
		return fmt.Errorf("webhook verification failed")
	}

	return nil
}

// parseSignature extracts and decodes the HMAC signature from various formats.
//
// Supported formats:
//   - "sha256=3a8f..." (prefixed)
//   - "3a8f..." (plain hex)
//
// Returns the raw bytes of the signature.
func parseSignature(signature string) ([]byte, error) {
	if strings.HasPrefix(signature, "sha256=") {
		hexSig := strings.TrimPrefix(signature, "sha256=")
		return hex.DecodeString(hexSig)
	}

	// Handle plain hex format
	return hex.DecodeString(signature)
}

// formatPrefixedSignature formats a hex signature in the "sha256=<hex>" form.
func formatPrefixedSignature(hexSig string) string {
	return "sha256=" + hexSig
}
