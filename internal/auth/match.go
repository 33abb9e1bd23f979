package auth

import (
	"encoding/base64"
	"strings"
)

// MatchBearerToken compares a presented Authorization value against a
// configured static token. The header may carry the raw token or a
// "Bearer <token>" form; the prefix is stripped when present. An empty
// expected token never matches.
func MatchBearerToken(header, expectedToken string) bool {
	if expectedToken == "" {
		return false
	}
	presented := strings.TrimPrefix(header, "Bearer ")
	return constantTimeEqual(presented, expectedToken)
}

// MatchBasicAuth decodes a "Basic <base64(user:pass)>" Authorization value
// and compares both fields against the expected credentials. Malformed
// input (missing prefix, bad base64, no colon) is a mismatch, not an error.
func MatchBasicAuth(header, expectedUser, expectedPass string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return false
	}

	userOK := constantTimeEqual(user, expectedUser)
	passOK := constantTimeEqual(pass, expectedPass)
	return userOK && passOK
}
