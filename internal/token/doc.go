// Package token acquires and caches OAuth access tokens for the downstream
// platforms. Two grant flows are supported: client-credentials with basic
// auth, and JWT-bearer with a locally signed RS256 assertion. Acquired
// tokens are cached per provider with a deliberately shortened lifetime so
// the service never presents a token racing against server-side expiry.
package token
