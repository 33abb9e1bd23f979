// Package webhook implements the inbound webhook ingress with per-source
// authentication.
//
// Each configured source (the apim platform, the itsm platform) carries its
// own credentials: a static bearer token, a basic-auth pair, an HMAC-SHA256
// signing secret, or any combination. A request is accepted when any
// configured check passes; every failure path resolves to a generic 403.
//
// # Security Model
//
// - HMAC-SHA256 signatures verified using crypto/subtle (constant-time comparison)
// - Bearer and basic-auth comparisons equally constant-time
// - Body size limits enforced to prevent DoS attacks
// - No detail on which check failed leaked in error responses (always generic 403)
// - Request logging excludes payloads and Authorization values
//
// # Request Flow
//
//  1. HTTP POST arrives at /webhooks/{source}
//  2. Body size checked (reject with 413 if too large)
//  3. Source credentials tried in order: bearer token, basic auth, HMAC
//     signature over the raw body (reject with 403 if all fail)
//  4. Payload envelope normalized (event type, correlation id)
//  5. Audit record stored with status "received"
//  6. event.received published to the hub
//  7. 200 returned with the record's event_id
//
// # Error Responses
//
// - 400 Bad Request: payload is not JSON
// - 403 Forbidden: authentication failed (no details)
// - 413 Payload Too Large: body exceeds max_body_size
// - 500 Internal Server Error: audit record could not be stored
//
// Every response carries no-cache headers; webhook acknowledgements must
// never be served from an intermediary cache.
package webhook
