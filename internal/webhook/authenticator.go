package webhook

import (
	"log/slog"
	"net/http"

	"github.com/kmoray/trestle/internal/auth"
)

// SourceCredentials holds the inbound credentials configured for one webhook
// source. Any combination may be set; a zero credential is skipped.
type SourceCredentials struct {
	// Token is a static bearer token expected in the Authorization header.
	Token string

	// Username/Password are basic-auth credentials.
	Username string
	Password string

	// Secret is the HMAC-SHA256 signing secret; SignatureHeader names the
	// header carrying the signature (e.g. "X-Apim-Signature").
	Secret          string
	SignatureHeader string
}

// Authenticator decides whether an inbound webhook request is authentic.
//
// Each source is checked against its configured credentials in order: bearer
// token, basic auth, then HMAC signature over the raw body. The first success
// accepts the request; if every configured method fails (or the source is
// unknown) the request is rejected. Failures never surface as errors, only as
// a false return.
type Authenticator struct {
	sources map[string]SourceCredentials
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator for the given source credentials.
func NewAuthenticator(sources map[string]SourceCredentials, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		sources: sources,
		logger:  logger,
	}
}

// Authenticate reports whether the request identified by source, headers and
// raw body passes any of the source's configured checks. Unknown sources are
// rejected. Rejections are logged at warn level without detail on which check
// failed.
func (a *Authenticator) Authenticate(source string, headers http.Header, body []byte) bool {
	creds, ok := a.sources[source]
	if !ok {
		a.logger.Warn("webhook from unknown source rejected", "source", source)
		return false
	}

	authz := headers.Get("Authorization")

	if creds.Token != "" && auth.MatchBearerToken(authz, creds.Token) {
		return true
	}

	if creds.Username != "" && auth.MatchBasicAuth(authz, creds.Username, creds.Password) {
		return true
	}

	if creds.Secret != "" {
		signature := headers.Get(creds.SignatureHeader)
		if Verify(body, creds.Secret, signature) {
			return true
		}
	}

	a.logger.Warn("webhook authentication failed", "source", source)
	return false
}
