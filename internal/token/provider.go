package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kmoray/trestle/internal/config"
)

// Method is the closed set of supported token acquisition flows.
type Method int

const (
	// MethodUnknown is an unrecognized or absent auth_method value. It
	// falls back to basic-auth first, then JWT-bearer.
	MethodUnknown Method = iota
	MethodBasic
	MethodJWT
)

func (m Method) String() string {
	switch m {
	case MethodBasic:
		return "basic"
	case MethodJWT:
		return "jwt"
	default:
		return "unknown"
	}
}

// ParseMethod maps a configured auth_method string onto the enumeration.
func ParseMethod(s string) Method {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "client_credentials":
		return MethodBasic
	case "jwt", "jwt_bearer", "jwt-bearer":
		return MethodJWT
	default:
		return MethodUnknown
	}
}

const grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// expiryMargin shortens a server-reported token lifetime so a cached token
// is never presented moments before the provider invalidates it.
const expiryMargin = 30 * time.Second

// ErrNoAccessToken marks a 2xx token response without an access_token field.
var ErrNoAccessToken = errors.New("token response missing access_token")

// ErrProviderNotFound marks a token request for an unconfigured provider.
var ErrProviderNotFound = errors.New("provider not configured")

// Publisher broadcasts token lifecycle notifications.
type Publisher interface {
	Publish(eventType string, data any)
}

// Provider acquires bearer tokens for the configured downstream platforms,
// consulting the cache before any network call. Safe for concurrent use;
// concurrent cold-cache calls may each refresh independently, which the
// token endpoints tolerate.
type Provider struct {
	providers map[string]config.ProviderConfig
	keys      map[string]*KeyMaterial
	keyErrs   map[string]error
	cache     *Cache
	client    *http.Client
	hub       Publisher
	logger    *slog.Logger
}

// NewProvider builds a token provider over the configured OAuth providers.
// Key material for JWT-bearer providers is parsed here, once; a bad key
// disables that provider's JWT path but never fails construction.
func NewProvider(providers map[string]config.ProviderConfig, cache *Cache, hub Publisher, logger *slog.Logger) *Provider {
	p := &Provider{
		providers: providers,
		keys:      make(map[string]*KeyMaterial),
		keyErrs:   make(map[string]error),
		cache:     cache,
		client:    defaultHTTPClient(),
		hub:       hub,
		logger:    logger,
	}

	for name, pc := range providers {
		if pc.JWT == nil {
			continue
		}
		key, err := LoadKeyMaterial(pc.JWT)
		if err != nil {
			p.keyErrs[name] = err
			logger.Error("jwt signing key unusable, jwt-bearer flow disabled for provider",
				"provider", name, "error", err)
			continue
		}
		p.keys[name] = key
	}

	return p
}

// SetHTTPClient replaces the HTTP client used for token endpoint calls.
// Intended for tests; must be called before any GetToken.
func (p *Provider) SetHTTPClient(client *http.Client) {
	p.client = client
}

// defaultHTTPClient bounds both connection establishment and the whole
// request so a stalled token endpoint cannot hold a handling goroutine.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// KeyError returns the key material failure for a provider, if any.
func (p *Provider) KeyError(providerID string) error {
	return p.keyErrs[providerID]
}

// GetToken returns a bearer token for the provider, from cache when a valid
// entry exists, otherwise by calling the token endpoint. A returned token is
// never empty; every failure path surfaces as an error.
func (p *Provider) GetToken(ctx context.Context, providerID string) (string, error) {
	pc, ok := p.providers[providerID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProviderNotFound, providerID)
	}

	if entry, ok := p.cache.Get(providerID); ok {
		p.logger.Debug("token cache hit", "provider", providerID, "expires_at", entry.ExpiresAt)
		return entry.Token, nil
	}

	var errs []error
	for _, method := range p.methodOrder(providerID, pc) {
		tok, expiresIn, err := p.acquire(ctx, providerID, pc, method)
		if err != nil {
			p.logger.Warn("token acquisition attempt failed",
				"provider", providerID, "method", method.String(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", method, err))
			continue
		}

		now := timeNow().UTC()
		entry := CachedToken{
			Token:     tok,
			IssuedAt:  now,
			ExpiresAt: now.Add(effectiveLifetime(pc.CacheDuration, expiresIn)),
		}
		p.cache.Put(providerID, entry)

		if p.hub != nil {
			p.hub.Publish("token.refreshed", map[string]any{
				"provider":   providerID,
				"method":     method.String(),
				"expires_at": entry.ExpiresAt.Format(time.RFC3339),
			})
		}
		p.logger.Info("token acquired",
			"provider", providerID, "method", method.String(), "expires_at", entry.ExpiresAt)
		return tok, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("acquire token for %q: no usable auth method configured", providerID)
	}
	return "", fmt.Errorf("acquire token for %q: %w", providerID, errors.Join(errs...))
}

// Refresh drops any cached token for the provider and acquires a new one.
func (p *Provider) Refresh(ctx context.Context, providerID string) (string, error) {
	p.cache.Invalidate(providerID)
	return p.GetToken(ctx, providerID)
}

// methodOrder resolves the acquisition order: the configured primary first,
// the other flow as a one-shot fallback when its prerequisites exist. An
// unrecognized auth_method keeps the historical basic-then-JWT ordering but
// is called out so operators can fix the configuration.
func (p *Provider) methodOrder(providerID string, pc config.ProviderConfig) []Method {
	basicOK := pc.ClientSecret != ""
	jwtOK := p.keys[providerID] != nil

	method := ParseMethod(pc.AuthMethod)
	if method == MethodUnknown && pc.AuthMethod != "" {
		p.logger.Warn("unrecognized auth_method, falling back to basic then jwt",
			"provider", providerID, "auth_method", pc.AuthMethod)
	}

	var order []Method
	switch method {
	case MethodBasic:
		order = append(order, MethodBasic)
		if jwtOK {
			order = append(order, MethodJWT)
		}
	case MethodJWT:
		order = append(order, MethodJWT)
		if basicOK {
			order = append(order, MethodBasic)
		}
	default:
		if basicOK {
			order = append(order, MethodBasic)
		}
		if jwtOK {
			order = append(order, MethodJWT)
		}
	}
	return order
}

func (p *Provider) acquire(ctx context.Context, providerID string, pc config.ProviderConfig, method Method) (string, int, error) {
	switch method {
	case MethodBasic:
		return p.acquireBasic(ctx, pc)
	case MethodJWT:
		return p.acquireJWT(ctx, providerID, pc)
	default:
		return "", 0, fmt.Errorf("unsupported method %v", method)
	}
}

// acquireBasic performs the client-credentials grant with the client id and
// secret in a basic Authorization header.
func (p *Provider) acquireBasic(ctx context.Context, pc config.ProviderConfig) (string, int, error) {
	if pc.ClientSecret == "" {
		return "", 0, errors.New("client_secret not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if pc.Scope != "" {
		form.Set("scope", pc.Scope)
	}

	req, err := p.newTokenRequest(ctx, pc, form)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(pc.ClientID, pc.ClientSecret)

	return p.exchange(req)
}

// acquireJWT performs the JWT-bearer grant with a freshly signed assertion.
func (p *Provider) acquireJWT(ctx context.Context, providerID string, pc config.ProviderConfig) (string, int, error) {
	key := p.keys[providerID]
	if key == nil {
		if err := p.keyErrs[providerID]; err != nil {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("%w: no jwt configuration", ErrKeyMaterial)
	}

	assertion, err := BuildAssertion(key, pc.JWT.Issuer, pc.JWT.Subject, pc.JWT.Audience, pc.JWT.Lifetime)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeJWTBearer)
	form.Set("assertion", assertion)
	if pc.ClientID != "" {
		form.Set("client_id", pc.ClientID)
	}
	if pc.ClientSecret != "" {
		form.Set("client_secret", pc.ClientSecret)
	}
	if pc.Scope != "" {
		form.Set("scope", pc.Scope)
	}

	req, err := p.newTokenRequest(ctx, pc, form)
	if err != nil {
		return "", 0, err
	}

	return p.exchange(req)
}

func (p *Provider) newTokenRequest(ctx context.Context, pc config.ProviderConfig, form url.Values) (*http.Request, error) {
	endpoint := pc.TokenURL
	if pc.IdentityDomain != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse token_url: %w", err)
		}
		q := u.Query()
		q.Set("identity_domain", pc.IdentityDomain)
		u.RawQuery = q.Encode()
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// tokenResponse is the expected 2xx token endpoint body. Anything beyond
// access_token and expires_in is ignored.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *Provider) exchange(req *http.Request) (string, int, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token endpoint request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, ErrNoAccessToken
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}

// effectiveLifetime shortens the cache lifetime below the server-reported
// validity so the cache never outlives the token.
func effectiveLifetime(configured time.Duration, expiresInSeconds int) time.Duration {
	lifetime := configured
	if lifetime <= 0 {
		lifetime = config.DefaultProviderConf().CacheDuration
	}

	if expiresInSeconds > 0 {
		server := time.Duration(expiresInSeconds) * time.Second
		if server-expiryMargin < lifetime {
			lifetime = server - expiryMargin
		}
		if lifetime <= 0 {
			lifetime = server / 2
		}
	}
	return lifetime
}

// Status describes one provider's cache slot for the ops API. Token values
// never leave this package.
type Status struct {
	Provider  string     `json:"provider"`
	Method    string     `json:"method"`
	Cached    bool       `json:"cached"`
	Valid     bool       `json:"valid"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	KeyError  string     `json:"key_error,omitempty"`
}

// StatusAll reports the cache state of every configured provider, sorted by
// provider name for stable output.
func (p *Provider) StatusAll() []Status {
	names := make([]string, 0, len(p.providers))
	for name := range p.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{
			Provider: name,
			Method:   ParseMethod(p.providers[name].AuthMethod).String(),
		}
		if err := p.keyErrs[name]; err != nil {
			st.KeyError = err.Error()
		}
		if entry, ok := p.cache.Peek(name); ok {
			st.Cached = true
			st.Valid = entry.Valid(timeNow())
			issued, expires := entry.IssuedAt, entry.ExpiresAt
			st.IssuedAt = &issued
			st.ExpiresAt = &expires
		}
		out = append(out, st)
	}
	return out
}
