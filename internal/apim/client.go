// Package apim is the REST client for the origin API-management platform:
// resource lookups, team/user directory reads, and approval updates.
package apim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kmoray/trestle/internal/jsonval"
)

// TokenSource supplies bearer tokens for outbound calls.
type TokenSource interface {
	GetToken(ctx context.Context, providerID string) (string, error)
}

// Config holds the client's endpoints and auth settings.
type Config struct {
	// APIBaseURL roots resource self-links and request approvals.
	APIBaseURL string

	// PlatformBaseURL roots the team/user directory API.
	PlatformBaseURL string

	// ProviderID names the OAuth provider used for outbound auth.
	ProviderID string

	// StaticToken is presented when token acquisition fails. Empty
	// disables the fallback.
	StaticToken string
}

// Client talks to the API-management platform. Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	logger *slog.Logger
}

// New creates a client. The HTTP client is shared with other outbound
// callers and carries the service's bounded timeouts.
func New(cfg Config, httpClient *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: tokens,
		logger: logger,
	}
}

// GetResourceBySelfLink fetches the resource a webhook event points at.
func (c *Client) GetResourceBySelfLink(ctx context.Context, selfLink string) (jsonval.Value, error) {
	return c.getJSON(ctx, c.cfg.APIBaseURL+"/apis"+selfLink, "")
}

// GetTeam fetches a team from the platform directory. The directory wraps
// every response in a "result" object.
func (c *Client) GetTeam(ctx context.Context, teamID string) (jsonval.Value, error) {
	return c.getJSON(ctx, c.cfg.PlatformBaseURL+"/api/v1/team/"+teamID, "result")
}

// GetUser fetches a user from the platform directory.
func (c *Client) GetUser(ctx context.Context, userID string) (jsonval.Value, error) {
	return c.getJSON(ctx, c.cfg.PlatformBaseURL+"/api/v1/user/"+userID, "result")
}

// SetApproved marks a pending resource request approved on the platform.
func (c *Client) SetApproved(ctx context.Context, selfLink, reason string) error {
	body := map[string]any{
		"approval": map[string]any{
			"state": map[string]any{
				"name":   "approved",
				"reason": reason,
			},
		},
	}
	_, err := c.do(ctx, http.MethodPut, c.cfg.APIBaseURL+"/apis"+selfLink+"/approval", body)
	return err
}

// UpdateApprovalState relays an external approval decision back to the
// origin request.
func (c *Client) UpdateApprovalState(ctx context.Context, requestID, state, comments string) error {
	body := map[string]any{
		"approval": map[string]any{
			"state": map[string]any{
				"name":   state,
				"reason": comments,
			},
		},
	}
	_, err := c.do(ctx, http.MethodPut, c.cfg.APIBaseURL+"/requests/"+requestID+"/approval", body)
	return err
}

func (c *Client) getJSON(ctx context.Context, url, unwrap string) (jsonval.Value, error) {
	raw, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jsonval.Value{}, err
	}

	v, err := jsonval.Parse(raw)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("decode response from %s: %w", url, err)
	}
	if unwrap != "" {
		if inner := v.Get(unwrap); inner.Present() {
			return inner, nil
		}
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, method, url string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s returned %d", method, url, resp.StatusCode)
	}
	return data, nil
}

// bearerToken obtains an OAuth token, falling back to the configured static
// token when acquisition fails and a fallback is configured.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	tok, err := c.tokens.GetToken(ctx, c.cfg.ProviderID)
	if err == nil {
		return tok, nil
	}

	if c.cfg.StaticToken != "" {
		c.logger.Warn("token acquisition failed, using configured static token",
			"provider", c.cfg.ProviderID, "error", err)
		return strings.TrimSpace(c.cfg.StaticToken), nil
	}
	return "", fmt.Errorf("obtain token for %q: %w", c.cfg.ProviderID, err)
}
