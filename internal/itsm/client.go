// Package itsm is the REST client for the ITSM service catalog: ordering
// catalog items and reading back request status.
package itsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/kmoray/trestle/internal/jsonval"
)

// TokenSource supplies bearer tokens for outbound calls.
type TokenSource interface {
	GetToken(ctx context.Context, providerID string) (string, error)
}

// Config holds the catalog client's endpoint and auth settings.
type Config struct {
	BaseURL    string
	ProviderID string

	// OrderingEnabled gates real catalog orders. When false, OrderItem
	// returns a simulated request number without a network call, so the
	// rest of the workflow can be exercised against production data
	// safely.
	OrderingEnabled bool
}

// Client talks to the ITSM catalog. Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	logger *slog.Logger

	simCounter atomic.Int64
}

func New(cfg Config, httpClient *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: tokens,
		logger: logger,
	}
}

// OrderItem submits a catalog order for the item and returns the request
// number assigned by the catalog. With ordering disabled it returns a
// simulated "SIM"-prefixed number instead.
func (c *Client) OrderItem(ctx context.Context, sysID string, variables map[string]any) (string, error) {
	if !c.cfg.OrderingEnabled {
		n := c.simCounter.Add(1)
		number := fmt.Sprintf("SIM%07d", n)
		c.logger.Info("catalog ordering disabled, returning simulated request",
			"sys_id", sysID, "request_number", number)
		return number, nil
	}

	body := map[string]any{
		"sysparm_quantity": 1,
		"variables":        variables,
	}
	endpoint := fmt.Sprintf("%s/servicecatalog/items/%s/order_now", c.cfg.BaseURL, sysID)
	raw, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}

	v, err := jsonval.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	number, ok := v.Get("result", "request_number").String()
	if !ok || number == "" {
		return "", fmt.Errorf("order response missing request_number")
	}
	return number, nil
}

// GetRequestStatus reads a catalog request record by its request number.
func (c *Client) GetRequestStatus(ctx context.Context, number string) (jsonval.Value, error) {
	endpoint := fmt.Sprintf("%s/table/sc_request?sysparm_query=number=%s",
		c.cfg.BaseURL, url.QueryEscape(number))
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return jsonval.Value{}, err
	}

	v, err := jsonval.Parse(raw)
	if err != nil {
		return jsonval.Value{}, fmt.Errorf("decode request status: %w", err)
	}
	if inner := v.Get("result"); inner.Present() {
		return inner, nil
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.tokens.GetToken(ctx, c.cfg.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("obtain token for %q: %w", c.cfg.ProviderID, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s returned %d", method, endpoint, resp.StatusCode)
	}
	return data, nil
}
