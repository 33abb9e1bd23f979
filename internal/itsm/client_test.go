package itsm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetToken(ctx context.Context, providerID string) (string, error) {
	return s.token, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(t *testing.T, handler http.HandlerFunc, enabled bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:         srv.URL,
		ProviderID:      "itsm",
		OrderingEnabled: enabled,
	}, srv.Client(), staticTokens{token: "tok-itsm"}, quietLogger())
}

func TestOrderItem(t *testing.T) {
	var gotPath, gotAuthz string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthz = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"result":{"request_number":"REQ0012345"}}`))
	}, true)

	number, err := c.OrderItem(context.Background(), "item-1", map[string]any{
		"requested_for": "user-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "REQ0012345", number)
	assert.Equal(t, "/servicecatalog/items/item-1/order_now", gotPath)
	assert.Equal(t, "Bearer tok-itsm", gotAuthz)

	assert.Equal(t, float64(1), gotBody["sysparm_quantity"])
	vars := gotBody["variables"].(map[string]any)
	assert.Equal(t, "user-7", vars["requested_for"])
}

func TestOrderItemMissingNumberIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{}}`))
	}, true)

	_, err := c.OrderItem(context.Background(), "item-1", nil)
	assert.ErrorContains(t, err, "request_number")
}

func TestOrderItemSimulatedWhenDisabled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent with ordering disabled")
	}, false)

	first, err := c.OrderItem(context.Background(), "item-1", nil)
	require.NoError(t, err)
	second, err := c.OrderItem(context.Background(), "item-1", nil)
	require.NoError(t, err)

	assert.Equal(t, "SIM0000001", first)
	assert.Equal(t, "SIM0000002", second)
}

func TestGetRequestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/table/sc_request", r.URL.Path)
		assert.Equal(t, "number=REQ0012345", r.URL.Query().Get("sysparm_query"))
		_, _ = w.Write([]byte(`{"result":[{"number":"REQ0012345","request_state":"in_process"}]}`))
	}, true)

	v, err := c.GetRequestStatus(context.Background(), "REQ0012345")
	require.NoError(t, err)

	rows, ok := v.Array()
	require.True(t, ok)
	require.Len(t, rows, 1)
	state, _ := rows[0].Get("request_state").String()
	assert.Equal(t, "in_process", state)
}

func TestGetRequestStatusNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, true)

	_, err := c.GetRequestStatus(context.Background(), "REQ1")
	assert.ErrorContains(t, err, "502")
}
