package api

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmoray/trestle/internal/auth"
	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/token"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStore struct {
	records   []*eventstore.EventRecord
	gotFilter eventstore.ListFilter
	listErr   error
}

func (f *fakeStore) List(ctx context.Context, filter eventstore.ListFilter) ([]*eventstore.EventRecord, error) {
	f.gotFilter = filter
	return f.records, f.listErr
}

func (f *fakeStore) Get(ctx context.Context, id string) (*eventstore.EventRecord, error) {
	for _, rec := range f.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, eventstore.ErrEventNotFound
}

type fakeTokens struct {
	statuses   []token.Status
	refreshErr error
	refreshed  []string
}

func (f *fakeTokens) StatusAll() []token.Status {
	return f.statuses
}

func (f *fakeTokens) Refresh(ctx context.Context, providerID string) (string, error) {
	f.refreshed = append(f.refreshed, providerID)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "fresh-token-value", nil
}

type testServer struct {
	srv    *Server
	store  *fakeStore
	tokens *fakeTokens
	hub    *events.Hub
	http   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		store: &fakeStore{},
		tokens: &fakeTokens{statuses: []token.Status{
			{Provider: "apim", Method: "jwt", Cached: true, Valid: true},
		}},
		hub: events.NewHub(16),
	}
	ts.srv = New(Config{
		APIKey: "admin-key",
		Tokens: []auth.TokenConfig{
			{Token: "ro-key", Scopes: []string{"events:ro", "token:ro"}},
		},
	}, ts.store, ts.tokens, ts.hub, quietLogger())

	ts.http = httptest.NewServer(ts.srv.setupRoutes())
	t.Cleanup(ts.http.Close)
	return ts
}

func (ts *testServer) request(t *testing.T, method, path, key string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.http.URL+path, nil)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthzResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestMissingKeyIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/events", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWrongKeyIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/events", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerHeaderAlsoAuthenticates(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer admin-key")

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListEventsFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.store.records = []*eventstore.EventRecord{
		{ID: "e1", Source: "apim", Status: eventstore.StatusProcessed},
	}

	resp := ts.request(t, http.MethodGet, "/api/v1/events?source=apim&status=processed&limit=5", "admin-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, eventstore.ListFilter{Source: "apim", Status: "processed", Limit: 5}, ts.store.gotFilter)

	var body EventListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "e1", body.Events[0].ID)
}

func TestListEventsBadLimit(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/events?limit=zero", "admin-key")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetEventNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/events/nope", "admin-key")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTokenStatus(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/token/status", "ro-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body TokenStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "apim", body.Providers[0].Provider)
	assert.True(t, body.Providers[0].Valid)
}

func TestTokenRefreshScopeEnforced(t *testing.T) {
	ts := newTestServer(t)

	// read-only key may not refresh
	resp := ts.request(t, http.MethodPost, "/api/v1/token/refresh/apim", "ro-key")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, ts.tokens.refreshed)

	// admin key may
	resp = ts.request(t, http.MethodPost, "/api/v1/token/refresh/apim", "admin-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"apim"}, ts.tokens.refreshed)

	var body TokenRefreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Refreshed)
}

func TestTokenRefreshUnknownProvider(t *testing.T) {
	ts := newTestServer(t)
	ts.tokens.refreshErr = token.ErrProviderNotFound

	resp := ts.request(t, http.MethodPost, "/api/v1/token/refresh/ghost", "admin-key")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamReplaysBufferedEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Publish(events.TypeEventReceived, events.RecordData{EventID: "e1", Source: "apim"})
	ts.hub.Publish(events.TypeEventProcessed, events.RecordData{EventID: "e1", Source: "apim"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "ro-key")

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 6 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimRight(line, "\n"))
	}

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "id: 1")
	assert.Contains(t, joined, "event: "+events.TypeEventReceived)
	assert.Contains(t, joined, "event: "+events.TypeEventProcessed)
	assert.Contains(t, joined, `"event_id":"e1"`)
	cancel()
}

func TestStreamHonorsLastEventID(t *testing.T) {
	ts := newTestServer(t)
	ts.hub.Publish(events.TypeEventReceived, events.RecordData{EventID: "e1"})
	ts.hub.Publish(events.TypeEventProcessed, events.RecordData{EventID: "e1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/api/v1/stream", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "ro-key")
	req.Header.Set("Last-Event-ID", "1")

	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "id: 2", strings.TrimRight(line, "\n"))
	cancel()
}

func TestOpenAPIDocListsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.request(t, http.MethodGet, "/api/v1/openapi.json", "ro-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	paths := doc["paths"].(map[string]any)
	for _, p := range []string{"/healthz", "/api/v1/events", "/api/v1/token/status", "/api/v1/stream"} {
		assert.Contains(t, paths, p)
	}
}
