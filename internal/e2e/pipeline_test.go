// Package e2e exercises the full relay pipeline against a real SQLite
// database and stubbed downstream platforms: signed webhook in, audited
// record out, side effects on the stubs.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmoray/trestle/internal/apim"
	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/itsm"
	"github.com/kmoray/trestle/internal/log"
	"github.com/kmoray/trestle/internal/notify"
	"github.com/kmoray/trestle/internal/process"
	"github.com/kmoray/trestle/internal/rules"
	"github.com/kmoray/trestle/internal/storage"
	"github.com/kmoray/trestle/internal/token"
	"github.com/kmoray/trestle/internal/webhook"
)

const (
	e2eHMACSecret   = "e2e-hmac-secret"
	e2eSigHeader    = "X-Apim-Signature"
	e2eITSMUser     = "itsm-svc"
	e2eITSMPassword = "itsm-pw"
)

// platformStub fakes the OAuth token endpoint, the API-management platform
// and the ITSM catalog behind one HTTP server.
type platformStub struct {
	t *testing.T

	mu             sync.Mutex
	approvedLinks  []string
	relayedIDs     []string
	orderVariables map[string]any
}

func (p *platformStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth2/v1/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"access_token": "e2e-token", "expires_in": 3600})
	})

	mux.HandleFunc("GET /apis/requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		writeJSON(w, map[string]any{
			"applicationName": "Payments Portal",
			"metadata": map[string]any{
				"references": []map[string]any{
					{"kind": "Asset", "selfLink": "/assets/asset-1"},
				},
			},
		})
	})

	mux.HandleFunc("GET /apis/assets/asset-1", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		writeJSON(w, map[string]any{"name": "Billing API", "teamId": "team-9"})
	})

	mux.HandleFunc("GET /api/v1/team/team-9", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		writeJSON(w, map[string]any{
			"result": map[string]any{
				"name": "Billing Team",
				"users": []map[string]any{
					{"id": "u-1", "roles": []string{"api_access"}},
					{"id": "u-2", "roles": []string{"viewer"}},
				},
			},
		})
	})

	mux.HandleFunc("GET /api/v1/user/u-1", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		writeJSON(w, map[string]any{
			"result": map[string]any{"email": "owner@example.com"},
		})
	})

	mux.HandleFunc("PUT /apis/requests/req-1/approval", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		p.mu.Lock()
		p.approvedLinks = append(p.approvedLinks, "/requests/req-1")
		p.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	mux.HandleFunc("PUT /requests/{id}/approval", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		p.mu.Lock()
		p.relayedIDs = append(p.relayedIDs, r.PathValue("id"))
		p.mu.Unlock()
		writeJSON(w, map[string]any{})
	})

	mux.HandleFunc("POST /servicecatalog/items/cat-1/order_now", func(w http.ResponseWriter, r *http.Request) {
		p.requireBearer(r)
		var body struct {
			Variables map[string]any `json:"variables"`
		}
		assert.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))
		p.mu.Lock()
		p.orderVariables = body.Variables
		p.mu.Unlock()
		writeJSON(w, map[string]any{
			"result": map[string]any{"request_number": "REQ0000042"},
		})
	})

	return mux
}

func (p *platformStub) requireBearer(r *http.Request) {
	// Handlers run on the server goroutine; assert, never FailNow.
	assert.Equal(p.t, "Bearer e2e-token", r.Header.Get("Authorization"),
		"downstream call without the acquired token: %s %s", r.Method, r.URL.Path)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// pipeline bundles the wired service components a test drives directly.
type pipeline struct {
	store     *eventstore.Store
	hub       *events.Hub
	processor *process.Processor
	ingress   *httptest.Server
	stub      *platformStub
}

func newPipeline(t *testing.T, ctx context.Context) *pipeline {
	t.Helper()
	log.Setup("ERROR")

	stub := &platformStub{t: t}
	downstream := httptest.NewServer(stub.handler())
	t.Cleanup(downstream.Close)

	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "trestle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := eventstore.New(db)
	hub := events.NewHub(64)

	providers := map[string]config.ProviderConfig{
		"apim": {
			TokenURL:     downstream.URL + "/oauth2/v1/token",
			ClientID:     "apim-client",
			ClientSecret: "apim-secret",
		},
		"itsm": {
			TokenURL:     downstream.URL + "/oauth2/v1/token",
			ClientID:     "itsm-client",
			ClientSecret: "itsm-secret",
		},
	}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	tokens := token.NewProvider(providers, token.NewCache(), hub, log.Get())
	tokens.SetHTTPClient(httpClient)

	platform := apim.New(apim.Config{
		APIBaseURL:      downstream.URL,
		PlatformBaseURL: downstream.URL,
		ProviderID:      "apim",
	}, httpClient, tokens, log.Get())

	catalog := itsm.New(itsm.Config{
		BaseURL:         downstream.URL,
		ProviderID:      "itsm",
		OrderingEnabled: true,
	}, httpClient, tokens, log.Get())

	notifier := notify.New(config.NotifyConfig{Enabled: false}, log.Get())

	processor := process.New(process.Config{
		CatalogItemID: "cat-1",
		NeedByDays:    30,
		ApproverRole:  "api_access",
	}, store, rules.New(nil), platform, catalog, notifier, hub, log.Get())

	ingressSrv := webhook.New(webhook.Config{
		Sources: map[string]webhook.SourceCredentials{
			"apim": {Secret: e2eHMACSecret, SignatureHeader: e2eSigHeader},
			"itsm": {Username: e2eITSMUser, Password: e2eITSMPassword},
		},
	}, store, hub, log.Get())
	ingress := httptest.NewServer(ingressSrv.Handler())
	t.Cleanup(ingress.Close)

	return &pipeline{
		store:     store,
		hub:       hub,
		processor: processor,
		ingress:   ingress,
		stub:      stub,
	}
}

// postSigned delivers body to the apim ingress endpoint with a valid HMAC
// signature and returns the assigned event ID.
func (p *pipeline) postSigned(t *testing.T, body []byte) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, p.ingress.URL+"/webhooks/apim", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(e2eSigHeader, "sha256="+webhook.Sign(body, e2eHMACSecret))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack webhook.AckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	require.NotEmpty(t, ack.EventID)
	return ack.EventID
}

// postBasic delivers body to the itsm ingress endpoint with basic auth.
func (p *pipeline) postBasic(t *testing.T, body []byte) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, p.ingress.URL+"/webhooks/itsm", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(e2eITSMUser, e2eITSMPassword)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack webhook.AckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	require.NotEmpty(t, ack.EventID)
	return ack.EventID
}

// processNext claims the oldest received event and runs it to a terminal
// status.
func (p *pipeline) processNext(t *testing.T, ctx context.Context) {
	t.Helper()
	rec, err := p.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec, "no claimable event in store")
	p.processor.ProcessOne(ctx, rec)
}

func hubTypes(h *events.Hub) []string {
	snapshot := h.SnapshotSince(0)
	types := make([]string, 0, len(snapshot))
	for _, ev := range snapshot {
		types = append(types, ev.Type)
	}
	return types
}

func TestAssetRequestProvisioning(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	p := newPipeline(t, ctx)

	body, err := json.Marshal(map[string]any{
		"id":            "evt-asset-1",
		"type":          "apim.asset.request.created",
		"product":       "apim",
		"correlationId": "corr-asset-1",
		"payload": map[string]any{
			"kind": "AssetRequest",
			"metadata": map[string]any{
				"selfLink": "/requests/req-1",
				"references": []map[string]any{
					{"kind": "Asset", "selfLink": "/assets/asset-1"},
				},
			},
		},
	})
	require.NoError(t, err)

	eventID := p.postSigned(t, body)
	p.processNext(t, ctx)

	rec, err := p.store.Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusProcessed, rec.Status)
	assert.NotNil(t, rec.ProcessedAt)
	require.NotNil(t, rec.CallbackStatus)
	assert.Equal(t, eventstore.CallbackTicketCreated, *rec.CallbackStatus)
	require.NotNil(t, rec.ApprovalState)
	assert.Equal(t, "pending", *rec.ApprovalState)
	assert.Equal(t, "evt-asset-1", rec.SourceEventID)
	assert.Equal(t, "corr-asset-1", rec.CorrelationID)

	p.stub.mu.Lock()
	defer p.stub.mu.Unlock()
	assert.Equal(t, []string{"/requests/req-1"}, p.stub.approvedLinks)
	require.NotNil(t, p.stub.orderVariables)
	assert.Equal(t, "owner@example.com", p.stub.orderVariables["requested_for"])
	assert.Equal(t, "Payments Portal", p.stub.orderVariables["application_name"])
	assert.Equal(t, "Billing API", p.stub.orderVariables["api_resource_name"])
	assert.Equal(t, "Billing Team", p.stub.orderVariables["api_owner"])
	assert.Equal(t, "owner@example.com", p.stub.orderVariables["api_access_managers"])

	types := hubTypes(p.hub)
	assert.Contains(t, types, events.TypeEventReceived)
	assert.Contains(t, types, events.TypeEventProcessed)
	assert.Contains(t, types, events.TypeTokenRefreshed)
}

func TestApprovalRelayBackToOrigin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	p := newPipeline(t, ctx)

	// Opening event already audited: correlates the later approval with
	// the origin platform's request.
	origin := &eventstore.EventRecord{
		EventType:     "apim.asset.request.created",
		Source:        "apim",
		CorrelationID: "corr-relay-1",
		Payload:       json.RawMessage(`{"requestId":"req-77"}`),
		Status:        eventstore.StatusProcessed,
	}
	require.NoError(t, p.store.Insert(ctx, origin))

	body, err := json.Marshal(map[string]any{
		"event_id":       "chg-1",
		"event_type":     "change.approved",
		"correlation_id": "corr-relay-1",
		"comments":       "Change board approved",
	})
	require.NoError(t, err)

	eventID := p.postBasic(t, body)
	p.processNext(t, ctx)

	rec, err := p.store.Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusProcessed, rec.Status)
	require.NotNil(t, rec.CallbackStatus)
	assert.Equal(t, eventstore.CallbackSuccess, *rec.CallbackStatus)
	require.NotNil(t, rec.RelatedEventID)
	assert.Equal(t, origin.ID, *rec.RelatedEventID)

	p.stub.mu.Lock()
	defer p.stub.mu.Unlock()
	assert.Equal(t, []string{"req-77"}, p.stub.relayedIDs)
}

func TestIncidentEventIsIgnored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	p := newPipeline(t, ctx)

	body, err := json.Marshal(map[string]any{
		"event_id":   "inc-1",
		"event_type": "incident.opened",
	})
	require.NoError(t, err)

	eventID := p.postBasic(t, body)
	p.processNext(t, ctx)

	rec, err := p.store.Get(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, eventstore.StatusIgnored, rec.Status)
	assert.Nil(t, rec.CallbackStatus)

	assert.Contains(t, hubTypes(p.hub), events.TypeEventIgnored)

	p.stub.mu.Lock()
	defer p.stub.mu.Unlock()
	assert.Empty(t, p.stub.approvedLinks)
	assert.Nil(t, p.stub.orderVariables)
}

func TestForgedSignatureRejectedAndUnaudited(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	p := newPipeline(t, ctx)

	body := []byte(`{"id":"evt-x","type":"apim.asset.request.created","product":"apim"}`)
	req, err := http.NewRequest(http.MethodPost, p.ingress.URL+"/webhooks/apim", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(e2eSigHeader, "sha256="+webhook.Sign(body, "wrong-secret"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	recs, err := p.store.List(ctx, eventstore.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs, "rejected webhook must not be audited")
}
