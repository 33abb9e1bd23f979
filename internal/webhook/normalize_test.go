package webhook

import (
	"testing"
)

func TestParseEnvelopeNative(t *testing.T) {
	body := []byte(`{
		"id": "e4567-e89b",
		"time": "2026-04-01T10:00:00+0000",
		"version": "v1",
		"product": "AmplifyCentral",
		"type": "ResourceCreated",
		"correlationId": "corr-1",
		"organization": {"id": "org-9"},
		"payload": {
			"kind": "AssetRequest",
			"metadata": {
				"selfLink": "/management/v1alpha1/assetrequests/ar-1",
				"references": [
					{"kind": "Asset", "selfLink": "/catalog/v1alpha1/assets/a-1"},
					{"kind": "Product", "selfLink": "/catalog/v1alpha1/products/p-1"}
				]
			}
		}
	}`)

	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}

	if env.EventID != "e4567-e89b" {
		t.Errorf("EventID = %q", env.EventID)
	}
	if env.EventType != "ResourceCreated" {
		t.Errorf("EventType = %q", env.EventType)
	}
	if env.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q", env.CorrelationID)
	}
	if env.Kind != "AssetRequest" {
		t.Errorf("Kind = %q", env.Kind)
	}
	if env.SelfLink != "/management/v1alpha1/assetrequests/ar-1" {
		t.Errorf("SelfLink = %q", env.SelfLink)
	}
	if len(env.References) != 2 {
		t.Fatalf("References count = %d, want 2", len(env.References))
	}
	if env.References[0].Kind != "Asset" || env.References[0].SelfLink != "/catalog/v1alpha1/assets/a-1" {
		t.Errorf("References[0] = %+v", env.References[0])
	}
}

func TestParseEnvelopeGeneric(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantType string
		wantCorr string
		wantID   string
	}{
		{
			name:     "camelCase fields",
			body:     `{"id":"ev-1","eventType":"change.approved","correlationId":"corr-7"}`,
			wantType: "change.approved",
			wantCorr: "corr-7",
			wantID:   "ev-1",
		},
		{
			name:     "snake_case fields",
			body:     `{"event_id":"ev-2","event_type":"incident.created","correlation_id":"corr-8"}`,
			wantType: "incident.created",
			wantCorr: "corr-8",
			wantID:   "ev-2",
		},
		{
			name:     "fields nested under data",
			body:     `{"data":{"event_type":"change.approved","correlation_id":"corr-9","id":"ev-3"}}`,
			wantType: "change.approved",
			wantCorr: "corr-9",
			wantID:   "ev-3",
		},
		{
			name:     "missing fields stay zero",
			body:     `{"something":"else"}`,
			wantType: "",
			wantCorr: "",
			wantID:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}
			if env.EventType != tt.wantType {
				t.Errorf("EventType = %q, want %q", env.EventType, tt.wantType)
			}
			if env.CorrelationID != tt.wantCorr {
				t.Errorf("CorrelationID = %q, want %q", env.CorrelationID, tt.wantCorr)
			}
			if env.EventID != tt.wantID {
				t.Errorf("EventID = %q, want %q", env.EventID, tt.wantID)
			}
		})
	}
}

func TestParseEnvelopeGenericResourceFields(t *testing.T) {
	body := []byte(`{
		"id": "ev-4",
		"eventType": "ResourceCreated",
		"kind": "AssetRequest",
		"selfLink": "/management/v1alpha1/assetrequests/ar-2",
		"references": [{"kind":"Asset","selfLink":"/catalog/v1alpha1/assets/a-2"}]
	}`)

	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if env.Kind != "AssetRequest" {
		t.Errorf("Kind = %q", env.Kind)
	}
	if env.SelfLink != "/management/v1alpha1/assetrequests/ar-2" {
		t.Errorf("SelfLink = %q", env.SelfLink)
	}
	if len(env.References) != 1 || env.References[0].Kind != "Asset" {
		t.Errorf("References = %+v", env.References)
	}
}

func TestParseEnvelopeRejectsNonJSON(t *testing.T) {
	if _, err := ParseEnvelope([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestParseEnvelopeNativeRequiresProductKey(t *testing.T) {
	// A generic payload that happens to carry "type" must not be mapped
	// through the native envelope path.
	body := []byte(`{"type":"ResourceCreated","eventType":"other.event"}`)

	env, err := ParseEnvelope(body)
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if env.EventType != "other.event" {
		t.Errorf("EventType = %q, want generic mapping", env.EventType)
	}
}
