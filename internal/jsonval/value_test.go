package jsonval

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object", `{"a":1}`, false},
		{"array", `[1,2,3]`, false},
		{"string", `"hello"`, false},
		{"null", `null`, false},
		{"malformed", `{"a":`, true},
		{"empty input", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGet(t *testing.T) {
	v, err := Parse([]byte(`{
		"payload": {
			"kind": "AssetRequest",
			"metadata": {"selfLink": "/management/v1alpha1/requests/42"}
		},
		"count": 3,
		"active": true,
		"tags": ["a", "b"]
	}`))
	if err != nil {
		t.Fatal(err)
	}

	if s, ok := v.Get("payload", "kind").String(); !ok || s != "AssetRequest" {
		t.Errorf("Get(payload, kind) = %q, %v", s, ok)
	}

	if s, ok := v.Get("payload", "metadata", "selfLink").String(); !ok || s != "/management/v1alpha1/requests/42" {
		t.Errorf("Get deep path = %q, %v", s, ok)
	}

	if n, ok := v.Get("count").Number(); !ok || n != 3 {
		t.Errorf("Get(count).Number() = %v, %v", n, ok)
	}

	if b, ok := v.Get("active").Bool(); !ok || !b {
		t.Errorf("Get(active).Bool() = %v, %v", b, ok)
	}

	items, ok := v.Get("tags").Array()
	if !ok || len(items) != 2 {
		t.Fatalf("Get(tags).Array() = %v items, ok=%v", len(items), ok)
	}
	if s, _ := items[0].String(); s != "a" {
		t.Errorf("tags[0] = %q", s)
	}

	// Missing keys and type mismatches yield absent values, not panics.
	if v.Get("missing").Present() {
		t.Error("missing key should be absent")
	}
	if v.Get("count", "nested").Present() {
		t.Error("traversing through a number should be absent")
	}
	if _, ok := v.Get("count").String(); ok {
		t.Error("number should not read as string")
	}
}

func TestHas(t *testing.T) {
	v, _ := Parse([]byte(`{"type":"SubscriptionUpdated","product":"gateway","id":"e1"}`))

	if !v.Has("type", "product") {
		t.Error("Has(type, product) should be true")
	}
	if v.Has("type", "missing") {
		t.Error("Has with a missing key should be false")
	}

	scalar, _ := Parse([]byte(`"just a string"`))
	if scalar.Has("type") {
		t.Error("Has on a non-object should be false")
	}
}

func TestFirstString(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		keys  []string
		want  string
		found bool
	}{
		{
			name:  "top level first key",
			json:  `{"requestId":"r-1"}`,
			keys:  []string{"requestId", "request_id", "id"},
			want:  "r-1",
			found: true,
		},
		{
			name:  "top level alternate key",
			json:  `{"request_id":"r-2"}`,
			keys:  []string{"requestId", "request_id", "id"},
			want:  "r-2",
			found: true,
		},
		{
			name:  "nested under data",
			json:  `{"data":{"id":"r-3"}}`,
			keys:  []string{"requestId", "request_id", "id"},
			want:  "r-3",
			found: true,
		},
		{
			name:  "top level wins over nested",
			json:  `{"id":"top","data":{"id":"nested"}}`,
			keys:  []string{"id"},
			want:  "top",
			found: true,
		},
		{
			name:  "empty string skipped",
			json:  `{"requestId":"","data":{"request_id":"r-4"}}`,
			keys:  []string{"requestId", "request_id"},
			want:  "r-4",
			found: true,
		},
		{
			name:  "not found",
			json:  `{"other":"x"}`,
			keys:  []string{"requestId", "request_id", "id"},
			found: false,
		},
		{
			name:  "non-string value skipped",
			json:  `{"id":42}`,
			keys:  []string{"id"},
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.json))
			if err != nil {
				t.Fatal(err)
			}
			got, found := v.FirstString(tt.keys...)
			if found != tt.found {
				t.Fatalf("FirstString() found = %v, want %v", found, tt.found)
			}
			if found && got != tt.want {
				t.Errorf("FirstString() = %q, want %q", got, tt.want)
			}
		})
	}
}
