// Package jsonval wraps decoded JSON payloads in a small value type with
// fallible field extraction. Webhook payloads arrive with no schema, so
// every lookup returns an explicit ok flag instead of panicking on a bad
// type assertion.
package jsonval

import "encoding/json"

// Value is one node of a decoded JSON document: null, bool, number,
// string, array, or object. The zero Value behaves as absent.
type Value struct {
	raw     any
	present bool
}

// Parse decodes a raw JSON document into a Value.
func Parse(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return Value{raw: v, present: true}, nil
}

// FromAny wraps an already-decoded JSON value.
func FromAny(v any) Value {
	return Value{raw: v, present: true}
}

// Present reports whether the value exists at all.
func (v Value) Present() bool {
	return v.present
}

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool {
	return v.present && v.raw == nil
}

// Get traverses nested objects by key. A missing key or a non-object
// along the path yields the absent Value.
func (v Value) Get(keys ...string) Value {
	current := v
	for _, key := range keys {
		obj, ok := current.Object()
		if !ok {
			return Value{}
		}
		raw, exists := obj[key]
		if !exists {
			return Value{}
		}
		current = Value{raw: raw, present: true}
	}
	return current
}

// Object returns the value as a JSON object.
func (v Value) Object() (map[string]any, bool) {
	if !v.present {
		return nil, false
	}
	m, ok := v.raw.(map[string]any)
	return m, ok
}

// Array returns the value's elements as Values.
func (v Value) Array() ([]Value, bool) {
	if !v.present {
		return nil, false
	}
	items, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = Value{raw: item, present: true}
	}
	return out, true
}

// String returns the value as a string.
func (v Value) String() (string, bool) {
	if !v.present {
		return "", false
	}
	s, ok := v.raw.(string)
	return s, ok
}

// Number returns the value as a float64.
func (v Value) Number() (float64, bool) {
	if !v.present {
		return 0, false
	}
	n, ok := v.raw.(float64)
	return n, ok
}

// Bool returns the value as a bool.
func (v Value) Bool() (bool, bool) {
	if !v.present {
		return false, false
	}
	b, ok := v.raw.(bool)
	return b, ok
}

// Has reports whether the object carries all the given top-level keys.
func (v Value) Has(keys ...string) bool {
	obj, ok := v.Object()
	if !ok {
		return false
	}
	for _, key := range keys {
		if _, exists := obj[key]; !exists {
			return false
		}
	}
	return true
}

// FirstString returns the first non-empty string found under the given
// keys, checking each key at the top level and then under a nested
// "data" object. Payloads from different platform versions place
// identifiers at either depth.
func (v Value) FirstString(keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := v.Get(key).String(); ok && s != "" {
			return s, true
		}
	}
	data := v.Get("data")
	for _, key := range keys {
		if s, ok := data.Get(key).String(); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
