package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetPath retrieves a value from the configuration using a dot-notation path.
func (c *Config) GetPath(path string) (any, error) {
	// 1. Resolve Entity Addressing (type:name)
	if strings.Contains(path, ":") {
		return c.GetEntity(path)
	}

	// 2. Convert to map for generic traversal
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 3. Traverse
	return getValue(m, path)
}

// GetEntity retrieves a first-class entity (source, provider) by type:name.
func (c *Config) GetEntity(address string) (any, error) {
	parts := strings.SplitN(address, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid entity address format %q (expected type:name)", address)
	}

	entityType, name := parts[0], parts[1]

	switch entityType {
	case "source":
		if name == "*" {
			return c.Sources, nil
		}
		s, ok := c.Sources[name]
		if !ok {
			return nil, fmt.Errorf("source %q not found", name)
		}
		return s, nil

	case "provider":
		if name == "*" {
			return c.Providers, nil
		}
		p, ok := c.Providers[name]
		if !ok {
			return nil, fmt.Errorf("provider %q not found", name)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}
}

func getValue(m map[string]any, path string) (any, error) {
	parts := strings.Split(path, ".")
	var current any = m

	for _, part := range parts {
		if part == "" {
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path %q breaks at %q (not a map)", path, part)
		}

		val, exists := m[part]
		if !exists {
			return nil, fmt.Errorf("path %q: key %q not found", path, part)
		}
		current = val
	}

	return current, nil
}

// sensitiveKeys are config field names whose values are masked by Redacted.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"password":      true,
	"secret":        true,
	"client_secret": true,
	"api_key":       true,
	"private_key":   true,
	"public_key":    true,
	"static_token":  true,
}

// Redacted returns a generic map copy of the configuration with credential
// values masked. Safe to render in logs, reports, and the inspect command.
func (c *Config) Redacted() (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	redactMap(m)
	return m, nil
}

// RedactedPath retrieves a value from the redacted configuration using a
// dot-notation path. Credential values along the path come back masked.
func (c *Config) RedactedPath(path string) (any, error) {
	if strings.Contains(path, ":") {
		return nil, fmt.Errorf("entity addressing is not supported on redacted reads; use a dot path")
	}

	m, err := c.Redacted()
	if err != nil {
		return nil, err
	}
	return getValue(m, path)
}

func redactMap(m map[string]any) {
	for key, value := range m {
		switch v := value.(type) {
		case string:
			if sensitiveKeys[key] && v != "" {
				m[key] = "<redacted>"
			}
		case map[string]any:
			redactMap(v)
		case []any:
			for _, item := range v {
				if sub, ok := item.(map[string]any); ok {
					redactMap(sub)
				}
			}
		}
	}
}
