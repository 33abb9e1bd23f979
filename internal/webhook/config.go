package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kmoray/trestle/internal/config"
)

// FromGlobalConfig converts the loaded service configuration into the
// ingress server's own Config. Source credentials are copied as-is; the
// loader has already filled in default signature headers.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := parseMaxBodySize(cfg.Ingress.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ingress max_body_size %q: %w", cfg.Ingress.MaxBodySize, err)
	}

	sources := make(map[string]SourceCredentials, len(cfg.Sources))
	for name, src := range cfg.Sources {
		sources[name] = SourceCredentials{
			Token:           src.Token,
			Username:        src.Username,
			Password:        src.Password,
			Secret:          src.Secret,
			SignatureHeader: src.SignatureHeader,
		}
	}

	return Config{
		Listen:      cfg.Ingress.Listen,
		MaxBodySize: maxBodySize,
		Sources:     sources,
	}, nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(size)
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	// Parse numeric value
	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // Check for overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
