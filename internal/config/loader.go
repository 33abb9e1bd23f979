package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file.
func Load(configPath string) (*Config, error) {
	// Resolve to absolute path for consistent relative path resolution
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		// Directory provided - look for config.yaml inside
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	// Apply config defaults before validation
	cfg = applyConfigDefaults(cfg)

	// Hash-verify the config file when a .checksums manifest exists alongside it
	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Apply provider defaults
	for name, providerConf := range cfg.Providers {
		merged := mergeProviderDefaults(providerConf)
		cfg.Providers[name] = merged
	}

	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $TRESTLE_CONFIG, ~/.config/trestle/config.yaml,
// /etc/trestle/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if path := os.Getenv("TRESTLE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "trestle", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	systemConfig := "/etc/trestle/config.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig, nil
	}

	legacyConfig := "./config.yaml"
	if _, err := os.Stat(legacyConfig); err == nil {
		return legacyConfig, nil
	}

	return "", fmt.Errorf("no config found (checked: $TRESTLE_CONFIG, ~/.config/trestle, /etc/trestle, ./config.yaml)")
}

// loadConfigFile loads and parses a single config file.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Apply environment variable interpolation
	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// verifyConfigHash checks the config file against the .checksums manifest in
// its directory. A missing manifest skips verification; a manifest that
// omits the file, or a hash mismatch, is a hard failure.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		// No .checksums in this directory; verification not enabled.
		return nil
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: trestle config lock --config %s", basename, dir, path)
	}

	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: trestle config lock --config %s", path, err, path)
	}

	return nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.DataDir == "" {
		cfg.Service.DataDir = defaults.Service.DataDir
	}

	if cfg.Ingress.Listen == "" {
		cfg.Ingress.Listen = defaults.Ingress.Listen
	}
	if cfg.Ingress.MaxBodySize == "" {
		cfg.Ingress.MaxBodySize = defaults.Ingress.MaxBodySize
	}

	if !cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API = defaults.API
	}

	if cfg.Sources == nil {
		cfg.Sources = make(map[string]SourceConfig)
	}
	for name, src := range cfg.Sources {
		if src.SignatureHeader == "" {
			src.SignatureHeader = defaultSignatureHeader(name)
			cfg.Sources[name] = src
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	if cfg.Workflow.PollInterval == 0 {
		cfg.Workflow.PollInterval = defaults.Workflow.PollInterval
	}
	if cfg.Workflow.APIProvider == "" {
		cfg.Workflow.APIProvider = defaults.Workflow.APIProvider
	}
	if cfg.Workflow.CatalogProvider == "" {
		cfg.Workflow.CatalogProvider = defaults.Workflow.CatalogProvider
	}
	if cfg.Workflow.NeedByDays == 0 {
		cfg.Workflow.NeedByDays = defaults.Workflow.NeedByDays
	}
	if cfg.Workflow.ApproverRole == "" {
		cfg.Workflow.ApproverRole = defaults.Workflow.ApproverRole
	}

	if cfg.Cleanup.RetentionDays == 0 {
		cfg.Cleanup.RetentionDays = defaults.Cleanup.RetentionDays
	}
	if cfg.Cleanup.IgnoredRetentionDays == 0 {
		cfg.Cleanup.IgnoredRetentionDays = defaults.Cleanup.IgnoredRetentionDays
	}
	if cfg.Cleanup.Interval == 0 {
		cfg.Cleanup.Interval = defaults.Cleanup.Interval
	}

	return cfg
}

// defaultSignatureHeader derives the signature header name for a source,
// e.g. "apim" -> "X-Apim-Signature".
func defaultSignatureHeader(source string) string {
	if source == "" {
		return "X-Signature"
	}
	return "X-" + strings.ToUpper(source[:1]) + strings.ToLower(source[1:]) + "-Signature"
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name from ${VAR}
		varName := envVarPattern.FindStringSubmatch(match)[1]

		// Look up environment variable
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if cfg.Service.DataDir == "" {
		return fmt.Errorf("service.data_dir is required")
	}

	if cfg.Ingress.Listen == "" {
		return fmt.Errorf("ingress.listen is required")
	}

	// Source validation: each source needs at least one credential, and
	// secrets must not carry unresolved env placeholders.
	for name, src := range cfg.Sources {
		if src.Token == "" && src.Username == "" && src.Secret == "" {
			return fmt.Errorf("source %q: at least one of token, username/password, or secret is required", name)
		}
		if src.Username != "" && src.Password == "" {
			return fmt.Errorf("source %q: password is required when username is set", name)
		}
		fields := map[string]string{
			"token":    src.Token,
			"username": src.Username,
			"password": src.Password,
			"secret":   src.Secret,
		}
		for field, value := range fields {
			if err := checkUnresolvedEnvVar(value, fmt.Sprintf("sources.%s.%s", name, field)); err != nil {
				return err
			}
		}
	}

	// Provider validation
	for name, p := range cfg.Providers {
		if p.TokenURL == "" {
			return fmt.Errorf("provider %q: token_url is required", name)
		}
		if p.ClientID == "" {
			return fmt.Errorf("provider %q: client_id is required", name)
		}
		fields := map[string]string{
			"client_id":     p.ClientID,
			"client_secret": p.ClientSecret,
		}
		for field, value := range fields {
			if err := checkUnresolvedEnvVar(value, fmt.Sprintf("providers.%s.%s", name, field)); err != nil {
				return err
			}
		}
		if p.JWT != nil {
			jwtFields := map[string]string{
				"private_key": p.JWT.PrivateKey,
				"public_key":  p.JWT.PublicKey,
			}
			for field, value := range jwtFields {
				if err := checkUnresolvedEnvVar(value, fmt.Sprintf("providers.%s.jwt.%s", name, field)); err != nil {
					return err
				}
			}
			if p.JWT.Lifetime > MaxJWTLifetime {
				return fmt.Errorf("provider %q: jwt.lifetime must not exceed %s (got %s)", name, MaxJWTLifetime, p.JWT.Lifetime)
			}
		}
		if p.CacheDuration < 0 {
			return fmt.Errorf("provider %q: cache_duration must not be negative", name)
		}
	}

	// API auth validation
	if cfg.API.Enabled {
		// If tokens are configured, validate them. api_key remains supported for back-compat.
		if err := checkUnresolvedEnvVar(cfg.API.Auth.APIKey, "api.auth.api_key"); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			if tok.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is required", i)
			}
			if err := checkUnresolvedEnvVar(tok.Token, fmt.Sprintf("api.auth.tokens[%d].token", i)); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
			}
		}
	}

	// Workflow validation
	if cfg.Workflow.PollInterval <= 0 {
		return fmt.Errorf("workflow.poll_interval must be positive")
	}
	if cfg.Workflow.NeedByDays < 0 {
		return fmt.Errorf("workflow.need_by_days must not be negative")
	}
	if err := checkUnresolvedEnvVar(cfg.Workflow.StaticToken, "workflow.static_token"); err != nil {
		return err
	}

	// Cleanup validation
	if cfg.Cleanup.RetentionDays < 1 {
		return fmt.Errorf("cleanup.retention_days must be at least 1")
	}
	if cfg.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup.interval must be positive")
	}

	// Notify validation
	if cfg.Notify.Enabled {
		if cfg.Notify.SMTPAddr == "" {
			return fmt.Errorf("notify.smtp_addr is required when notify is enabled")
		}
		if cfg.Notify.From == "" {
			return fmt.Errorf("notify.from is required when notify is enabled")
		}
		if len(cfg.Notify.To) == 0 {
			return fmt.Errorf("notify.to must be non-empty when notify is enabled")
		}
	}

	// Doctor validation: required providers must exist
	for _, name := range cfg.Doctor.RequiredProviders {
		if _, ok := cfg.Providers[name]; !ok {
			return fmt.Errorf("doctor.required_providers: provider %q is not configured", name)
		}
	}

	return nil
}

// checkUnresolvedEnvVar rejects values still carrying a ${VAR} placeholder
// (security: no secrets leaked in logs via literal placeholders, and no
// silently empty credentials).
func checkUnresolvedEnvVar(value, path string) error {
	if value == "" {
		return nil
	}
	if envVarPattern.MatchString(value) {
		matches := envVarPattern.FindStringSubmatch(value)
		if len(matches) > 1 {
			return fmt.Errorf("%s: environment variable ${%s} is not set", path, matches[1])
		}
		return fmt.Errorf("%s: unresolved environment variable", path)
	}
	return nil
}

// mergeProviderDefaults applies default values to provider config where not specified.
func mergeProviderDefaults(p ProviderConfig) ProviderConfig {
	defaults := DefaultProviderConf()

	if p.CacheDuration == 0 {
		p.CacheDuration = defaults.CacheDuration
	}

	if p.JWT != nil {
		if p.JWT.Lifetime == 0 {
			p.JWT.Lifetime = DefaultJWTLifetime
		}
		if p.JWT.Issuer == "" {
			p.JWT.Issuer = p.ClientID
		}
		if p.JWT.Subject == "" {
			p.JWT.Subject = p.ClientID
		}
		if p.JWT.Audience == "" {
			p.JWT.Audience = p.TokenURL
		}
	}

	return p
}

// ParseRetention converts a day count into a cutoff duration.
func ParseRetention(days int) (time.Duration, error) {
	if days < 1 {
		return 0, fmt.Errorf("retention days must be at least 1: %d", days)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
