package config

import "time"

// Config represents the complete trestle configuration.
type Config struct {
	Service   ServiceConfig             `yaml:"service"`
	Ingress   IngressConfig             `yaml:"ingress"`
	API       APIConfig                 `yaml:"api,omitempty"`
	Sources   map[string]SourceConfig   `yaml:"sources"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Workflow  WorkflowConfig            `yaml:"workflow"`
	Cleanup   CleanupConfig             `yaml:"cleanup"`
	Notify    NotifyConfig              `yaml:"notify,omitempty"`
	Doctor    DoctorConfig              `yaml:"doctor,omitempty"`

	// Path of the file this config was loaded from. Not part of the YAML
	// surface; set by Load.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	DataDir   string `yaml:"data_dir"`
}

// IngressConfig defines the inbound webhook listener settings.
type IngressConfig struct {
	Listen      string `yaml:"listen"`
	MaxBodySize string `yaml:"max_body_size"` // e.g. "1MB", "512KB"
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the legacy single bearer token (admin/full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// SourceConfig defines inbound authentication for one webhook source.
// A source must carry at least one credential: a static bearer token, a
// basic-auth username/password pair, or an HMAC signing secret.
type SourceConfig struct {
	Token           string `yaml:"token,omitempty"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	Secret          string `yaml:"secret,omitempty"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
}

// ProviderConfig defines one downstream OAuth token provider.
type ProviderConfig struct {
	TokenURL       string        `yaml:"token_url"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret,omitempty"`
	AuthMethod     string        `yaml:"auth_method,omitempty"` // "basic" or "jwt"
	Scope          string        `yaml:"scope,omitempty"`
	IdentityDomain string        `yaml:"identity_domain,omitempty"`
	CacheDuration  time.Duration `yaml:"cache_duration,omitempty"`
	JWT            *JWTConfig    `yaml:"jwt,omitempty"`
}

// JWTConfig defines signing material and claims for the JWT-bearer flow.
// Key material may be supplied inline (base64 of PEM or DER) or as a file
// path; inline takes precedence when both are set.
type JWTConfig struct {
	Issuer         string        `yaml:"issuer,omitempty"`
	Subject        string        `yaml:"subject,omitempty"`
	Audience       string        `yaml:"audience,omitempty"`
	Lifetime       time.Duration `yaml:"lifetime,omitempty"`
	KeyID          string        `yaml:"key_id,omitempty"`
	PrivateKey     string        `yaml:"private_key,omitempty"`
	PrivateKeyFile string        `yaml:"private_key_file,omitempty"`
	PublicKey      string        `yaml:"public_key,omitempty"`
	PublicKeyFile  string        `yaml:"public_key_file,omitempty"`
}

// WorkflowConfig defines the event-processing workflow settings.
// APIProvider and CatalogProvider name the token providers used for
// outbound calls to each platform.
type WorkflowConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	APIBaseURL        string        `yaml:"api_base_url"`
	PlatformBaseURL   string        `yaml:"platform_base_url"`
	APIProvider       string        `yaml:"api_provider,omitempty"`
	StaticToken       string        `yaml:"static_token,omitempty"`
	CatalogBaseURL    string        `yaml:"catalog_base_url"`
	CatalogProvider   string        `yaml:"catalog_provider,omitempty"`
	CatalogItemID     string        `yaml:"catalog_item_id"`
	OrderingEnabled   bool          `yaml:"ordering_enabled"`
	NeedByDays        int           `yaml:"need_by_days"`
	ApproverRole      string        `yaml:"approver_role"`
	IgnoredEventTypes []string      `yaml:"ignored_event_types,omitempty"`
}

// CleanupConfig defines audit record retention settings.
type CleanupConfig struct {
	RetentionDays        int           `yaml:"retention_days"`
	IgnoredRetentionDays int           `yaml:"ignored_retention_days"`
	Interval             time.Duration `yaml:"interval"`
}

// NotifyConfig defines email notification settings.
type NotifyConfig struct {
	Enabled  bool     `yaml:"enabled"`
	SMTPAddr string   `yaml:"smtp_addr,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       []string `yaml:"to,omitempty"`
}

// DoctorConfig defines startup health check settings.
type DoctorConfig struct {
	RequiredProviders []string `yaml:"required_providers,omitempty"`
	ShutdownOnFailure bool     `yaml:"shutdown_on_failure"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "trestle",
			LogLevel:  "info",
			LogFormat: "json",
			DataDir:   "./data",
		},
		Ingress: IngressConfig{
			Listen:      ":8080",
			MaxBodySize: "1MB",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8081",
			Auth: APIAuthConfig{
				APIKey: "",
			},
		},
		Sources:   make(map[string]SourceConfig),
		Providers: make(map[string]ProviderConfig),
		Workflow: WorkflowConfig{
			PollInterval:    2 * time.Second,
			APIProvider:     "apim",
			CatalogProvider: "itsm",
			NeedByDays:      30,
			ApproverRole:    "api_access",
		},
		Cleanup: CleanupConfig{
			RetentionDays:        90,
			IgnoredRetentionDays: 7,
			Interval:             24 * time.Hour,
		},
	}
}

// DefaultProviderConf returns default provider configuration.
func DefaultProviderConf() ProviderConfig {
	return ProviderConfig{
		CacheDuration: 55 * time.Minute,
	}
}

// DefaultJWTLifetime bounds assertion lifetimes: default 60s, never more
// than 5 minutes regardless of configuration.
const (
	DefaultJWTLifetime = 60 * time.Second
	MaxJWTLifetime     = 5 * time.Minute
)

// Provider returns the named provider config, applying per-provider defaults.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, false
	}
	return p, true
}

// Source returns the named source config.
func (c *Config) Source(name string) (SourceConfig, bool) {
	s, ok := c.Sources[name]
	return s, ok
}
