package inspect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kmoray/trestle/internal/config"
)

// Report is the structured JSON representation of a config inspection.
// Credential values are masked before they reach this struct.
type Report struct {
	ConfigPath string            `json:"config_path"`
	ConfigHash string            `json:"config_hash,omitempty"`
	Sources    []SourceSummary   `json:"sources"`
	Providers  []ProviderSummary `json:"providers"`
	Redacted   map[string]any    `json:"config"`
}

// SourceSummary describes one webhook source without exposing credentials.
type SourceSummary struct {
	Name            string   `json:"name"`
	Credentials     []string `json:"credentials"`
	SignatureHeader string   `json:"signature_header,omitempty"`
}

// ProviderSummary describes one token provider without exposing secrets.
type ProviderSummary struct {
	Name       string `json:"name"`
	TokenURL   string `json:"token_url"`
	AuthMethod string `json:"auth_method"`
	HasSecret  bool   `json:"has_client_secret"`
	KeySource  string `json:"key_source,omitempty"`
	Audience   string `json:"audience,omitempty"`
}

// BuildReport renders a terminal-friendly inspection of the loaded config.
// Tokens, passwords, secrets, and key material never appear in the output.
func BuildReport(cfg *config.Config) (string, error) {
	report, err := gatherReportData(cfg)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Configuration Report\n")
	fmt.Fprintf(&out, "Config      : %s\n", renderUnset(report.ConfigPath, "<in-memory>"))
	if report.ConfigHash != "" {
		fmt.Fprintf(&out, "BLAKE3      : %s\n", report.ConfigHash)
	}
	fmt.Fprintf(&out, "Service     : %s\n", cfg.Service.Name)
	fmt.Fprintf(&out, "Data dir    : %s\n", cfg.Service.DataDir)
	fmt.Fprintf(&out, "Log         : %s/%s\n", cfg.Service.LogLevel, cfg.Service.LogFormat)
	fmt.Fprintf(&out, "Ingress     : %s (max body %s)\n", cfg.Ingress.Listen, cfg.Ingress.MaxBodySize)
	if cfg.API.Enabled {
		fmt.Fprintf(&out, "Ops API     : %s (%d scoped tokens)\n", cfg.API.Listen, len(cfg.API.Auth.Tokens))
	} else {
		fmt.Fprintf(&out, "Ops API     : disabled\n")
	}
	fmt.Fprintf(&out, "\n")

	fmt.Fprintf(&out, "Sources (%d)\n", len(report.Sources))
	for _, src := range report.Sources {
		fmt.Fprintf(&out, "  %s\n", src.Name)
		if len(src.Credentials) == 0 {
			fmt.Fprintf(&out, "    credentials : <none>\n")
		} else {
			fmt.Fprintf(&out, "    credentials : %s\n", strings.Join(src.Credentials, ", "))
		}
		if src.SignatureHeader != "" {
			fmt.Fprintf(&out, "    sig header  : %s\n", src.SignatureHeader)
		}
	}
	fmt.Fprintf(&out, "\n")

	fmt.Fprintf(&out, "Providers (%d)\n", len(report.Providers))
	for _, p := range report.Providers {
		fmt.Fprintf(&out, "  %s\n", p.Name)
		fmt.Fprintf(&out, "    token_url   : %s\n", renderUnset(p.TokenURL, "<unset>"))
		fmt.Fprintf(&out, "    auth_method : %s\n", p.AuthMethod)
		fmt.Fprintf(&out, "    secret      : %s\n", renderBool(p.HasSecret, "configured", "<none>"))
		if p.KeySource != "" {
			fmt.Fprintf(&out, "    jwt key     : %s\n", p.KeySource)
		}
		if p.Audience != "" {
			fmt.Fprintf(&out, "    audience    : %s\n", p.Audience)
		}
	}
	fmt.Fprintf(&out, "\n")

	fmt.Fprintf(&out, "Workflow\n")
	fmt.Fprintf(&out, "    poll        : %s\n", cfg.Workflow.PollInterval)
	fmt.Fprintf(&out, "    catalog item: %s\n", renderUnset(cfg.Workflow.CatalogItemID, "<unset>"))
	fmt.Fprintf(&out, "    ordering    : %s\n", renderBool(cfg.Workflow.OrderingEnabled, "live", "simulated"))
	fmt.Fprintf(&out, "Cleanup\n")
	fmt.Fprintf(&out, "    retention   : %dd (%dd ignored), every %s\n",
		cfg.Cleanup.RetentionDays, cfg.Cleanup.IgnoredRetentionDays, cfg.Cleanup.Interval)
	fmt.Fprintf(&out, "Notify      : %s\n", renderBool(cfg.Notify.Enabled, "enabled", "disabled"))

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable JSON inspection report.
func BuildJSONReport(cfg *config.Config) (string, error) {
	report, err := gatherReportData(cfg)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func gatherReportData(cfg *config.Config) (*Report, error) {
	redacted, err := cfg.Redacted()
	if err != nil {
		return nil, fmt.Errorf("redact config: %w", err)
	}

	report := &Report{
		ConfigPath: cfg.SourcePath,
		Sources:    make([]SourceSummary, 0, len(cfg.Sources)),
		Providers:  make([]ProviderSummary, 0, len(cfg.Providers)),
		Redacted:   redacted,
	}

	if cfg.SourcePath != "" {
		if hash, err := config.ComputeBlake3Hash(cfg.SourcePath); err == nil {
			report.ConfigHash = hash
		}
	}

	for _, name := range sortedKeys(cfg.Sources) {
		src := cfg.Sources[name]
		report.Sources = append(report.Sources, SourceSummary{
			Name:            name,
			Credentials:     credentialKinds(src),
			SignatureHeader: src.SignatureHeader,
		})
	}

	for _, name := range sortedKeys(cfg.Providers) {
		p := cfg.Providers[name]
		report.Providers = append(report.Providers, ProviderSummary{
			Name:       name,
			TokenURL:   p.TokenURL,
			AuthMethod: renderUnset(p.AuthMethod, "basic"),
			HasSecret:  p.ClientSecret != "",
			KeySource:  keySource(p.JWT),
			Audience:   jwtAudience(p.JWT),
		})
	}

	return report, nil
}

func credentialKinds(src config.SourceConfig) []string {
	kinds := make([]string, 0, 3)
	if src.Token != "" {
		kinds = append(kinds, "bearer")
	}
	if src.Username != "" || src.Password != "" {
		kinds = append(kinds, "basic")
	}
	if src.Secret != "" {
		kinds = append(kinds, "hmac")
	}
	return kinds
}

func keySource(jc *config.JWTConfig) string {
	switch {
	case jc == nil:
		return ""
	case jc.PrivateKey != "":
		return "inline"
	case jc.PrivateKeyFile != "":
		return "file:" + jc.PrivateKeyFile
	default:
		return "<missing>"
	}
}

func jwtAudience(jc *config.JWTConfig) string {
	if jc == nil {
		return ""
	}
	return jc.Audience
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderUnset(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func renderBool(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
