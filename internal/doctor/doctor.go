// Package doctor validates trestle configuration and runtime health:
// credentials present, data dir writable, key material parseable, and
// required OAuth providers actually issuing tokens.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/storage"
	"github.com/kmoray/trestle/internal/token"
)

// TokenSource acquires tokens for the provider checks. A nil source
// skips acquisition checks.
type TokenSource interface {
	GetToken(ctx context.Context, providerID string) (string, error)
}

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration and the environment it runs in.
type Doctor struct {
	cfg    *config.Config
	tokens TokenSource
}

func New(cfg *config.Config, tokens TokenSource) *Doctor {
	return &Doctor{cfg: cfg, tokens: tokens}
}

// Validate runs all checks and returns a result. Token acquisition only
// runs when a token source was supplied.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.checkService(r)
	d.checkDataDir(ctx, r)
	d.checkSources(r)
	d.checkProviders(r)
	d.checkUnresolvedPlaceholders(r)
	d.checkTokenAcquisition(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) checkService(r *Result) {
	if d.cfg.Service.DataDir == "" {
		d.addError(r, "service", "service.data_dir", "data_dir is required")
	}
	switch strings.ToLower(d.cfg.Service.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("unknown log level %q", d.cfg.Service.LogLevel))
	}
	if d.cfg.Ingress.Listen == "" {
		d.addError(r, "service", "ingress.listen", "ingress.listen is required")
	}
}

// checkDataDir probes the data directory for writability and opens the
// event database once.
func (d *Doctor) checkDataDir(ctx context.Context, r *Result) {
	dir := d.cfg.Service.DataDir
	if dir == "" {
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "data_dir", "service.data_dir", fmt.Sprintf("create data dir: %v", err))
		return
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		d.addError(r, "data_dir", "service.data_dir", fmt.Sprintf("data dir not writable: %v", err))
		return
	}
	_ = os.Remove(probe)

	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "trestle.db"))
	if err != nil {
		d.addError(r, "data_dir", "service.data_dir", fmt.Sprintf("open event database: %v", err))
		return
	}
	_ = db.Close()
}

func (d *Doctor) checkSources(r *Result) {
	if len(d.cfg.Sources) == 0 {
		d.addWarning(r, "sources", "sources", "no webhook sources configured; all ingress requests will be rejected")
		return
	}
	for name, src := range d.cfg.Sources {
		field := fmt.Sprintf("sources.%s", name)
		if src.Token == "" && src.Secret == "" && (src.Username == "" || src.Password == "") {
			d.addError(r, "sources", field,
				"source carries no credential (token, secret, or username/password pair required)")
		}
		if src.Username != "" && src.Password == "" {
			d.addError(r, "sources", field+".password", "username set without password")
		}
	}
}

func (d *Doctor) checkProviders(r *Result) {
	for name, prov := range d.cfg.Providers {
		field := fmt.Sprintf("providers.%s", name)

		if prov.TokenURL == "" {
			d.addError(r, "providers", field+".token_url", "token_url is required")
		}
		if prov.ClientID == "" {
			d.addError(r, "providers", field+".client_id", "client_id is required")
		}

		method := token.ParseMethod(prov.AuthMethod)
		if prov.AuthMethod != "" && method == token.MethodUnknown {
			d.addWarning(r, "providers", field+".auth_method",
				fmt.Sprintf("unrecognized auth method %q; basic then jwt will be attempted", prov.AuthMethod))
		}

		if method == token.MethodBasic && prov.ClientSecret == "" {
			d.addError(r, "providers", field+".client_secret", "basic auth method requires client_secret")
		}

		if prov.JWT != nil {
			if _, err := token.LoadKeyMaterial(prov.JWT); err != nil {
				d.addError(r, "providers", field+".jwt",
					fmt.Sprintf("key material does not parse: %v", err))
			}
			if prov.JWT.Audience == "" {
				d.addError(r, "providers", field+".jwt.audience", "jwt audience is required")
			}
		} else if method == token.MethodJWT {
			d.addError(r, "providers", field+".jwt", "jwt auth method requires a jwt block with key material")
		}
	}

	for _, name := range d.requiredProviders() {
		if _, ok := d.cfg.Providers[name]; !ok {
			d.addError(r, "providers", "doctor.required_providers",
				fmt.Sprintf("required provider %q is not configured", name))
		}
	}
}

var placeholderRe = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// checkUnresolvedPlaceholders flags ${VAR} references that survived env
// interpolation; they mean the variable was unset at load time.
func (d *Doctor) checkUnresolvedPlaceholders(r *Result) {
	check := func(field, value string) {
		if placeholderRe.MatchString(value) {
			d.addError(r, "env_vars", field,
				fmt.Sprintf("unresolved environment placeholder %s", placeholderRe.FindString(value)))
		}
	}

	for name, src := range d.cfg.Sources {
		check(fmt.Sprintf("sources.%s.token", name), src.Token)
		check(fmt.Sprintf("sources.%s.password", name), src.Password)
		check(fmt.Sprintf("sources.%s.secret", name), src.Secret)
	}
	for name, prov := range d.cfg.Providers {
		check(fmt.Sprintf("providers.%s.client_secret", name), prov.ClientSecret)
		if prov.JWT != nil {
			check(fmt.Sprintf("providers.%s.jwt.private_key", name), prov.JWT.PrivateKey)
		}
	}
	check("api.auth.api_key", d.cfg.API.Auth.APIKey)
}

func (d *Doctor) checkTokenAcquisition(ctx context.Context, r *Result) {
	if d.tokens == nil {
		return
	}
	for _, name := range d.requiredProviders() {
		if _, ok := d.cfg.Providers[name]; !ok {
			continue // already reported by checkProviders
		}
		if _, err := d.tokens.GetToken(ctx, name); err != nil {
			d.addError(r, "token", fmt.Sprintf("providers.%s", name),
				fmt.Sprintf("token acquisition failed: %v", err))
		}
	}
}

// requiredProviders flattens the configured list; entries may be comma
// separated.
func (d *Doctor) requiredProviders() []string {
	var out []string
	for _, entry := range d.cfg.Doctor.RequiredProviders {
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// RunStartupChecks validates required providers after boot. The returned
// error is non-nil only when a check failed and the config demands
// shutdown on failure.
func RunStartupChecks(ctx context.Context, cfg *config.Config, tokens TokenSource, logger *slog.Logger) error {
	if len(cfg.Doctor.RequiredProviders) == 0 {
		return nil
	}

	d := New(cfg, tokens)
	r := &Result{Valid: true}
	d.checkTokenAcquisition(ctx, r)
	r.Valid = len(r.Errors) == 0

	if r.Valid {
		logger.Info("startup health checks passed", "providers", len(d.requiredProviders()))
		return nil
	}

	for _, issue := range r.Errors {
		logger.Error("startup health check failed", "field", issue.Field, "message", issue.Message)
	}
	if cfg.Doctor.ShutdownOnFailure {
		return fmt.Errorf("startup health checks failed (%d error(s))", len(r.Errors))
	}
	logger.Warn("continuing despite failed startup health checks")
	return nil
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("PASS: all checks passed.\n")
		return b.String()
	}
	if r.Valid {
		fmt.Fprintf(&b, "PASS with %d warning(s)\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "FAIL: %d error(s), %d warning(s)\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}
	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
