package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kmoray/trestle/internal/eventstore"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeTestConfig(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configYAML := `
service:
  name: trestle
  data_dir: ` + filepath.Join(tmpDir, "data") + `
sources:
  apim:
    secret: test-hmac-secret
providers:
  apim:
    token_url: https://idcs.example.com/oauth2/v1/token
    client_id: client-1
    client_secret: test-client-secret
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestRunConfigLockVerboseDryRun(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath, "-v", "--dry-run"})
	})
	if code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	if !strings.Contains(stdout, "Processing directory:") {
		t.Fatalf("stdout missing verbose directory progress: %s", stdout)
	}
	hashPattern := regexp.MustCompile(`HASH config\.yaml: [a-f0-9]{64}`)
	if !hashPattern.MatchString(stdout) {
		t.Fatalf("stdout missing valid hash output: %s", stdout)
	}
	if !strings.Contains(stdout, "Dry run completed") {
		t.Fatalf("stdout missing dry-run summary: %s", stdout)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), ".checksums")); !os.IsNotExist(err) {
		t.Fatal(".checksums should not be written in dry-run mode")
	}
}

func TestRunConfigLockWritesChecksums(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath, "--verbose"})
	})
	if code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	if !strings.Contains(stdout, "WROTE .checksums:") {
		t.Fatalf("stdout missing wrote checksums line: %s", stdout)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), ".checksums")); err != nil {
		t.Fatalf("expected .checksums to be written: %v", err)
	}
}

func TestRunConfigValidatePasses(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigValidate([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigValidate() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "PASS") {
		t.Fatalf("stdout missing PASS: %s", stdout)
	}
}

func TestRunConfigShowMasksSecrets(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigShow([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigShow() code = %d, stderr: %s", code, stderr)
	}
	if strings.Contains(stdout, "test-hmac-secret") || strings.Contains(stdout, "test-client-secret") {
		t.Fatalf("config show leaked a credential: %s", stdout)
	}
	if !strings.Contains(stdout, "<redacted>") {
		t.Fatalf("config show missing redaction markers: %s", stdout)
	}
}

func TestRunConfigGetRedactedValue(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigGet([]string{"--config", configPath, "sources.apim.secret"})
	})
	if code != 0 {
		t.Fatalf("runConfigGet() code = %d, stderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "<redacted>" {
		t.Fatalf("expected redacted value, got: %s", stdout)
	}
}

func TestRunConfigInspect(t *testing.T) {
	configPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigInspect([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigInspect() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration Report") {
		t.Fatalf("stdout missing report header: %s", stdout)
	}
	if strings.Contains(stdout, "test-client-secret") {
		t.Fatalf("inspect leaked a credential: %s", stdout)
	}
}

func TestRunEventsListAgainstOpsAPI(t *testing.T) {
	received := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"events": []*eventstore.EventRecord{
				{ID: "ev-1", Source: "apim", EventType: "apim.asset.request.created", Status: "processed", ReceivedAt: received},
			},
			"count": 1,
		})
	}))
	defer srv.Close()

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runEventsList([]string{"--api-url", srv.URL, "--api-key", "test-key"})
	})
	if code != 0 {
		t.Fatalf("runEventsList() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "ev-1") || !strings.Contains(stdout, "processed") {
		t.Fatalf("stdout missing event row: %s", stdout)
	}
}

func TestRunTokenRefreshReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown provider"})
	}))
	defer srv.Close()

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runTokenRefresh([]string{"ghost", "--api-url", srv.URL, "--api-key", "k"})
	})
	if code != 1 {
		t.Fatalf("runTokenRefresh() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "unknown provider") {
		t.Fatalf("stderr missing API error detail: %s", stderr)
	}
}

func TestResolveOpsTargetPrecedence(t *testing.T) {
	t.Setenv(envAPIURL, "http://env.example:9999/")
	t.Setenv(envAPIKey, "env-key")

	base, key := resolveOpsTarget("", "")
	if base != "http://env.example:9999" {
		t.Fatalf("base = %q, want env value without trailing slash", base)
	}
	if key != "env-key" {
		t.Fatalf("key = %q, want env-key", key)
	}

	base, key = resolveOpsTarget("http://flag.example:8081", "flag-key")
	if base != "http://flag.example:8081" || key != "flag-key" {
		t.Fatalf("flags should win over env, got %q %q", base, key)
	}
}

func TestSplitPositional(t *testing.T) {
	pos, rest := splitPositional([]string{"ev-1", "--json"})
	if pos != "ev-1" {
		t.Fatalf("positional = %q", pos)
	}
	if len(rest) != 1 || rest[0] != "--json" {
		t.Fatalf("remaining = %v", rest)
	}

	pos, rest = splitPositional([]string{"--json"})
	if pos != "" || len(rest) != 1 {
		t.Fatalf("expected no positional, got %q %v", pos, rest)
	}
}

func TestRunConfigNounActionHelp(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"validate", "--help"})
	})
	if code != 0 {
		t.Fatalf("runConfigNoun() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Usage: trestle config validate") {
		t.Fatalf("stdout missing action help usage: %s", stdout)
	}
}

func TestRunEventsNounUnknownAction(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runEventsNoun([]string{"bogus"})
	})
	if code != 1 {
		t.Fatalf("runEventsNoun() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown events action") {
		t.Fatalf("stderr missing unknown action message: %s", stderr)
	}
}

func TestPrintUsageListsNouns(t *testing.T) {
	_, stdout, _ := captureOutputWithExitCode(t, func() int {
		printUsage()
		return 0
	})
	if !strings.Contains(stdout, "trestle <noun> <action> [flags]") {
		t.Fatalf("usage missing noun/action line: %s", stdout)
	}
	for _, want := range []string{"config validate", "events list", "token status", "watch"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("usage missing %q: %s", want, stdout)
		}
	}
}
