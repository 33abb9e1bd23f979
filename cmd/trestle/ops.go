package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/token"
	"github.com/kmoray/trestle/internal/tui/browse"
	"github.com/kmoray/trestle/internal/tui/scopes"
	"github.com/kmoray/trestle/internal/tui/watch"
)

const (
	defaultAPIURL = "http://127.0.0.1:8081"
	envAPIURL     = "TRESTLE_API_URL"
	envAPIKey     = "TRESTLE_API_KEY"
)

func quietSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// opsClient is the thin HTTP client the CLI verbs use against a running
// service's ops API.
type opsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// opsFlags registers the shared --api-url/--api-key flags, falling back to
// TRESTLE_API_URL and TRESTLE_API_KEY.
func opsFlags(fs *flag.FlagSet) (*string, *string) {
	apiURL := fs.String("api-url", "", "Ops API base URL (default $TRESTLE_API_URL or "+defaultAPIURL+")")
	apiKey := fs.String("api-key", "", "Ops API key (default $TRESTLE_API_KEY)")
	return apiURL, apiKey
}

func resolveOpsTarget(apiURL, apiKey string) (string, string) {
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	return strings.TrimRight(apiURL, "/"), apiKey
}

func newOpsClient(apiURL, apiKey string) *opsClient {
	base, key := resolveOpsTarget(apiURL, apiKey)
	return &opsClient{
		baseURL: base,
		apiKey:  key,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *opsClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ops API unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("ops API returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// --- EVENTS ---

func runEventsList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)
	source := fs.String("source", "", "Filter by webhook source")
	status := fs.String("status", "", "Filter by lifecycle status")
	limit := fs.Int("limit", 0, "Maximum records returned")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	q := url.Values{}
	if *source != "" {
		q.Set("source", *source)
	}
	if *status != "" {
		q.Set("status", *status)
	}
	if *limit > 0 {
		q.Set("limit", strconv.Itoa(*limit))
	}
	path := "/api/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var body struct {
		Events []*eventstore.EventRecord `json:"events"`
		Count  int                       `json:"count"`
	}
	if err := newOpsClient(*apiURL, *apiKey).do(http.MethodGet, path, &body); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(body.Events, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if body.Count == 0 {
		fmt.Println("No events.")
		return 0
	}
	fmt.Printf("%-36s  %-20s  %-10s  %-28s  %s\n", "ID", "RECEIVED", "STATUS", "TYPE", "SOURCE")
	for _, rec := range body.Events {
		fmt.Printf("%-36s  %-20s  %-10s  %-28s  %s\n",
			rec.ID,
			rec.ReceivedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Status,
			rec.EventType,
			rec.Source,
		)
	}
	return 0
}

func runEventsShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)
	jsonOut := fs.Bool("json", false, "Output in JSON")

	eventID, remaining := splitPositional(args)
	if err := fs.Parse(remaining); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if eventID == "" && fs.NArg() > 0 {
		eventID = fs.Arg(0)
	}
	if eventID == "" {
		fmt.Fprintf(os.Stderr, "Usage: trestle events show <event_id> [--json]\n")
		return 1
	}

	var rec eventstore.EventRecord
	if err := newOpsClient(*apiURL, *apiKey).do(http.MethodGet, "/api/v1/events/"+url.PathEscape(eventID), &rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	data, _ := yaml.Marshal(&rec)
	fmt.Print(string(data))
	return 0
}

func runEventsBrowse(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	base, key := resolveOpsTarget(*apiURL, *apiKey)
	p := tea.NewProgram(browse.New(base, key))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Browser failed: %v\n", err)
		return 1
	}
	return 0
}

// --- TOKEN ---

func runTokenStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)
	jsonOut := fs.Bool("json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	var body struct {
		Providers []token.Status `json:"providers"`
	}
	if err := newOpsClient(*apiURL, *apiKey).do(http.MethodGet, "/api/v1/token/status", &body); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(body.Providers, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(body.Providers) == 0 {
		fmt.Println("No providers configured.")
		return 0
	}
	fmt.Printf("%-14s  %-6s  %-8s  %-22s  %s\n", "PROVIDER", "METHOD", "STATE", "EXPIRES", "KEY ERROR")
	for _, st := range body.Providers {
		state := "cold"
		switch {
		case st.Cached && st.Valid:
			state = "cached"
		case st.Cached:
			state = "expired"
		}
		expires := "-"
		if st.ExpiresAt != nil {
			expires = st.ExpiresAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-14s  %-6s  %-8s  %-22s  %s\n", st.Provider, st.Method, state, expires, st.KeyError)
	}
	return 0
}

func runTokenRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)

	provider, remaining := splitPositional(args)
	if err := fs.Parse(remaining); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if provider == "" && fs.NArg() > 0 {
		provider = fs.Arg(0)
	}
	if provider == "" {
		fmt.Fprintf(os.Stderr, "Usage: trestle token refresh <provider>\n")
		return 1
	}

	var body struct {
		Provider  string `json:"provider"`
		Refreshed bool   `json:"refreshed"`
	}
	if err := newOpsClient(*apiURL, *apiKey).do(http.MethodPost, "/api/v1/token/refresh/"+url.PathEscape(provider), &body); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Token refreshed for provider %q.\n", body.Provider)
	return 0
}

func runTokenScopes(args []string) int {
	p := tea.NewProgram(scopes.New())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Picker failed: %v\n", err)
		return 1
	}

	m, ok := final.(scopes.Model)
	if !ok || m.Cancelled() {
		return 1
	}
	selected := m.SelectedScopes()
	if len(selected) == 0 {
		fmt.Println("No scopes selected.")
		return 1
	}

	fmt.Println("Add to api.auth.tokens in config.yaml:")
	fmt.Println()
	fmt.Println("  - token: ${TRESTLE_API_TOKEN}")
	fmt.Println("    scopes:")
	for _, s := range selected {
		fmt.Printf("      - %q\n", s)
	}
	return 0
}

// --- WATCH ---

func runWatch(args []string) int {
	if hasHelpFlag(args) {
		printWatchHelp()
		return 0
	}

	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL, apiKey := opsFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	base, key := resolveOpsTarget(*apiURL, *apiKey)
	p := tea.NewProgram(watch.New(base, key))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

// splitPositional peels the first non-flag argument off args so verbs can
// accept flags after the positional, like 'events show <id> --json'.
func splitPositional(args []string) (string, []string) {
	var positional string
	remaining := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && positional == "" {
			positional = arg
			continue
		}
		remaining = append(remaining, arg)
	}
	return positional, remaining
}
