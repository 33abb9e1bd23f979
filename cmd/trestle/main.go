package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	// --- NOUNS ---
	case "config":
		os.Exit(runConfigNoun(args))
	case "events":
		os.Exit(runEventsNoun(args))
	case "token":
		os.Exit(runTokenNoun(args))

	// --- ROOT VERBS ---
	case "start":
		os.Exit(runStart(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "watch":
		os.Exit(runWatch(args))
	case "version":
		fmt.Printf("trestle version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`trestle - Webhook relay between API management and ITSM platforms

Usage:
  trestle <noun> <action> [flags]

Config Commands:
  config validate   Validate syntax, credentials, and key material
  config inspect    Show a redacted configuration report
  config show       Show resolved configuration (secrets masked)
  config get        Read a single value from the resolved configuration
  config lock       Authorize current state (update integrity hashes)

Event Commands (over the ops API):
  events list       List audited webhook events
  events show <id>  Show one audited event
  events browse     Interactive event browser (TUI)

Token Commands:
  token status      Show provider token cache state
  token refresh     Force-refresh a provider's token
  token scopes      Pick API scopes and print a config snippet

General:
  start             Run the relay service in the foreground
  doctor            Run configuration and health checks
  watch             Live dashboard over the ops API (TUI)
  version           Show version information
  help              Show this help message

Use 'trestle <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "validate", "check":
		if hasHelpFlag(actionArgs) {
			printConfigValidateHelp()
			return 0
		}
		return runConfigValidate(actionArgs)
	case "inspect":
		if hasHelpFlag(actionArgs) {
			printConfigInspectHelp()
			return 0
		}
		return runConfigInspect(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "get":
		if hasHelpFlag(actionArgs) {
			printConfigGetHelp()
			return 0
		}
		return runConfigGet(actionArgs)
	case "lock", "hash":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runEventsNoun(args []string) int {
	if len(args) < 1 {
		printEventsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printEventsNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printEventsListHelp()
			return 0
		}
		return runEventsList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printEventsShowHelp()
			return 0
		}
		return runEventsShow(actionArgs)
	case "browse":
		if hasHelpFlag(actionArgs) {
			printEventsBrowseHelp()
			return 0
		}
		return runEventsBrowse(actionArgs)
	case "help":
		printEventsNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown events action: %s\n", action)
		return 1
	}
}

func runTokenNoun(args []string) int {
	if len(args) < 1 {
		printTokenNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printTokenNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "status":
		if hasHelpFlag(actionArgs) {
			printTokenStatusHelp()
			return 0
		}
		return runTokenStatus(actionArgs)
	case "refresh":
		if hasHelpFlag(actionArgs) {
			printTokenRefreshHelp()
			return 0
		}
		return runTokenRefresh(actionArgs)
	case "scopes":
		if hasHelpFlag(actionArgs) {
			printTokenScopesHelp()
			return 0
		}
		return runTokenScopes(actionArgs)
	case "help":
		printTokenNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown token action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// --- HELP TEXT ---

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trestle config <action> [flags]")
	fmt.Fprintln(w, "Actions: validate, inspect, show, get, lock")
}

func printEventsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trestle events <action> [flags]")
	fmt.Fprintln(w, "Actions: list, show, browse")
}

func printTokenNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: trestle token <action> [flags]")
	fmt.Fprintln(w, "Actions: status, refresh, scopes")
}

func printConfigValidateHelp() {
	fmt.Println("Usage: trestle config validate [--config PATH] [--json] [--strict] [--probe-tokens]")
	fmt.Println("Validate configuration syntax, credentials, and key material.")
}

func printConfigInspectHelp() {
	fmt.Println("Usage: trestle config inspect [--config PATH] [--json]")
	fmt.Println("Show a redacted report of the resolved configuration.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: trestle config show [entity] [--config PATH] [--json]")
	fmt.Println("Show the resolved configuration with credentials masked.")
}

func printConfigGetHelp() {
	fmt.Println("Usage: trestle config get <path> [--config PATH] [--json]")
	fmt.Println("Read a single value from the resolved configuration.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: trestle config lock [--config PATH] [-v|--verbose] [--dry-run]")
	fmt.Println("Authorize current configuration state by regenerating integrity hashes.")
}

func printEventsListHelp() {
	fmt.Println("Usage: trestle events list [--source NAME] [--status STATUS] [--limit N] [--json]")
	fmt.Println("List audited webhook events via the ops API.")
}

func printEventsShowHelp() {
	fmt.Println("Usage: trestle events show <event_id> [--json]")
	fmt.Println("Show one audited event via the ops API.")
}

func printEventsBrowseHelp() {
	fmt.Println("Usage: trestle events browse")
	fmt.Println("Interactive audit event browser over the ops API.")
}

func printTokenStatusHelp() {
	fmt.Println("Usage: trestle token status [--json]")
	fmt.Println("Show provider token cache state via the ops API. Token values are never shown.")
}

func printTokenRefreshHelp() {
	fmt.Println("Usage: trestle token refresh <provider>")
	fmt.Println("Force-refresh a provider's cached token via the ops API.")
}

func printTokenScopesHelp() {
	fmt.Println("Usage: trestle token scopes")
	fmt.Println("Pick ops API scopes interactively and print an api.auth.tokens snippet.")
}

func printDoctorHelp() {
	fmt.Println("Usage: trestle doctor [--config PATH] [--json] [--strict]")
	fmt.Println("Run configuration and health checks, including token acquisition probes.")
}

func printWatchHelp() {
	fmt.Println("Usage: trestle watch [--api-url URL] [--api-key KEY]")
	fmt.Println("Live dashboard over the ops API event stream.")
}
