package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/doctor"
	"github.com/kmoray/trestle/internal/inspect"
	"github.com/kmoray/trestle/internal/token"
)

func loadConfigForTool(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}

func runConfigValidate(args []string) int {
	var configPath string
	var strict, jsonOut, probeTokens bool

	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	fs.BoolVar(&probeTokens, "probe-tokens", false, "Probe token acquisition for required providers")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	var tokens doctor.TokenSource
	if probeTokens {
		provider := token.NewProvider(cfg.Providers, token.NewCache(), nil, quietSlog())
		provider.SetHTTPClient(&http.Client{Timeout: 10 * time.Second})
		tokens = provider
	}

	result := doctor.New(cfg, tokens).Validate(context.Background())

	if jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

// runDoctor is config validate with token probes on by default.
func runDoctor(args []string) int {
	if hasHelpFlag(args) {
		printDoctorHelp()
		return 0
	}
	return runConfigValidate(append([]string{"--probe-tokens"}, args...))
}

func runConfigInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output report in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	var report string
	if *jsonOut {
		report, err = inspect.BuildJSONReport(cfg)
	} else {
		report, err = inspect.BuildReport(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}

	fmt.Print(report)
	if *jsonOut {
		fmt.Println()
	}
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	// Always render through the redacted view: show is for terminals and
	// pastebins, never a secret export.
	var result any
	if fs.NArg() > 0 {
		result, err = cfg.RedactedPath(fs.Arg(0))
	} else {
		result, err = cfg.Redacted()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(result)
		fmt.Print(string(data))
	}
	return 0
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: trestle config get <path> [--config PATH] [--json]\n")
		return 1
	}
	path := fs.Arg(0)

	cfg, err := loadConfigForTool(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	val, err := cfg.RedactedPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(val, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("%v\n", val)
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Compute hashes without writing .checksums")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	isVerbose := verbose || verboseShort

	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	// Resolve to the file's directory; the manifest covers config.yaml
	// plus any sibling YAML files referenced by it.
	abs, err := filepath.Abs(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve path: %v\n", err)
		return 1
	}
	dir := abs
	file := "config.yaml"
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
		file = filepath.Base(abs)
	}

	report, err := config.GenerateChecksumsWithReport(dir, []string{file}, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config in %s: %v\n", dir, err)
		return 1
	}

	if isVerbose {
		fmt.Printf("Processing directory: %s\n", dir)
		for _, f := range report.Files {
			if f.Exists {
				fmt.Printf("  HASH %s: %s\n", f.Filename, f.Hash)
				continue
			}
			fmt.Printf("  SKIP %s: not found (optional)\n", f.Filename)
		}
		if dryRun {
			fmt.Printf("  DRY-RUN .checksums: %s (not written)\n", report.ChecksumPath)
		} else {
			fmt.Printf("  WROTE .checksums: %s\n", report.ChecksumPath)
		}
	}

	if dryRun {
		fmt.Printf("Dry run completed (no files written): %s\n", dir)
	} else {
		fmt.Printf("Successfully locked configuration: %s\n", strings.TrimSuffix(report.ChecksumPath, string(filepath.Separator)))
	}
	return 0
}
