package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kmoray/trestle/internal/api"
	"github.com/kmoray/trestle/internal/apim"
	"github.com/kmoray/trestle/internal/auth"
	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/doctor"
	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/itsm"
	"github.com/kmoray/trestle/internal/lock"
	"github.com/kmoray/trestle/internal/log"
	"github.com/kmoray/trestle/internal/notify"
	"github.com/kmoray/trestle/internal/process"
	"github.com/kmoray/trestle/internal/rules"
	"github.com/kmoray/trestle/internal/scheduler"
	"github.com/kmoray/trestle/internal/state"
	"github.com/kmoray/trestle/internal/storage"
	"github.com/kmoray/trestle/internal/token"
	"github.com/kmoray/trestle/internal/webhook"
)

const dbFilename = "trestle.db"

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("trestle starting", "version", version, "config", *configPath)

	if err := os.MkdirAll(cfg.Service.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.Service.DataDir, "error", err)
		return 1
	}

	pidLockPath := filepath.Join(cfg.Service.DataDir, "trestle.pid")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := filepath.Join(cfg.Service.DataDir, dbFilename)
	db, err := storage.OpenSQLite(ctx, dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		return 1
	}
	defer db.Close()
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		logger.Error("failed to bootstrap database schema", "error", err)
		return 1
	}
	logger.Info("database opened", "path", dbPath)

	store := eventstore.New(db)
	states := state.NewStore(db)
	hub := events.NewHub(256)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	tokens := token.NewProvider(cfg.Providers, token.NewCache(), hub, log.WithComponent("token"))
	tokens.SetHTTPClient(httpClient)

	if err := doctor.RunStartupChecks(ctx, cfg, tokens, log.WithComponent("doctor")); err != nil {
		logger.Error("startup health checks failed", "error", err)
		return 1
	}

	platform := apim.New(apim.Config{
		APIBaseURL:      cfg.Workflow.APIBaseURL,
		PlatformBaseURL: cfg.Workflow.PlatformBaseURL,
		ProviderID:      cfg.Workflow.APIProvider,
		StaticToken:     cfg.Workflow.StaticToken,
	}, httpClient, tokens, log.WithComponent("apim"))

	catalog := itsm.New(itsm.Config{
		BaseURL:         cfg.Workflow.CatalogBaseURL,
		ProviderID:      cfg.Workflow.CatalogProvider,
		OrderingEnabled: cfg.Workflow.OrderingEnabled,
	}, httpClient, tokens, log.WithComponent("itsm"))

	notifier := notify.New(cfg.Notify, log.WithComponent("notify"))
	engine := rules.New(cfg.Workflow.IgnoredEventTypes)

	processor := process.New(process.Config{
		PollInterval:  cfg.Workflow.PollInterval,
		CatalogItemID: cfg.Workflow.CatalogItemID,
		NeedByDays:    cfg.Workflow.NeedByDays,
		ApproverRole:  cfg.Workflow.ApproverRole,
	}, store, engine, platform, catalog, notifier, hub, log.WithComponent("process"))

	sched := scheduler.New(log.Get())
	sched.Add(scheduler.CleanupTask(cfg.Cleanup, store, states, hub, log.Get()))

	ingressConfig, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		logger.Error("invalid ingress configuration", "error", err)
		return 1
	}
	ingress := webhook.New(ingressConfig, store, hub, log.WithComponent("ingress"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 3)

	go func() {
		if err := processor.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("processor: %w", err)
		}
	}()

	sched.Start(ctx)

	go func() {
		if err := ingress.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingress: %w", err)
		}
	}()
	logger.Info("ingress server enabled", "listen", ingressConfig.Listen, "sources", len(ingressConfig.Sources))

	if cfg.API.Enabled {
		apiTokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			apiTokens = append(apiTokens, auth.TokenConfig{
				Token:  t.Token,
				Scopes: t.Scopes,
			})
		}
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: apiTokens,
		}, store, tokens, hub, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("ops API enabled", "listen", cfg.API.Listen)
	}

	logger.Info("trestle running (press Ctrl+C to stop)")

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exitCode = 1
	}

	cancel()
	sched.Stop()

	logger.Info("trestle stopped")
	return exitCode
}
