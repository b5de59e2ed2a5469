// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

// Package main is the entry point for the Checkpoint server.
//
// Checkpoint decides whether a proof-of-visit submission is trustworthy and
// records the security events, review queue and alerts that follow from it.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml, then CHECKPOINT_* env vars (koanf)
//  2. Logging: zerolog, JSON or console
//  3. Storage: memory, badger or duckdb security store
//  4. Event bus (optional): watermill over gochannel, or NATS with -tags nats
//  5. Monitor: security events, thresholds, alerts, webhook notifications
//  6. Validator: submission checks and fraud detection
//  7. HTTP: ops API on chi
//  8. Supervisor tree: badger GC, retention, the in-process bus consumer and
//     the HTTP server under suture
//
// Editing the config file reloads the validator policy, the log level and
// the webhook switch without a restart.
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree. The HTTP server drains
// in-flight requests, then the monitor, event bus and store are closed in
// that order.
//
// # Example Usage
//
//	export CHECKPOINT_STORAGE_BACKEND=badger
//	export CHECKPOINT_STORAGE_PATH=/var/lib/checkpoint/security
//	export CHECKPOINT_API_TOKEN=$(openssl rand -hex 24)
//	export CHECKPOINT_ENVIRONMENT=production
//	export CHECKPOINT_CORS_ORIGINS=https://ops.example.org
//	./checkpoint
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/checkpoint/internal/api"
	"github.com/tomtom215/checkpoint/internal/config"
	"github.com/tomtom215/checkpoint/internal/eventbus"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/supervisor"
	"github.com/tomtom215/checkpoint/internal/supervisor/services"
	"github.com/tomtom215/checkpoint/internal/verification"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingOptions())
	metrics.SetAppInfo(version, runtime.Version())

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("storage", cfg.Storage.Backend).
		Bool("eventbus", cfg.EventBus.Enabled).
		Bool("webhook", cfg.Webhook.Enabled).
		Msg("Starting Checkpoint")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; set CHECKPOINT_CORS_ORIGINS before exposing the API")
	}
	if cfg.Security.APIToken == "" {
		logging.Warn().Msg("API token is not set; /api/v1 is unauthenticated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("Checkpoint stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring
func run(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing security store")
		}
	}()

	var opts []monitor.Option
	var bus *eventbus.Publisher
	if cfg.EventBus.Enabled {
		bus, err = eventbus.New(cfg.EventBus)
		if err != nil {
			return err
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event bus")
			}
		}()
		opts = append(opts, monitor.WithPublisher(bus))
		logging.Info().Str("backend", bus.Backend()).Msg("Event bus enabled")
	}
	webhook := monitor.NewWebhookNotifier(cfg.Webhook)
	opts = append(opts, monitor.WithNotifier(webhook))

	monitorSvc := monitor.NewService(st.store, cfg.Monitor, opts...)
	defer monitorSvc.Close()

	validator, err := verification.NewValidator(cfg.Validator, verification.WithReporter(monitorSvc))
	if err != nil {
		return err
	}
	metrics.SetValidatorConfigVersion(validator.Config().Version)

	if path := config.ConfigFile(); path != "" {
		watchConfig(path, reloadTargets{validator: validator, webhook: webhook})
	}

	router := api.NewRouter(api.NewHandler(validator, monitorSvc, version), &api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: api.DefaultChiMiddlewareConfig().CORSAllowedMethods,
		CORSAllowedHeaders: api.DefaultChiMiddlewareConfig().CORSAllowedHeaders,
		CORSExposedHeaders: api.DefaultChiMiddlewareConfig().CORSExposedHeaders,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
		APIToken:           cfg.Security.APIToken,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if st.gc != nil {
		tree.AddStorageService(services.NewWorkerService("badger-gc", st.gc))
	}
	tree.AddMonitoringService(services.NewWorkerService("security-retention", monitorSvc))
	if bus != nil && bus.Backend() == eventbus.BackendMemory {
		tree.AddMonitoringService(services.NewWorkerService("eventbus-consumer", eventbus.NewConsumer(bus, nil)))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return nil
}
