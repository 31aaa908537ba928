package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"mini-base/auth"
	"mini-base/dispatch"
	"mini-base/infrastructure/httpapi"
	"mini-base/infrastructure/storage"
	"mini-base/infrastructure/whatsapp"
	"mini-base/internal"
	"mini-base/moderation"
	"mini-base/observability"
	"mini-base/runtime"
	"mini-base/runtime/workers"
	"mini-base/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility
	// is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Databases (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are
		// flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & credential cache
	credentials := storage.NewCredentialRepository(db, logger)
	roster := storage.NewRosterRepository(db, logger)
	configs := storage.NewConfigRepository(db, logger)
	otps := storage.NewOTPRepository(db, logger)
	stats := storage.NewStatsRepository(db, logger)
	archive := storage.NewMessageArchive(db, blugeWriter, logger,
		config.ArchiveRingSize, config.ArchiveRetention)

	cache, err := storage.NewCredentialCache(config.SessionCacheDir)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Moderation (optional, runs only when a blacklist is seeded)
	var moderator *moderation.Moderator
	if words, err := moderation.LoadWords(db); err != nil {
		logger.Warn("Banned word loading failed, moderation disabled", "error", err)
	} else if len(words) > 0 {
		mod, err := moderation.NewModerator(words, charReplacement, logger)
		if err != nil {
			return exitRuntime, fmt.Errorf("moderator build failed: %w", err)
		}
		moderator = &mod
		logger.Info("Moderation enabled", "words", len(words))
	}

	// 5. Runtime: registry, locks, policy, dispatcher, supervisor
	registry := runtime.NewRegistry()
	locks := runtime.NewConnLocks()
	policy := runtime.NewReconnectPolicy(config.MaxReconnectAttempts)
	factory := whatsapp.NewFactory(logger, cache)

	cmdRegistry := dispatch.NewRegistry()
	builtins := dispatch.Builtins{
		Log:     logger,
		Stats:   stats,
		Archive: archive,
		Status:  registry.Status,
	}
	cmdRegistry.Register(builtins.Descriptors()...)
	pipeline := dispatch.NewPipeline(logger, configs, stats, archive, cmdRegistry, moderator)

	supervisor := runtime.NewSessionSupervisor(
		logger, registry, locks, policy, factory,
		credentials, cache, roster, pipeline,
		config.PairingCodeDelay, config.ReconnectBackoff,
	)
	supervisor.SetBaseContext(ctx)

	fleet := runtime.NewFleet(logger, registry, supervisor, policy,
		roster, credentials, cache, config.FleetSpacing)

	// 6. Background workers: boot reconnect + health sampling
	monitor := observability.NewMonitor(logger, config.MetricInterval, func() int {
		return len(registry.ListActive())
	})
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		runtime.BootWorker{Log: logger, Fleet: fleet, Delay: config.BootConnectDelay},
		monitor,
	)
	go sup.Run(ctx)

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
			return map[string]any{"active_sessions": len(registry.ListActive())}
		})
	}

	// 7. HTTP surface
	configSvc := services.NewConfigService(logger, registry, configs, otps, config.OTPValidity)
	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	server := httpapi.NewServer(logger, supervisor, fleet, registry, configSvc,
		stats, monitor, tokens, config.OperatorName, config.OperatorPasswordHash)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Router()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup: HTTP first, then live sessions and caches.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	supervisor.Shutdown(shutdownCtx)
	logger.Info("Gateway stopped cleanly")

	return exitOK, nil
}
