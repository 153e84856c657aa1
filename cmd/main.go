package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"video2tool/auth"
	"video2tool/infrastructure/web"
	"video2tool/infrastructure/ws"
	"video2tool/internal"
	"video2tool/moderation"
	"video2tool/observability"
	"video2tool/repositories"
	"video2tool/runtime"
	"video2tool/runtime/workers"
	"video2tool/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanups always execute.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Collaboration core
	tokens := auth.NewTokenService(config.TokenSecret, config.TokenDuration)
	registry := runtime.NewRegistry()
	membership := runtime.NewMembership()
	broadcaster := runtime.NewBroadcaster(log, registry, membership)

	censor, err := moderation.NewCensor(config.BlockedWords, config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("censor setup failed: %w", err)
	}

	collabService := services.NewCollabService(
		log, tokens, registry, membership, broadcaster, censor,
		config.NotificationBufferSize,
	)
	authService := services.NewAuthService(repositories.NewUserRepository(db), tokens)

	// 4. Background workers
	monitor := observability.NewMonitor(log)
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewNotifierWorker(log, collabService.Notifications(), broadcaster, monitor),
		workers.NewTelemetryWorker(log, registry, membership, broadcaster, monitor, config.TelemetryInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. Debug server (loopback only)
	internal.StartDebugServer(log, config.DebugPort, internal.NewDebugMux(db, monitor.GetLatest))

	// 7. HTTP server: auth REST + the collaboration endpoint
	wsHandler := ws.NewHandler(log, collabService, config.AllowedOrigins, config.ConnectionBufferSize)
	webHandler := web.NewHandler(log, authService)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           webHandler.Router(wsHandler.ServeWS, config.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting collaboration server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
