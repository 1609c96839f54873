package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"directory-chat/auth"
	"directory-chat/httpapi"
	"directory-chat/internal"
	"directory-chat/push"
	"directory-chat/repositories"
	"directory-chat/runtime"
	"directory-chat/runtime/workers"
	"directory-chat/services"
	"directory-chat/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, worker
// shutdown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()
	groupRepository := repositories.NewGroupRepository(db)
	pushRepository := repositories.NewPushSubscriptionRepository(db)
	employeeRepository := repositories.NewEmployeeRepository(db)

	// 4. Delivery machinery
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry, groupRepository)
	provider := push.NewHTTPProvider(config.PushEndpoint, config.PushAPIKey, config.PushTimeout)
	notifier := workers.NewNotifier(log, groupRepository, pushRepository, provider, config.NotifyBufferSize)

	chatService := services.NewChatService(log, messageRepository, groupRepository,
		employeeRepository, broadcaster, notifier)

	// 5. Context, signals, supervised workers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(notifier)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 6. Transport
	sessions := auth.NewTokenValidator(config.JWTSecret)
	liveHandler := ws.NewHandler(log, registry, sessions, employeeRepository, chatService,
		config.ConnectionBufferSize, config.FrameRateLimit, config.FrameBurst)
	api := httpapi.NewServer(log, chatService, pushRepository, config.PageSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: api.Router(sessions, liveHandler),
	}

	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, log)
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	supervisor.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return nil
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
