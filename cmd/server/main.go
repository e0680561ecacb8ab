package main

import (
	"chat-rooms/auth"
	grpcserver "chat-rooms/infrastructure/grpc/server"
	httpserver "chat-rooms/infrastructure/http/server"
	"chat-rooms/infrastructure/search"
	"chat-rooms/infrastructure/storage"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/internal"
	"chat-rooms/moderation"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"
	"chat-rooms/services"
	"chat-rooms/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a listener error.
// Deferred cleanups run in reverse order of construction.
func run() error {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = blugeWriter.Close()
	}()

	users := storage.NewUserRepository(db, log, config.SequenceMaxAttempts)
	rooms := storage.NewRoomRepository(db, log, config.SequenceMaxAttempts)
	messages := storage.NewMessageRepository(db, log)
	index := search.NewMessageIndex(blugeWriter, log)

	// 3. Moderation
	moderator, err := buildModerator(db, config, censoredChar, log)
	if err != nil {
		return err
	}

	// 4. Auth
	tokens := auth.NewTokenManager([]byte(config.JWTSecret), config.AuthTokenDuration)
	verifier := auth.NewVerifier(tokens, users, log)

	// 5. Supervision & Orchestration
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, supervisor, runtime.NewRegistry(), verifier, rooms, messages, moderator,
		runtime.Config{
			MaxContentLength:        config.MaxContentLength,
			HistoryLimit:            config.HistoryLimit,
			RequireMembershipToJoin: config.RequireMembershipToJoin,
			AuthTimeout:             config.AuthTimeout,
			PersistenceTimeout:      config.PersistenceTimeout,
			SequenceMaxAttempts:     config.SequenceMaxAttempts,
			SinkTimeout:             config.SinkTimeout,
			BufferSize:              config.BufferSize,
		})
	searchSink := sink.NewSearchSink(index, log, config.SearchBatchSize, config.SearchFlushDelay)
	orchestrator.Add(searchSink)
	defer func() {
		if err := searchSink.Flush(); err != nil {
			log.Error("Final search flush failed", "error", err)
		}
	}()

	health := grpcserver.NewHealthServer(func() error {
		if db.IsClosed() {
			return errors.New("badger is closed")
		}
		return nil
	}, config.HealthInterval, log)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator.Start(ctx,
		workers.NewTelemetryWorker(log, config.TelemetryInterval, orchestrator.Stats),
		health,
	)
	defer orchestrator.Stop()

	// 7. Listeners: public HTTP + websocket, admin debug, gRPC health
	params := auth.DefaultPasswordParams
	api := httpserver.NewServer(
		services.NewAuthService(users, tokens, params, log),
		services.NewUserService(users, params, log),
		services.NewRoomService(rooms, messages, index, config.HistoryLimit, log),
		verifier,
		config.AuthTokenDuration,
		config.SecureCookie,
		log,
	)
	websocket := ws.NewHandler(
		orchestrator,
		ws.NewOriginPolicy(internal.SplitList(config.AllowedOrigins), log),
		ws.DefaultConfig(config.AuthTimeout, config.IngressQueueSize, config.ConnectionBufferSize),
		log,
	)

	public := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: api.Routes(websocket),
	}
	admin := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.AdminPort),
		Handler: internal.NewDebugHandler(db, orchestrator.Stats, log),
	}
	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
	healthListener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}

	errChan := make(chan error, 3)
	for _, s := range []*http.Server{public, admin} {
		go func() {
			log.Info("Starting HTTP server", "address", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("HTTP server %s error: %w", s.Addr, err)
			}
		}()
	}
	go func() {
		if err := health.Serve(healthListener); err != nil {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
		log.Error("Listener failed, shutting down", "error", runErr)
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	for _, s := range []*http.Server{public, admin} {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown incomplete", "address", s.Addr, "error", err)
		}
	}
	health.Stop()
	log.Info("Program stopped cleanly")

	return runErr
}

// buildModerator merges the censored words from the environment, the
// badger blacklist and the optional word list directory.
func buildModerator(db *badger.DB, config internal.Config, censoredChar rune, log *slog.Logger) (*moderation.Moderator, error) {
	words := internal.SplitList(config.CensoredWords)

	stored, err := moderation.LoadBlacklist(db)
	if err != nil {
		return nil, fmt.Errorf("loading blacklist: %w", err)
	}
	words = append(words, stored...)

	if config.CensoredWordsDir != "" {
		list, err := moderation.LoadWordList(os.DirFS(config.CensoredWordsDir), ".")
		if err != nil {
			return nil, fmt.Errorf("loading word list: %w", err)
		}
		log.Info("Censored word list loaded", "words", len(list.Words), "languages", list.Languages)
		words = append(words, list.Words...)
	}

	return moderation.NewModerator(words, censoredChar, log)
}
