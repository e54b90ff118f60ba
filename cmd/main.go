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
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"you-chat/api"
	"you-chat/auth"
	"you-chat/domain/event"
	"you-chat/internal"
	"you-chat/moderation"
	"you-chat/repositories"
	"you-chat/runtime"
	"you-chat/runtime/workers"
	"you-chat/services"
	"you-chat/sink"
	"you-chat/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB for records, Bluge for full-text search)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	// 3. Moderation dictionaries (embedded, one file per language)
	censored, err := runtime.NewCensoredLoader(runtime.CensoredWords).LoadAll("censored")
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	log.Info("Loaded moderation dictionaries",
		"languages", censored.Languages, "words", len(censored.Words))

	replacement, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(censored.Words, replacement, log)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	// 4. Repositories
	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	searchRepository := repositories.NewSearchRepository(indexWriter, log, nil)

	// 5. Realtime core
	registry := runtime.NewRegistry()
	resolver := runtime.NewResolver(conversationRepository, log)
	router := runtime.NewRouter(
		registry, userRepository, resolver, messageRepository,
		&moderator, config.BroadcastConversationUpdates, log,
	)

	indexSink := sink.NewIndexSink(searchRepository, log, config.IndexBatchSize, config.IndexBufferTimeout)
	router.AddPermanentSink(indexSink)
	// Whatever is still buffered goes into the index before shutdown.
	defer func() { _ = indexSink.Flush() }()

	// 6. Services & HTTP surface
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(
		router, conversationRepository, messageRepository, userRepository, searchRepository,
	)
	userService := services.NewUserService(userRepository)

	presence := make(chan event.DomainEvent, config.PresenceBufferSize)
	wsHandler := ws.NewHandler(registry, router, presence, log)
	apiHandler := api.NewHandler(authService, chatService, userService, log)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Supervised background workers
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewPresenceFanout(log, registry, presence, config.SinkTimeout),
		workers.NewSelfStatsWorker(log, config.StatsInterval),
	)
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 9. Optional debug inspector on a side port
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, "/inspect", internal.ChatMapper,
			internal.SelfStats(time.Now(), func() map[string]any {
				return map[string]any{"Online": len(registry.Snapshot())}
			}))
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 10. HTTP Server Setup
	routes := apiHandler.Routes()
	routes.Handle("/ws", wsHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: routes}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 11. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 12. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not complete cleanly", "error", err)
	}
	sup.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")

	return nil
}
