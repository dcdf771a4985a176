package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kutter/auth"
	grpcserver "kutter/infrastructure/grpc/server"
	httpserver "kutter/infrastructure/http/server"
	"kutter/internal"
	"kutter/moderation"
	"kutter/repositories"
	"kutter/runtime"
	"kutter/runtime/workers"
	"kutter/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a fatal error.
// Deferred cleanups, the database first, run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := badger.Open(buildBadgerOpts(ctx, config, log))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, log, config.MaxMessageLength, config.LimitMessages)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()

	// 3. Domain services
	moderator, err := buildModerator(config)
	if err != nil {
		return err
	}
	chatService := services.NewChatService(log, messageRepository, moderator)

	registry := runtime.NewRegistry(log)
	engine := runtime.NewEngine(log, registry, chatService, config.Connection())
	validator := auth.NewTokenValidator([]byte(config.JWTSecret))
	chatServer := httpserver.NewChatServer(log, engine, chatService, validator, config.TokenCookieName, config.Origins())
	healthServer := grpcserver.NewHealthServer(log)

	// 4. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHttpServerWorker(log, config.HttpAddress(), chatServer.Routes(), shutdownTimeout),
		workers.NewGrpcServerWorker(log, config.GrpcAddress(), healthServer.NewGRPCServer),
		workers.NewTelemetryWorker(log, config.MetricInterval, registry),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sup.Run(gCtx)
		if ctx.Err() == nil {
			return fmt.Errorf("supervisor stopped before shutdown")
		}
		return nil
	})
	healthServer.SetServing(true)
	log.Info("Chat started", "http", config.HttpAddress(), "grpc", config.GrpcAddress())

	// 5. Wait for Stop
	<-gCtx.Done()
	log.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	sup.Stop()
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, log *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if log.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// buildModerator returns nil when no censored word is configured.
func buildModerator(config internal.Config) (*moderation.Moderator, error) {
	words := moderation.ParseWords(config.CensoredWords)
	if len(words) == 0 {
		return nil, nil
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	return moderation.NewModerator(words, replacement)
}
