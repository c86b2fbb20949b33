package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubrelay/internal/cache"
	"hubrelay/internal/config"
	"hubrelay/internal/constants"
	"hubrelay/internal/database"
	"hubrelay/internal/filter"
	"hubrelay/internal/retry"
	"hubrelay/internal/service"
	"hubrelay/internal/tracing"
	"hubrelay/pkg/classifier"
	"hubrelay/pkg/transport"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("HubRelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting HubRelay")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    "hubrelay",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// SQLite may need a moment on slow volumes; retry with backoff.
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultRetryBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	redis, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redis.Close()

	session, err := discordgo.New("Bot " + cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	client := transport.NewDiscordClient(session)
	notifier := transport.NewBotNotifier(session)
	cls := classifier.NewClient(cfg.Classifier.BaseURL, time.Duration(cfg.Classifier.TimeoutSec)*time.Second)

	registry := service.NewRegistry(db, redis, logger)
	alerts := service.NewAlertNotifier(notifier, logger)
	gate := service.NewGate(db, cls, alerts, cfg.Classifier.Threshold, logger)
	messages := service.NewMessageStore(db, redis, logger)
	dispatcher := service.NewDispatcher(registry, client, messages, notifier, logger)
	wordFilter := filter.NewDefault()
	formatter := service.NewFormatter()
	propagator := service.NewPropagator(messages, dispatcher, redis, gate, wordFilter, formatter, db, logger)
	relay := service.NewRelay(registry, db, gate, wordFilter, formatter, dispatcher, messages, propagator, notifier, logger)

	registerGatewayHandlers(session, relay, logger)

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnf("Failed to close gateway connection: %v", err)
		}
	}()

	scheduler := service.NewScheduler(db, time.Duration(cfg.RetentionHours)*time.Hour, logger)
	if err := scheduler.Start(cfg.SweepSpec); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	srv := newHealthServer(cfg.Server.Port, db, redis, logger)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.run()
	}()

	logger.WithField("port", cfg.Server.Port).Info("HubRelay is up")

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()
	if err := srv.shutdown(shutdownCtx); err != nil {
		logger.Warnf("Health server shutdown: %v", err)
	}

	return nil
}
