package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/chat"
	"github.com/spec-kit/ticket-bot/internal/chat/discord"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/interaction"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/scheduler"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/internal/webhook"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configFile := pflag.String("config", "", "YAML file of KEY: value configuration defaults")
	envFile := pflag.String("env-file", "", "dotenv file to load (defaults to .env when present)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile, *configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *migrateOnly {
		if err := migrate(ctx, cfg.Postgres, logger); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ticket bot stopped", zap.Error(err))
	}
}

func migrate(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) error {
	if cfg.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required with --migrate-only")
	}
	cfg.RunMigrations = true
	pg, err := persistence.NewPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	pg.Close()
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	var repos *repository.Repos
	if pg.Enabled() {
		repos = repository.NewPostgresRepos(pg.Pool)
	} else {
		repos = repository.NewMemory().Repos()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var session *discordgo.Session
	var platform chat.Platform
	if cfg.Discord.Token != "" {
		session, err = discord.NewSession(cfg.Discord.Token)
		if err != nil {
			return err
		}
		platform = discord.NewPlatform(session, func() string { return discord.BotUserID(session) }, logger)
	} else {
		logger.Warn("DISCORD_TOKEN not provided; running without a gateway against an in-memory chat platform")
		platform = chat.NewFake()
	}

	store, err := transcriptStore(ctx, cfg.Transcript, logger)
	if err != nil {
		return err
	}
	capturer := transcript.NewCapturer(platform, store, cfg.Lifecycle.TranscriptMessageLimit, logger)

	deletions := scheduler.New(logger)
	background := service.NewBackground(cfg.Lifecycle.SideTaskTimeout(), logger)
	audit := service.NewAuditService(repos.Logs, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		GuildRepo:    repos.Guilds,
		Sequence:     repository.NewTicketSequence(redis.Client, cfg.Redis.KeyPrefix, repos.Tickets, logger),
		Audit:        audit,
		Platform:     platform,
		Dispatcher:   dispatcher,
		Transcripts:  capturer,
		Deletions:    deletions,
		Background:   background,
		Config:       cfg.Lifecycle,
		Logger:       logger,
		Metrics:      metrics,
	})
	feedbackService := service.NewFeedbackService(service.FeedbackDependencies{
		TicketRepo:   repos.Tickets,
		FeedbackRepo: repos.Feedback,
		Audit:        audit,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Metrics:      metrics,
	})

	notifier := webhook.NewNotifier(repos.Webhooks, cfg.Webhook, logger, metrics)
	notifications := service.NewNotificationService(dispatcher, notifier, repos.Webhooks, logger)

	workers := worker.New(notifications, logger)
	workers.Track("channel-deletions", deletions)
	workers.Track("side-tasks", background)
	workers.Start()

	var gateway *discord.Gateway
	if session != nil {
		router := interaction.NewRouter(ticketService, feedbackService, logger, metrics)
		gateway = discord.NewGateway(session, router, cfg.Lifecycle.InteractionTimeout(), logger)
		if err := gateway.Open(); err != nil {
			return err
		}
	}

	app := httptransport.NewApp(cfg.App, logger, metrics)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
			handlers.Dependency{Name: "postgres", Pinger: pg},
			handlers.Dependency{Name: "redis", Pinger: redis},
		),
		Tickets: handlers.NewTicketsHandler(ticketService),
		Guilds:  handlers.NewGuildHandler(audit, notifications),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case sig := <-waitForSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-listenErr:
		logger.Error("http server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting interactions and let in-flight ones finish before
	// draining the work they started.
	if gateway != nil {
		if err := gateway.Close(shutdownCtx); err != nil {
			logger.Warn("close discord gateway", zap.Error(err))
		}
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := workers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("workers did not drain", zap.Error(err))
	}
	return nil
}

func transcriptStore(ctx context.Context, cfg config.TranscriptConfig, logger *zap.Logger) (transcript.Store, error) {
	if cfg.UseMinio() {
		store, err := transcript.NewMinioStore(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init transcript bucket: %w", err)
		}
		return store, nil
	}
	store, err := transcript.NewLocalStore(cfg.Dir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("init transcript dir: %w", err)
	}
	return store, nil
}

func waitForSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
