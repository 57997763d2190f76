package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"InfoDigest/internal/classifier"
	"InfoDigest/internal/config"
	"InfoDigest/internal/dashboard"
	"InfoDigest/internal/domain"
	"InfoDigest/internal/infrastructure/extractor"
	"InfoDigest/internal/infrastructure/llm"
	"InfoDigest/internal/infrastructure/scheduler"
	"InfoDigest/internal/infrastructure/storage"
	"InfoDigest/internal/infrastructure/telegram"
	"InfoDigest/internal/logging"
	"InfoDigest/internal/metrics"
	"InfoDigest/internal/ratelimit"
	"InfoDigest/internal/retry"
	"InfoDigest/internal/usecase"
	"InfoDigest/pkg/logger"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	store      *storage.CachedStore
	classifier *classifier.Classifier
	metrics    *metrics.Recorder

	mu       sync.Mutex
	limiter  *ratelimit.Limiter
	pipeline *usecase.Pipeline
}

// New opens the digest store and builds the components shared by every
// command. The AI side is built lazily by Pipeline.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	repo := storage.NewSQLRepository(db, cfg.Database.Driver, cfg.Cache.TTL)
	store := storage.NewCachedStore(repo, cfg.Cache.HotTTL, cfg.Cache.TTL, baseLogger.With("component", "store"))

	baseLogger.Info("digest store ready", "driver", cfg.Database.Driver, "ttl", cfg.Cache.TTL)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		store:      store,
		classifier: classifier.New(cfg.Extractor.VideoHosts),
		metrics:    metrics.New(),
	}, nil
}

// Pipeline builds the message pipeline on first use. Credentials are
// checked with a ping; rejected credentials abort startup, an unreachable
// provider only logs a warning.
func (a *Application) Pipeline(ctx context.Context) (*usecase.Pipeline, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pipeline != nil {
		return a.pipeline, nil
	}
	if err := a.cfg.ValidateAI(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	provider, err := llm.NewProvider(a.cfg.AI, httpClient)
	if err != nil {
		return nil, err
	}
	summarizer := llm.NewSummarizer(provider, llm.Options{
		Temperature: a.cfg.AI.Temperature,
		Timeout:     a.cfg.AI.Timeout,
		KeyPoints:   a.cfg.AI.KeyPoints,
		Retry:       retry.Config{MaxAttempts: a.cfg.AI.MaxAttempts, BaseDelay: a.cfg.AI.BaseDelay},
	}, a.logger.With("component", "summarizer", "provider", provider.Name()))

	if err := summarizer.Ping(ctx); err != nil {
		reason, _ := domain.ReasonOf(err)
		if reason == domain.ReasonAuthentication || reason == domain.ReasonRejected {
			return nil, fmt.Errorf("ai provider check: %w", err)
		}
		a.logger.Warn("ai provider ping failed", "provider", provider.Name(), "error", err)
	}

	ex := a.cfg.Extractor
	extract := extractor.New(extractor.Options{
		Client:           httpClient,
		RequestTimeout:   ex.RequestTimeout,
		MaxTextLength:    ex.MaxTextLength,
		MinTextLength:    ex.MinTextLength,
		Workers:          ex.Workers,
		Retry:            retry.Config{MaxAttempts: ex.MaxAttempts, BaseDelay: ex.BaseDelay},
		HostRPS:          ex.HostRPS,
		HostBurst:        ex.HostBurst,
		UserAgent:        ex.UserAgent,
		CaptionLanguages: ex.CaptionLanguages,
	}, a.logger.With("component", "extractor"))

	a.limiter = ratelimit.New(a.cfg.RateLimit.Window, a.cfg.RateLimit.MaxRequests)
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Classifier: a.classifier,
		Limiter:    a.limiter,
		Store:      a.store,
		Extractor:  extract,
		Summarizer: summarizer,
		Metrics:    a.metrics,
		Logger:     a.logger.With("component", "pipeline"),
	})
	return a.pipeline, nil
}

// RunBot serves Telegram users until ctx is done. The dashboard runs
// alongside when an address is configured so /metrics reflects the bot.
func (a *Application) RunBot(ctx context.Context) error {
	if err := a.cfg.ValidateBot(); err != nil {
		return err
	}
	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return err
	}

	if err := tgbotapi.SetLogger(logger.New("telegram.api", a.logger, slog.LevelDebug)); err != nil {
		a.logger.Warn("telegram logger not set", "error", err)
	}
	bot, err := telegram.NewBot(a.cfg.Telegram.BotToken, pipeline, a.cfg.Telegram.MaxConcurrent, a.logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	maintenance := usecase.NewScheduler(
		scheduler.NewCronScheduler(a.cfg.RateLimit.SweepSchedule, a.logger.With("component", "cron")),
		a.limiter, a.metrics, a.logger.With("component", "maintenance"),
	)
	if err := maintenance.Start(ctx); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}
	defer func() {
		if err := maintenance.Stop(context.Background()); err != nil {
			a.logger.Warn("stop maintenance", "error", err)
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return bot.Run(gctx) })
	if a.cfg.Dashboard.Addr != "" {
		server := a.dashboard()
		group.Go(func() error { return server.Run(gctx, a.cfg.Dashboard.Addr) })
	}

	a.logger.Info("bot started", "provider", a.cfg.AI.Provider, "rate_limit", a.cfg.RateLimit.MaxRequests, "window", a.cfg.RateLimit.Window)
	return group.Wait()
}

// RunDashboard serves only the read-only HTTP API.
func (a *Application) RunDashboard(ctx context.Context) error {
	if a.cfg.Dashboard.Addr == "" {
		return errors.New("dashboard address is empty")
	}
	return a.dashboard().Run(ctx, a.cfg.Dashboard.Addr)
}

// Digest runs one message through the pipeline, for the command line.
func (a *Application) Digest(ctx context.Context, userID, text string) (usecase.Reply, error) {
	pipeline, err := a.Pipeline(ctx)
	if err != nil {
		return usecase.Reply{}, err
	}
	return pipeline.HandleMessage(ctx, userID, text), nil
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Application) dashboard() *dashboard.Server {
	return dashboard.New(a.store, a.classifier, a.metrics.Handler(), a.logger.With("component", "dashboard"))
}
