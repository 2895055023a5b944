package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"storyapi/docs"
	"storyapi/internal/feed"
	handlers "storyapi/internal/http/handler"
	"storyapi/internal/http/middleware"
	tracing "storyapi/internal/otel"
	"storyapi/internal/playback"
	"storyapi/internal/repository/postgres"
	"storyapi/internal/service"
	"storyapi/internal/storage"
)

const (
	// defaultBodyLimit caps request bodies when STORY_MAX_UPLOAD_BYTES is unset.
	defaultBodyLimit = 256 << 20

	// multipartOverhead leaves room for form boundaries and the caption field.
	multipartOverhead = 1 << 20

	shutdownTimeout = 10 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, !noSweep)
		},
	}

	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "Do not schedule the expired-story sweeper")
	return cmd
}

func runServe(ctx context.Context, cc *commandContext, sweep bool) error {
	cfg := cc.config()
	logger := cc.log()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}

	db, err := cc.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	objStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	clock := clockwork.NewRealClock()
	repo := postgres.NewStoryPostgres(db, clock)
	feedStore := feed.New(repo, clock, feed.Options{MaxAge: cfg.Stories.FeedMaxAge, Logger: logger})
	tracker := service.NewViewTracker(repo, feedStore, metrics)
	storySvc := service.NewStoryService(objStore, repo, clock, service.StoryOptions{
		TTL:            cfg.Stories.TTL,
		MaxUploadBytes: cfg.Stories.MaxUploadBytes,
	}, metrics)
	players := playback.NewManager(feedStore, tracker, clock, playback.Options{
		TickInterval: cfg.Stories.TickInterval,
		ProgressStep: cfg.Stories.ProgressStep,
		Logger:       logger,
	})

	if sweep {
		sweeper := service.NewSweeper(repo, objStore, clock, cfg.Stories.SweepBatchSize, logger, metrics)
		scheduler, err := sweeper.Start(ctx, cfg.Stories.SweepInterval)
		if err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				logger.Warn("sweeper_shutdown_failed", "error", err.Error())
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit(cfg.Stories.MaxUploadBytes),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Viewer())
	app.Use(middleware.ContextLogger(logger))
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:            db,
		Creator:       storySvc,
		Feed:          feedStore,
		Views:         tracker,
		Playback:      players,
		UploadLimiter: middleware.NewKeyedLimiter(cfg.RateLimit.Uploads, cfg.RateLimit.Window, cfg.RateLimit.Burst, clock),
		Gatherer:      reg,
		Logger:        logger,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()
	logger.Info("server_started", "addr", addr, "storage_driver", cfg.Storage.Driver)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err.Error())
	}
	players.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing_shutdown_failed", "error", err.Error())
	}
	return nil
}

func bodyLimit(maxUpload int64) int {
	if maxUpload <= 0 {
		return defaultBodyLimit
	}
	return int(maxUpload) + multipartOverhead
}
