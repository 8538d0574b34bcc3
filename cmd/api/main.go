// Package main is the entrypoint for the Brevy API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/brevy/brevy/internal/analytics"
	"github.com/brevy/brevy/internal/cache"
	"github.com/brevy/brevy/internal/config"
	"github.com/brevy/brevy/internal/handler"
	"github.com/brevy/brevy/internal/metrics"
	"github.com/brevy/brevy/internal/middleware"
	"github.com/brevy/brevy/internal/repository"
	"github.com/brevy/brevy/internal/server"
	"github.com/brevy/brevy/internal/service"
	"github.com/brevy/brevy/internal/shortcode"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		LinkTTL:         cfg.LinkCacheTTL,
		NegativeTTL:     cfg.NegativeCacheTTL,
		NegativeEnabled: cfg.NegativeCacheEnabled,
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	gen, err := shortcode.NewGenerator(cfg.CodeMinLength, cfg.CodeMaxLength, cfg.CodeDrawsPerLength)
	if err != nil {
		logger.Error("invalid short code configuration", "error", err)
		os.Exit(1)
	}

	metricsRecorder := metrics.NewInMemory()

	linkService := service.NewLinkService(
		repo,
		cacheClient,
		gen,
		logger,
		metricsRecorder,
		cfg.BaseURL,
		cfg.StoreRetryTimeout,
	)

	publisher := analytics.NewStreamPublisher(cacheClient.Client())
	emitter := analytics.NewEmitter(publisher, logger, metricsRecorder, analytics.EmitterOptions{
		QueueSize:      cfg.ClickQueueSize,
		Workers:        cfg.ClickWorkers,
		PublishRetries: cfg.ClickPublishRetries,
		PublishTimeout: cfg.ClickPublishTimeout,
	})
	if err := emitter.Start(); err != nil {
		logger.Error("failed to start click emitter", "error", err)
		os.Exit(1)
	}

	flusher := service.NewClickFlusher(cacheClient, repo, logger, cfg.ClickFlushInterval)
	flusher.Start()

	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	linkHandler := handler.NewLinkHandler(linkService, logger)
	redirectHandler := handler.NewRedirectHandler(linkService, emitter, logger, metricsRecorder)

	r := setupRouter(h, healthHandler, linkHandler, redirectHandler, cacheClient, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered first so they stop last, after the HTTP server has
	// drained and nothing new feeds them.
	srv.OnShutdown("click_emitter", emitter.Shutdown)
	srv.OnShutdown("click_flusher", flusher.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	linkHandler *handler.LinkHandler,
	redirectHandler *handler.RedirectHandler,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Get("/", h.Hello)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(cfg.MaxRequestBodySize))

		r.Route("/links", func(r chi.Router) {
			r.Get("/", linkHandler.List)
			r.Post("/", linkHandler.Create)
			r.Get("/{id}", linkHandler.Get)
			r.Patch("/{id}", linkHandler.Update)
			r.Delete("/{id}", linkHandler.Delete)
		})
	})

	// The redirect route is the public surface; it gets per-IP rate
	// limiting and nothing else in front of it.
	if cfg.RateLimitRedirectEnabled {
		rateLimit := middleware.RateLimitIP(
			cacheClient,
			cfg.RateLimitRedirectRPS,
			cfg.RateLimitRedirectBurst,
			logger,
		)
		r.With(rateLimit).Get("/{shortCode}", redirectHandler.Redirect)
	} else {
		r.Get("/{shortCode}", redirectHandler.Redirect)
	}

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL strips credentials from a connection URL for logging.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError removes secret material from error text before logging.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
