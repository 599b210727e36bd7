package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/izzocam/internal/app/migrate"
	httpx "github.com/splax/izzocam/internal/http"
	"github.com/splax/izzocam/internal/llm"
	"github.com/splax/izzocam/internal/objectstore"
	"github.com/splax/izzocam/internal/ratelimit"
	"github.com/splax/izzocam/internal/repository/postgres"
	"github.com/splax/izzocam/internal/service/commentary"
	"github.com/splax/izzocam/internal/service/monitoring"
	"github.com/splax/izzocam/internal/service/recap"
	"github.com/splax/izzocam/internal/service/settings"
	"github.com/splax/izzocam/internal/ws"
	"github.com/splax/izzocam/pkg/config"
	"github.com/splax/izzocam/pkg/logger"
)

func main() {
	config.LoadDotEnv()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	store, err := objectstore.NewLocal(cfg.MediaRoot, cfg.MediaBaseURL, cfg.MediaSigningSecret)
	if err != nil {
		log.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	model, err := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, &http.Client{Timeout: cfg.OpenAIRequestTimeout})
	if err != nil {
		log.Error("failed to configure model client", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Warn("OPENAI_API_KEY is empty; commentary generation will fail")
	}

	pricing := monitoring.DefaultPricing()
	if path := strings.TrimSpace(cfg.PricingFile); path != "" {
		loaded, err := monitoring.LoadPricing(path)
		if err != nil {
			log.Error("failed to load pricing file", "path", path, "error", err)
			os.Exit(1)
		}
		pricing = loaded
	}
	monitor := monitoring.New(repo, monitoring.Options{
		Pricing:         pricing,
		DailyThreshold:  cfg.CostAlertDailyUSD,
		HourlyThreshold: cfg.CostAlertHourlyUSD,
	}, log)

	settingsSvc := settings.New(repo, cfg.SettingsCacheTTL, log)

	hub := ws.NewHub(log)
	defer hub.Close()

	promptLocation, err := time.LoadLocation(cfg.PromptTimezone)
	if err != nil {
		log.Error("invalid commentary timezone", "timezone", cfg.PromptTimezone, "error", err)
		os.Exit(1)
	}

	commentaryLog := commentary.NewLog(repo, hub, log)
	resolver := commentary.NewResolver(repo, commentaryLog, cfg.MaxSnapshots, cfg.AdhocMaxLookback)
	sampler := commentary.NewSampler(store, cfg.SignedURLTTL)
	commentarySvc := commentary.NewService(resolver, sampler, commentaryLog, settingsSvc, model, monitor, commentary.Options{
		VisionModel:  cfg.OpenAIVisionModel,
		MaxFrames:    cfg.MaxPromptFrames,
		MaxTokens:    cfg.OpenAIMaxTokens,
		ModelTimeout: cfg.OpenAIRequestTimeout,
		Location:     promptLocation,
	}, log)

	guard := recap.NewGuard(commentaryLog, repo, monitor, cfg.RecapDuplicateWindow, log)
	recapSvc := recap.NewService(guard, commentarySvc, log)
	if cfg.RecapSchedulerEnabled {
		scheduler := recap.NewScheduler(recapSvc, monitor, cfg.RecapInterval, cfg.CostCheckInterval, log)
		go scheduler.Run(ctx)
	}

	limiters := ratelimit.NewMemorySet(ratelimit.DefaultPolicies()...)
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		client, err := ratelimit.NewRedisClient(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiters.Close()
			limiters = ratelimit.NewRedisSet(client, log, ratelimit.DefaultPolicies()...)
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:             log,
		Commentary:         commentarySvc,
		Log:                commentaryLog,
		Settings:           settingsSvc,
		Recap:              recapSvc,
		Monitor:            monitor,
		Limiters:           limiters,
		Media:              store,
		Hub:                hub,
		SchedulerTokenHash: cfg.SchedulerTokenHash,
		AdminTokenHash:     cfg.AdminTokenHash,
		DBHealth:           pool.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
