package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"

	"github.com/emmaduprey09/Health-Appointment-App/internal/api/router"
	appconfig "github.com/emmaduprey09/Health-Appointment-App/internal/config"
	"github.com/emmaduprey09/Health-Appointment-App/internal/compliance"
	"github.com/emmaduprey09/Health-Appointment-App/internal/http/handlers"
	"github.com/emmaduprey09/Health-Appointment-App/internal/intake"
	"github.com/emmaduprey09/Health-Appointment-App/internal/observability/metrics"
	"github.com/emmaduprey09/Health-Appointment-App/pkg/logging"
)

func main() {
	// Load .env if present (local development)
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic", cfg.ClinicName,
	)

	// Session store: Redis when configured, in-memory otherwise
	var store intake.SessionStore
	if cfg.UseRedisSessions {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		cancel()
		store = intake.NewRedisSessionStore(client, cfg.SessionTTL, otel.Tracer("intake-api"))
		logger.Info("using redis session store", "addr", cfg.RedisAddr)
	} else {
		store = intake.NewMemoryStore(cfg.SessionTTL)
		logger.Info("using in-memory session store")
	}

	// Audit trail: enabled when a database is configured
	var audit *compliance.AuditService
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		audit = compliance.NewAuditService(db)
		logger.Info("audit trail enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	intakeMetrics := metrics.NewIntakeMetrics(registry)

	opts := []intake.Option{
		intake.WithClassifier(intake.NewLexiconClassifier()),
		intake.WithAudit(audit),
		intake.WithMetrics(intakeMetrics),
		intake.WithLogger(logger),
		intake.WithClinicIdentity(cfg.ClinicName, cfg.IntakeEmail),
		intake.WithCallBudget(cfg.CallBudget),
		intake.WithHistoryBudget(cfg.HistoryBudget),
	}
	if cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(cfg.OpenAIAPIKey)
		drafter := intake.NewOpenAIDrafter(client, cfg.OpenAIModel, cfg.ClinicName, cfg.IntakeEmail, cfg.ModelTimeout, logger)
		opts = append(opts, intake.WithDrafter(drafter))
		logger.Info("model drafting enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("no OpenAI API key configured, drafts use the static template")
	}

	orchestrator := intake.New(store, opts...)
	turnLimiter := handlers.NewTurnLimiter(1, 5)
	chatHandler := handlers.NewChatHandler(orchestrator, orchestrator, turnLimiter, logger)

	var corsOrigins []string
	if cfg.CORSAllowedOrigins != "" {
		for _, origin := range strings.Split(cfg.CORSAllowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: corsOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
