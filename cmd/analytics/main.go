// Command analytics starts the standalone prediction analytics service.
//
// It consumes prediction events that every triage instance publishes to
// Kafka, aggregates them in memory (agreement counts, top predicted
// diseases, top unknown symptoms, latency percentiles), snapshots the totals
// to PostgreSQL on a cron schedule and serves both over HTTP.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	aggregator := analytics.NewAggregator(nil)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents, analytics.HandleEvent(aggregator),
		kafka.WithOutcomeHook(func(o kafka.Outcome) {
			m.EventsConsumedTotal.WithLabelValues(string(o)).Inc()
		}),
	)
	aggregator.SetConsumer(consumer)
	defer consumer.Close()

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.PredictionEvents)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /api/v1/analytics/consumer", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(consumer.Stats()); err != nil {
			slog.Error("failed to write consumer stats", "error", err)
		}
	})

	probe := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
	defer probe.Close()
	checker := health.NewChecker(health.WithCacheTTL(2 * time.Second))
	checker.Register("kafka", health.PingCheck(false, probe.Ping))

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			snapshots := store.New(db)
			if err := snapshots.EnsureSchema(ctx); err != nil {
				slog.Error("failed to create snapshot schema", "error", err)
				os.Exit(1)
			}
			done, err := store.Schedule(ctx, snapshots, aggregator, cfg.Analytics.SnapshotSchedule)
			if err != nil {
				slog.Error("invalid snapshot schedule", "error", err)
				os.Exit(1)
			}
			defer func() { <-done }()

			sh := store.NewHandler(snapshots)
			mux.HandleFunc("GET /api/v1/analytics/snapshots", sh.List)
			mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", sh.Latest)
			checker.Register("postgres", health.PingCheck(true, db.Ping))
		}
	}
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.CORS),
		middleware.Recover,
		middleware.Metrics(m),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown begins; in-flight requests
	// must finish before the deferred cleanups run.
	<-shutdownDone
	slog.Info("analytics service stopped")
}
