// Command triage starts the symptom triage service.
//
// At startup it cleans both corpora, trains the three models, scores them on
// the held-out corpus and loads the knowledge base; any failure there aborts
// the process. Redis, Kafka and PostgreSQL are optional and only degrade the
// service when unavailable.
//
// Usage:
//
//	go run ./cmd/triage [-config configs/development.yaml]
package main

import (
	"context"
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
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage/cache"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage/handler"
	triagerpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage/rpc"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/resilience"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting triage service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db := connectPostgres(ctx, cfg)
	if db != nil {
		defer db.Close()
	}
	if cfg.Knowledge.Source == "postgres" && db == nil {
		slog.Error("knowledge source is postgres but the database is unavailable")
		os.Exit(1)
	}

	var predictionCache *cache.PredictionCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, prediction caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			predictionCache = cache.New(redisClient, cfg.Redis, m)
			slog.Info("prediction cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator(nil)
	recorders := analytics.Fanout{aggregator}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize,
			analytics.WithDropHook(m.EventsDroppedTotal.Inc))
		collector.Start(ctx)
		defer collector.Close()
		recorders = append(recorders, collector)
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.PredictionEvents)
	}

	if db != nil {
		snapshots := store.New(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
		} else if done, err := store.Schedule(ctx, snapshots, aggregator, cfg.Analytics.SnapshotSchedule); err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
		} else {
			defer func() { <-done }()
		}
	}

	opts := triage.Options{Recorder: recorders, Metrics: m, Tracing: cfg.Tracing.Enabled}
	if predictionCache != nil {
		opts.Cache = predictionCache
	}
	start := time.Now()
	engine, err := triage.Build(ctx, cfg, triage.Deps{DB: db, Options: opts})
	if err != nil {
		slog.Error("failed to build triage engine", "error", err)
		os.Exit(1)
	}
	slog.Info("triage engine ready",
		"features", engine.Info().Features,
		"classes", engine.Info().Classes,
		"duration", time.Since(start),
	)

	checker := health.NewChecker(health.WithCacheTTL(2 * time.Second))
	checker.Register("engine", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d models loaded", len(engine.Info().Models))}
	})
	if cfg.Redis.Enabled {
		var ping func(context.Context) error
		if redisClient != nil {
			ping = redisClient.Ping
		}
		checker.Register("redis", health.PingCheck(true, ping))
	}
	if producer != nil {
		checker.Register("kafka", health.PingCheck(true, producer.Ping))
	}
	if cfg.Postgres.Enabled {
		var ping func(context.Context) error
		if db != nil {
			ping = db.Ping
		}
		checker.Register("postgres", health.PingCheck(cfg.Knowledge.Source != "postgres", ping))
	}

	var rpcServer *pkgrpc.Server
	if cfg.RPC.Enabled {
		rpcServer = pkgrpc.NewServer()
		triagerpc.NewService(engine).Register(rpcServer)
		go func() {
			if err := rpcServer.ListenAndServe(fmt.Sprintf(":%d", cfg.RPC.Port)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	var cacheAdmin handler.CacheAdmin
	if predictionCache != nil {
		cacheAdmin = predictionCache
	}
	h := handler.New(engine, cacheAdmin, cfg.Server.MaxBodyBytes)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.CORS),
		middleware.Recover,
		middleware.Metrics(m),
		middleware.Timeout(cfg.Server.WriteTimeout),
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
		if rpcServer != nil {
			rpcServer.Stop()
		}
	}()

	slog.Info("triage service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown begins; in-flight requests
	// must finish before the deferred cleanups run.
	<-shutdownDone
	slog.Info("triage service stopped")
}

// connectPostgres returns nil when PostgreSQL is disabled or unreachable
// after a few attempts.
func connectPostgres(ctx context.Context, cfg *config.Config) *postgres.Client {
	if !cfg.Postgres.Enabled {
		return nil
	}
	db, err := resilience.Do(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
	}, func(context.Context) (*postgres.Client, error) {
		return postgres.New(cfg.Postgres)
	})
	if err != nil {
		slog.Warn("postgres unavailable", "error", err)
		return nil
	}
	return db
}
