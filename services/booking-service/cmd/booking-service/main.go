package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/michalsegal11/your-digital-companion/libs/config"
	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/grpcx"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/kafkax"
	"github.com/michalsegal11/your-digital-companion/libs/migrations"
	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
	"github.com/michalsegal11/your-digital-companion/libs/outbox"
	"github.com/michalsegal11/your-digital-companion/libs/runtime"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/booking"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/handlers"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/metrics"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/scheduling"
	"github.com/michalsegal11/your-digital-companion/services/booking-service/internal/storage"
)

// newProvider picks the salon configuration source: a YAML file, business-service over HTTP,
// or the built-in defaults. Remote sources are cached in redis when REDIS_ADDR is set.
func newProvider(logger *slog.Logger) (scheduling.Provider, func(), error) {
	closeFn := func() {}

	var provider scheduling.Provider
	switch {
	case config.String("SALON_CONFIG_FILE", "") != "":
		snap, err := salonconfig.LoadFile(config.String("SALON_CONFIG_FILE", ""))
		if err != nil {
			return nil, closeFn, err
		}
		provider = scheduling.NewStaticProvider(snap)
	case config.String("BUSINESS_URL", "") != "":
		provider = scheduling.NewHTTPProvider(config.String("BUSINESS_URL", ""), nil)
		if addr := config.String("REDIS_ADDR", ""); addr != "" {
			ttl, err := config.Seconds("SALON_CONFIG_CACHE_TTL_SECONDS", 30*time.Second)
			if err != nil {
				return nil, closeFn, err
			}
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			closeFn = func() { _ = rdb.Close() }
			provider = scheduling.NewCachedProvider(provider, rdb, ttl, logger)
		}
	default:
		logger.Warn("no salon config source configured; using defaults")
		provider = scheduling.NewStaticProvider(salonconfig.DefaultSnapshot())
	}

	hours, err := config.Int("CANCELLATION_DEADLINE_HOURS", 0)
	if err != nil {
		return nil, closeFn, err
	}
	return scheduling.WithDeadlineHours(provider, hours), closeFn, nil
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.OpenWithOptions(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("DB_MIGRATE", false) {
		applied, err := migrations.Apply(ctx, pool, "booking")
		if err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}
		logger.Info("db migrations applied", "versions", applied)
	}

	provider, closeProvider, err := newProvider(logger)
	if err != nil {
		logger.Error("salon config provider init failed", "err", err)
		panic(err)
	}
	defer closeProvider()

	brokers := config.String("KAFKA_BROKERS", "")
	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	planner := booking.NewPlanner(provider, repo, time.Now)
	bookingHandler := handlers.NewBookingHandler(repo, outboxRepo, planner, logger, bookingMetrics)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	bookingHandler.Routes(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(10*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if grpcPort := config.String("GRPC_PORT", ""); grpcPort != "" {
		grpcSrv := grpcx.NewServer()
		go func() {
			if err := grpcSrv.Serve(ctx, logger, ":"+grpcPort); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
