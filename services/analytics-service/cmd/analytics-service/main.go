package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/michalsegal11/your-digital-companion/libs/config"
	"github.com/michalsegal11/your-digital-companion/libs/db"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	"github.com/michalsegal11/your-digital-companion/libs/kafkax"
	"github.com/michalsegal11/your-digital-companion/libs/migrations"
	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
	"github.com/michalsegal11/your-digital-companion/libs/runtime"
	"github.com/michalsegal11/your-digital-companion/libs/salonconfig"
	"github.com/michalsegal11/your-digital-companion/services/analytics-service/internal/consumer"
	"github.com/michalsegal11/your-digital-companion/services/analytics-service/internal/handlers"
	"github.com/michalsegal11/your-digital-companion/services/analytics-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "analytics-service")
	port, err := config.Port("PORT", "8086")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("DB_MIGRATE", false) {
		applied, err := migrations.Apply(ctx, pool, "analytics")
		if err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}
		logger.Info("db migrations applied", "versions", applied)
	}

	loc, err := time.LoadLocation(config.String("SALON_TIMEZONE", salonconfig.DefaultTimezone))
	if err != nil {
		panic(err)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "analytics-service")
	repo := storage.NewRepository(pool)
	handle := consumer.Handler(logger, repo)
	for _, topic := range consumer.Topics {
		// booking_events de-duplicates inside the metrics transaction, so no inbox here.
		c := kafkax.NewConsumer(logger, nil, kafkax.ConsumerConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handle)
		go c.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handlers.New(repo, loc, logger).Routes(mux)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "analytics")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
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
