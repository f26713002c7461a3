package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/michalsegal11/your-digital-companion/libs/config"
	"github.com/michalsegal11/your-digital-companion/libs/grpcx"
	"github.com/michalsegal11/your-digital-companion/libs/httpx"
	otelx "github.com/michalsegal11/your-digital-companion/libs/otel"
	"github.com/michalsegal11/your-digital-companion/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	var checks []runtime.ReadyCheck
	if addr := strings.TrimSpace(config.String("BOOKING_GRPC_ADDR", "")); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{UserAgent: "salon-gateway"})
		if err != nil {
			logger.Error("booking grpc dial failed", "err", err, "addr", addr)
			return
		}
		defer func() { _ = conn.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthReadyCheck(conn, "")})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, upstreamsFromEnv(), otelhttp.NewTransport(http.DefaultTransport))

	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil || bodyLimit <= 0 {
		bodyLimit = 1 << 20
	}
	requestTimeout, err := config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil || requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil || limitPerMinute <= 0 {
		limitPerMinute = 60
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil || redisDB < 0 {
			redisDB = 0
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(corsPolicyFromEnv()),
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
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

func corsPolicyFromEnv() httpx.CORSPolicy {
	policy := httpx.DefaultCORSPolicy(config.List("CORS_ALLOWED_ORIGINS"))
	if methods := config.List("CORS_ALLOWED_METHODS"); len(methods) > 0 {
		policy.AllowedMethods = methods
	}
	if headers := config.List("CORS_ALLOWED_HEADERS"); len(headers) > 0 {
		policy.AllowedHeaders = headers
	}
	policy.AllowCredentials = config.Bool("CORS_ALLOW_CREDENTIALS", false)
	if maxAge, err := config.Seconds("CORS_MAX_AGE_SECONDS", policy.MaxAge); err == nil && maxAge > 0 {
		policy.MaxAge = maxAge
	}
	return policy
}
