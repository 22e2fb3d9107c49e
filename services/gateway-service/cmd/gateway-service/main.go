package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/barbershop/libs/config"
	"github.com/md-rashed-zaman/barbershop/libs/grpcx"
	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
	"github.com/md-rashed-zaman/barbershop/libs/runtime"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "gateway-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("gateway failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8080")
	if err != nil {
		return err
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		return err
	}
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return err
	}
	submitPerMinute, err := config.Int("BOOKING_SUBMIT_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return err
	}
	failOpen, err := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		return err
	}
	allowCredentials, err := config.Bool("CORS_ALLOW_CREDENTIALS", false)
	if err != nil {
		return err
	}
	corsMaxAge, err := config.Duration("CORS_MAX_AGE", 10*time.Minute)
	if err != nil {
		return err
	}

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

	var up upstreams
	if up.Auth, err = newProxy(config.String("AUTH_URL", "http://auth-service:8081")); err != nil {
		return err
	}
	if up.Catalog, err = newProxy(config.String("CATALOG_URL", "http://catalog-service:8082")); err != nil {
		return err
	}
	if up.Booking, err = newProxy(config.String("BOOKING_URL", "http://booking-service:8083")); err != nil {
		return err
	}

	var checks []runtime.ReadyCheck
	if addr := config.String("BOOKING_GRPC_ADDR", "booking-service:9093"); addr != "" {
		conn, err := grpcx.Dial(addr, grpcx.DialOptions{})
		if err != nil {
			return err
		}
		defer conn.Close()
		checks = append(checks, runtime.ReadyCheck{Name: "booking", Check: grpcx.HealthCheck(conn, "booking-service")})
	}

	var general, submit httpx.Limiter
	general = httpx.NewRateLimiter(limitPerMinute, time.Minute)
	submit = httpx.NewRateLimiter(submitPerMinute, time.Minute)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		prefix := config.String("RATE_LIMIT_PREFIX", "rl")
		general = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, prefix)
		submit = httpx.NewRedisRateLimiter(rdb, submitPerMinute, time.Minute, prefix+":submit")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, up, jwtSecret, httpx.RateLimit(submit, "submit", logger, failOpen))

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", "Idempotency-Key"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
			AllowCredentials: allowCredentials,
			MaxAge:           corsMaxAge,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(bodyLimit)),
		httpx.WithTimeout(requestTimeout),
		httpx.RateLimit(general, "gateway", logger, failOpen),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	return nil
}
