package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/barbershop/libs/config"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
	"github.com/md-rashed-zaman/barbershop/libs/runtime"
	"github.com/md-rashed-zaman/barbershop/services/auth-service/internal/handlers"
	"github.com/md-rashed-zaman/barbershop/services/auth-service/internal/sessions"
	"github.com/md-rashed-zaman/barbershop/services/auth-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "auth-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("auth-service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8081")
	if err != nil {
		return err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	secret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		return err
	}
	accessTTL, err := config.Duration("ACCESS_TOKEN_TTL", time.Hour)
	if err != nil {
		return err
	}
	refreshTTL, err := config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return err
	}
	loginLimit, err := config.Int("LOGIN_RATE_LIMIT_PER_MIN", 10)
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := storage.NewUserRepository(pool)
	refreshRepo := sessions.NewRefreshRepository(pool)
	if err := handlers.EnsureAdmin(ctx, userRepo, config.String("ADMIN_EMAIL", ""), os.Getenv("ADMIN_PASSWORD"), logger); err != nil {
		return err
	}

	scheduler := cron.New()
	pruner := sessions.NewPruner(refreshRepo, 7*24*time.Hour, logger)
	if _, err := pruner.Schedule(ctx, scheduler, config.String("REFRESH_PRUNE_SCHEDULE", "@hourly")); err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	var limiter httpx.Limiter = httpx.NewRateLimiter(loginLimit, time.Minute)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		limiter = httpx.NewRedisRateLimiter(rdb, loginLimit, time.Minute, "auth:login")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	authHandler := handlers.NewAuthHandler(userRepo, refreshRepo, handlers.Config{
		Secret:     secret,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}, logger)
	authHandler.Routes(mux, httpx.RateLimit(limiter, "login", logger, false))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(8<<10),
	)
	handler = otelhttp.NewHandler(handler, "auth")
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
