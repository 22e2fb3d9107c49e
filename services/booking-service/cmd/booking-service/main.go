package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/barbershop/libs/config"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/grpcx"
	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/libs/kafkax"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
	"github.com/md-rashed-zaman/barbershop/libs/runtime"
	"github.com/md-rashed-zaman/barbershop/libs/whatsapp"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/barbershop/services/booking-service/internal/storage"
)

type settings struct {
	port         string
	grpcPort     string
	databaseURL  string
	brokers      string
	shop         availability.Config
	location     *time.Location
	storeTimeout time.Duration
	countryCode  string
	publicLimit  int
}

func loadSettings() (settings, error) {
	var (
		s   settings
		err error
	)
	if s.port, err = config.Port("PORT", "8083"); err != nil {
		return s, err
	}
	if s.grpcPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		return s, err
	}
	if s.databaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}
	s.brokers = config.String("KAFKA_BROKERS", "")

	def := availability.DefaultConfig()
	if s.shop.OpenHour, err = config.Int("SHOP_OPEN_HOUR", def.OpenHour); err != nil {
		return s, err
	}
	if s.shop.CloseHour, err = config.Int("SHOP_CLOSE_HOUR", def.CloseHour); err != nil {
		return s, err
	}
	if s.shop.IntervalMinutes, err = config.Int("SHOP_SLOT_MINUTES", def.IntervalMinutes); err != nil {
		return s, err
	}
	if err = s.shop.Validate(); err != nil {
		return s, err
	}
	if s.location, err = time.LoadLocation(config.String("SHOP_TIMEZONE", "America/Sao_Paulo")); err != nil {
		return s, err
	}
	if s.storeTimeout, err = config.Duration("STORE_TIMEOUT", 3*time.Second); err != nil {
		return s, err
	}
	s.countryCode = config.String("PHONE_COUNTRY_CODE", whatsapp.DefaultCountryCode)
	if s.publicLimit, err = config.Int("PUBLIC_RATE_LIMIT_PER_MIN", 60); err != nil {
		return s, err
	}
	return s, nil
}

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "booking-service")
	logger := runtime.NewLogger(service)

	cfg, err := loadSettings()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
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

	pool, err := db.Open(ctx, cfg.databaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository()
	svc, err := booking.NewService(repo, outboxRepo, booking.Options{
		Config:       cfg.shop,
		Location:     cfg.location,
		StoreTimeout: cfg.storeTimeout,
		CountryCode:  cfg.countryCode,
		Metrics:      bookingMetrics,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("invalid booking configuration", "err", err)
		os.Exit(1)
	}

	var writer outbox.MessageWriter
	if cfg.brokers != "" {
		kw := kafkax.NewWriter(cfg.brokers)
		defer kw.Close()
		writer = kw
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	grpcServer, health := grpcx.NewServer(service)
	grpcLis, err := net.Listen("tcp", ":"+cfg.grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc server starting", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	api := http.NewServeMux()
	handlers.Routes(api, handlers.NewPublicHandler(svc, logger), handlers.NewAdminHandler(svc, logger))
	submitLimit := httpx.RateLimit(httpx.NewRateLimiter(cfg.publicLimit, time.Minute), "booking", logger, true)
	mux.Handle("/api/v1/", limitBookingSubmissions(api, submitLimit))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(64<<10),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "open_hour", cfg.shop.OpenHour,
			"close_hour", cfg.shop.CloseHour, "slot_minutes", cfg.shop.IntervalMinutes, "timezone", cfg.location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()
	grpcx.SetServing(health, service, true)

	<-ctx.Done()
	grpcx.SetServing(health, service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	logger.Info("servers stopped")
}

// limitBookingSubmissions rate limits POST /api/v1/public/bookings only.
func limitBookingSubmissions(next http.Handler, limit httpx.Middleware) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/public/bookings" {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

