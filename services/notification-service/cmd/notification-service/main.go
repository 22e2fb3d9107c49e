package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/barbershop/libs/config"
	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/events"
	"github.com/md-rashed-zaman/barbershop/libs/httpx"
	"github.com/md-rashed-zaman/barbershop/libs/kafkax"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
	"github.com/md-rashed-zaman/barbershop/libs/runtime"
	"github.com/md-rashed-zaman/barbershop/libs/whatsapp"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/consumer"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/dispatch"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/inbox"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/messaging"
	"github.com/md-rashed-zaman/barbershop/services/notification-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "notification-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("notification-service failed", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8085")
	if err != nil {
		return err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	brokers := config.String("KAFKA_BROKERS", "")
	attempts, err := config.Int("CONSUMER_MAX_ATTEMPTS", 3)
	if err != nil {
		return err
	}
	backoff, err := config.Duration("CONSUMER_BACKOFF", time.Second)
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

	waSender, err := whatsAppSender(logger)
	if err != nil {
		return err
	}
	mailSender, err := emailSender()
	if err != nil {
		return err
	}

	processor := dispatch.NewProcessor(
		inbox.NewRepository(pool, service),
		storage.NewRepository(pool),
		waSender,
		mailSender,
		dispatch.Config{
			CountryCode: config.String("PHONE_COUNTRY_CODE", whatsapp.DefaultCountryCode),
			ShopName:    config.String("SHOP_NAME", "Barbearia"),
		},
		logger,
	)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		topics := []string{events.BookingCreated, events.BookingStatusChanged}
		reader := kafkax.NewReader(brokers, config.String("KAFKA_GROUP_ID", service), topics...)
		eventConsumer := consumer.New(reader, logger, consumer.Config{
			Attempts: attempts,
			Backoff:  backoff,
		}, processor.Handle)
		go eventConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers, topics...)})
	} else {
		logger.Warn("event consumer disabled (no kafka brokers configured)")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "whatsapp", waSender.Provider(), "email", mailSender.Provider())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
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

func whatsAppSender(logger *slog.Logger) (messaging.Sender, error) {
	sid := config.String("TWILIO_ACCOUNT_SID", "")
	token := config.String("TWILIO_AUTH_TOKEN", "")
	from := config.String("TWILIO_WHATSAPP_FROM", "")
	if sid == "" || token == "" || from == "" {
		logger.Warn("twilio not configured, whatsapp confirmations are logged only")
		return messaging.Noop{}, nil
	}
	return messaging.NewTwilioWhatsApp(messaging.TwilioConfig{AccountSID: sid, AuthToken: token, From: from})
}

func emailSender() (email.Sender, error) {
	if key := config.String("SENDGRID_API_KEY", ""); key != "" {
		return email.NewSendGridSender(email.SendGridConfig{
			APIKey:    key,
			FromEmail: config.String("SENDGRID_FROM_EMAIL", "no-reply@barbershop.local"),
			FromName:  config.String("SENDGRID_FROM_NAME", "Barbearia"),
		})
	}
	return email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "no-reply@barbershop.local"),
	), nil
}
