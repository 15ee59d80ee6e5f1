package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aurasync/timehold/libs/config"
	"github.com/aurasync/timehold/libs/db"
	"github.com/aurasync/timehold/libs/httpx"
	"github.com/aurasync/timehold/libs/kafkax"
	otelx "github.com/aurasync/timehold/libs/otel"
	"github.com/aurasync/timehold/libs/runtime"
	"github.com/aurasync/timehold/services/notification-service/internal/consumer"
	"github.com/aurasync/timehold/services/notification-service/internal/email"
	"github.com/aurasync/timehold/services/notification-service/internal/inbox"
	"github.com/aurasync/timehold/services/notification-service/internal/notifier"
	"github.com/aurasync/timehold/services/notification-service/internal/outbox"
	"github.com/aurasync/timehold/services/notification-service/internal/storage"
	"github.com/aurasync/timehold/services/notification-service/internal/telegram"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8082")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@timehold.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	var tgSender telegram.Sender
	if token := strings.TrimSpace(config.String("TELEGRAM_BOT_TOKEN", "")); token != "" {
		tgSender = telegram.NewBotSender(token)
	} else {
		tgSender = telegram.NewNoopSender()
		logger.Warn("TELEGRAM_BOT_TOKEN missing; telegram pushes disabled")
	}

	n := notifier.New(
		notificationsRepo,
		notificationsRepo,
		emailSender,
		tgSender,
		outbox.NewRecorder(pool, outboxRepo),
		logger,
	)

	topics := []string{
		notifier.EventBookingCreated,
		notifier.EventBookingCompleted,
		notifier.EventBookingNoShow,
		notifier.EventBookingCancelled,
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  topics,
	}, func(ctx context.Context, msg kafka.Message) error {
		return n.Handle(ctx, msg.Topic, msg.Value)
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
