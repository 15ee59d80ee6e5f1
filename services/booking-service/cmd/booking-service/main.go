package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aurasync/timehold/libs/config"
	"github.com/aurasync/timehold/libs/db"
	"github.com/aurasync/timehold/libs/httpx"
	"github.com/aurasync/timehold/libs/kafkax"
	otelx "github.com/aurasync/timehold/libs/otel"
	"github.com/aurasync/timehold/libs/runtime"
	"github.com/aurasync/timehold/services/booking-service/internal/handlers"
	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/outbox"
	"github.com/aurasync/timehold/services/booking-service/internal/payments"
	"github.com/aurasync/timehold/services/booking-service/internal/reconcile"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8081")
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

	store := storage.New(pool)

	var holds lifecycle.HoldClient
	if key := strings.TrimSpace(config.String("STRIPE_SECRET_KEY", "")); key != "" {
		holds = payments.NewStripeHolds(key, logger)
		logger.Info("payment holds enabled (stripe)")
	} else {
		holds = payments.NewNoopHolds(logger)
		logger.Warn("STRIPE_SECRET_KEY missing; payment holds are mocked")
	}

	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	paymentTimeout := 10 * time.Second
	if v, err := strconv.Atoi(config.String("PAYMENT_TIMEOUT_SECONDS", "10")); err == nil && v > 0 {
		paymentTimeout = time.Duration(v) * time.Second
	}
	coord := lifecycle.NewCoordinator(store, holds, outbox.NewSink(pool, outboxRepo), logger, lifecycle.Config{
		PaymentTimeout: paymentTimeout,
	})

	reconcileInterval := time.Minute
	if v, err := strconv.Atoi(config.String("HOLD_RECONCILE_INTERVAL_SECONDS", "60")); err == nil && v > 0 {
		reconcileInterval = time.Duration(v) * time.Second
	}
	holdReconciler := reconcile.NewHoldReconciler(pool, store, holds, logger, reconcile.Config{
		BatchSize: 50,
	})
	go holdReconciler.Run(ctx, reconcileInterval)

	masterHandler := handlers.NewMasterHandler(store, logger)
	serviceHandler := handlers.NewServiceHandler(store, logger)
	clientHandler := handlers.NewClientHandler(store, logger)
	bookingHandler := handlers.NewBookingHandler(coord, store, store, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(store, logger)

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		limitPerMinute = v
	}
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("POST /api/v1/masters", masterHandler.Create)
	mux.HandleFunc("GET /api/v1/masters", masterHandler.List)
	mux.HandleFunc("GET /api/v1/masters/id/{id}", masterHandler.GetByID)
	mux.HandleFunc("GET /api/v1/masters/{slug}", masterHandler.GetBySlug)
	mux.HandleFunc("POST /api/v1/services", serviceHandler.Create)
	mux.HandleFunc("GET /api/v1/services", serviceHandler.List)
	mux.HandleFunc("GET /api/v1/services/{id}", serviceHandler.Get)
	mux.HandleFunc("PATCH /api/v1/services/{id}/active", serviceHandler.SetActive)
	mux.HandleFunc("POST /api/v1/clients", clientHandler.CreateOrGet)
	mux.HandleFunc("GET /api/v1/clients/{id}", clientHandler.GetByID)
	mux.HandleFunc("GET /api/v1/clients/email/{email}", clientHandler.GetByEmail)
	mux.HandleFunc("POST /api/v1/bookings", bookingHandler.Create)
	mux.HandleFunc("GET /api/v1/bookings", bookingHandler.List)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookingHandler.Get)
	mux.HandleFunc("GET /api/v1/bookings/{id}/ledger", bookingHandler.Ledger)
	mux.HandleFunc("POST /api/v1/bookings/{id}/complete", bookingHandler.Complete)
	mux.HandleFunc("POST /api/v1/bookings/{id}/no-show", bookingHandler.NoShow)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("GET /api/v1/analytics/master/{id}", analyticsHandler.Master)

	bodyLimit := int64(1 << 20) // 1MB
	if v, err := strconv.Atoi(config.String("REQUEST_BODY_LIMIT_BYTES", "1048576")); err == nil && v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 15 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "15")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key")),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
