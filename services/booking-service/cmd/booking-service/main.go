package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminder"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9083")
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

	brokers := config.String("KAFKA_BROKERS", "")
	be, err := openBackend(ctx, logger, config.String("STORE_DRIVER", "postgres"))
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer be.close()
	for _, run := range be.workers {
		go run(ctx)
	}

	checks := append([]runtime.ReadyCheck{}, be.checks...)
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		eventConsumer := consumer.New(logger, be.inbox, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   config.String("KAFKA_ENTITLEMENTS_TOPIC", consumer.EntitlementsTopic),
		}, consumer.EntitlementsHandler(be.store, logger))
		go eventConsumer.Run(ctx)
	}
	if addr := config.String("BILLING_GRPC_ADDR", ""); addr != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "billing", Check: grpcx.HealthReadyCheck(addr, "")})
	}

	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	checker := limits.NewChecker(be.store, nil)
	coord := booking.NewCoordinator(be.store, booking.Options{
		Reminders: reminder.NewScheduler(be.reminders, reminder.Config{
			Lead: time.Duration(config.Int("REMINDER_LEAD_MINUTES", 1440)) * time.Minute,
		}),
		Limits:              checker,
		Observer:            bookingMetrics,
		Logger:              logger,
		RequireWorkingHours: config.Bool("REQUIRE_WORKING_HOURS", true),
	})

	publicLimit, limitCheck := publicRateLimit(logger)
	if limitCheck != nil {
		checks = append(checks, *limitCheck)
	}
	var jwksClient *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwksClient = auth.NewJWKSClient(url, config.Duration("JWKS_TTL", 5*time.Minute))
	}
	router := handlers.NewRouter(
		handlers.NewHandler(coord, be.store, checker, bookingMetrics, logger),
		handlers.RouterConfig{
			Auth:   auth.RequireAuth(config.String("JWT_SECRET", ""), jwksClient),
			Manage: auth.RequireRole(catalogRoles()...),
			Public: []func(http.Handler) http.Handler{publicLimit},
		},
	)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", router)
	mux.Handle("/metrics", promhttp.Handler())
	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store", be.driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	_ = runtime.Drain(logger, 10*time.Second,
		runtime.Stopper{Name: "grpc health", Stop: func(context.Context) error {
			healthServer.Shutdown()
			return nil
		}},
		runtime.Stopper{Name: "http server", Stop: srv.Shutdown},
		runtime.Stopper{Name: "grpc server", Stop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				grpcServer.Stop()
				return ctx.Err()
			}
		}},
	)
}

// publicRateLimit limits the unauthenticated routes per client IP. With REDIS_ADDR
// set the counters are shared across replicas; otherwise they live in process.
func publicRateLimit(logger *slog.Logger) (httpx.Middleware, *runtime.ReadyCheck) {
	limit := config.Int("PUBLIC_RATE_LIMIT", 60)
	window := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	rl := httpx.NewRedisRateLimiter(rdb, limit, window, "salonbook:public")
	return rl.Middleware(logger, true), &runtime.ReadyCheck{Name: "redis", Check: rl.ReadyCheck}
}

// catalogRoles may change staff, services and schedules. Defaults to owner and manager.
func catalogRoles() []string {
	if roles := config.List("CATALOG_ROLES"); len(roles) > 0 {
		return roles
	}
	return []string{"owner", "manager"}
}
