package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/db"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/cache"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/consumer"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/grpcserver"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/inbox"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/jobs"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/metrics"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/schedules"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/storage"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/validation"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = config.LoadDotenv()

	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9086")
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
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
		MaxConnIdleTime: config.Duration("DB_MAX_CONN_IDLE", 5*time.Minute),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	m := metrics.New()
	brokers := config.String("KAFKA_BROKERS", "")

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	// Redis is optional: without it the schedule cache always misses and rate
	// limiting falls back to the in-process limiter.
	var (
		rdb         *redis.Client
		cacheClient cache.Client
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer rdb.Close()
		cacheClient = rdb
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	}
	scheduleCache := cache.New(cacheClient, config.Duration("SCHEDULE_CACHE_TTL", 10*time.Minute))

	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool, outboxRepo)
	eventRepo := storage.NewEventRepository(pool, outboxRepo)
	bookingRepo := storage.NewBookingRepository(pool)

	validate := validation.New()
	session := schedules.NewSession(scheduleRepo, scheduleCache, validate, logger)
	eventService := events.NewService(eventRepo, validate)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		OnBatch: func(published int, err error) {
			m.ObserveOutboxBatch(published, err)
			if pending, err := outboxRepo.Pending(ctx); err == nil {
				m.SetOutboxPending(pending)
			}
		},
	})
	go outboxPublisher.Run(ctx)

	if brokers != "" {
		groupID := config.String("KAFKA_GROUP_ID", service)
		bookingTopics := config.List("KAFKA_BOOKING_TOPICS",
			consumer.TopicAppointmentBooked+","+consumer.TopicAppointmentCancelled)
		userDeletedTopic := config.String("KAFKA_USER_DELETED_TOPIC", consumer.TopicUserDeleted)

		routes := map[string]consumer.Handler{
			userDeletedTopic: consumer.UserDeletedHandler(bookingRepo, scheduleCache),
		}
		for _, topic := range bookingTopics {
			switch topic {
			case consumer.TopicAppointmentCancelled:
				routes[topic] = consumer.CancelledHandler(bookingRepo)
			default:
				routes[topic] = consumer.BookedHandler(bookingRepo)
			}
		}
		topics := make([]string, 0, len(routes))
		for topic := range routes {
			topics = append(topics, topic)
		}

		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers:   brokers,
			GroupID:   groupID,
			Topics:    topics,
			OnHandled: m.ObserveConsumed,
		}, consumer.Dispatch(routes))
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("kafka consumers disabled (no kafka brokers configured)")
	}

	days := func(key string, fallback int) time.Duration {
		return time.Duration(config.Int(key, fallback)) * 24 * time.Hour
	}
	retention := jobs.NewRetention(logger, jobs.RetentionConfig{
		Timeout:  time.Minute,
		OnPruned: m.ObservePruned,
	},
		jobs.Target{Name: "outbox_events", Keep: days("OUTBOX_RETENTION_DAYS", 7), Prune: outboxRepo.PrunePublished},
		jobs.Target{Name: "inbox_events", Keep: days("INBOX_RETENTION_DAYS", 14), Prune: inboxRepo.Prune},
		jobs.Target{Name: "bookings", Keep: days("BOOKING_RETENTION_DAYS", 30), Prune: bookingRepo.PruneBookings},
	)
	if err := retention.Start(ctx, config.String("RETENTION_CRON", "15 3 * * *")); err != nil {
		logger.Error("retention job not started", "err", err)
	}

	grpcSrv := grpcserver.New(logger, 10*time.Second, checks...)
	if err := grpcSrv.Start(ctx, grpcPort); err != nil {
		logger.Error("grpc server not started", "err", err)
	}

	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwks = auth.NewJWKSClient(url, config.Duration("JWKS_CACHE_SECONDS", 5*time.Minute))
	}
	var verifier identity.TokenVerifier
	if secret := config.String("JWT_SECRET", ""); secret != "" || jwks != nil {
		verifier = auth.NewVerifier(secret, jwks)
	} else {
		logger.Warn("token verification disabled (no JWT_SECRET or JWKS_URL configured)")
	}

	h := handlers.New(handlers.Deps{
		Schedules: session,
		Events:    eventService,
		Bookings:  bookingRepo,
		Metrics:   m,
		Logger:    logger,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", m.Handler())
	h.Register(mux)

	perMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	rateLimit := httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
	if rdb != nil {
		rateLimit = httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, service+":ratelimit").Middleware(logger, true)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		rateLimit,
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 15))*time.Second),
		identity.Middleware(verifier, identity.TrustGatewayHeaders()),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runtime.ServeHTTP(ctx, srv, logger, 10*time.Second)
}
