package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/consumer"
	"github.com/garagedesk/garagedesk/internal/customer"
	"github.com/garagedesk/garagedesk/internal/handlers"
	"github.com/garagedesk/garagedesk/internal/inbox"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/notify"
	"github.com/garagedesk/garagedesk/internal/outbox"
	"github.com/garagedesk/garagedesk/internal/phone"
	"github.com/garagedesk/garagedesk/internal/reminder"
	"github.com/garagedesk/garagedesk/internal/sms"
	"github.com/garagedesk/garagedesk/internal/storage"
	"github.com/garagedesk/garagedesk/libs/auth"
	"github.com/garagedesk/garagedesk/libs/config"
	"github.com/garagedesk/garagedesk/libs/db"
	"github.com/garagedesk/garagedesk/libs/httpx"
	"github.com/garagedesk/garagedesk/libs/kafkax"
	otelx "github.com/garagedesk/garagedesk/libs/otel"
	"github.com/garagedesk/garagedesk/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "garagedesk")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 10)))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	customerRepo := storage.NewCustomerRepository(pool)
	staffRepo := storage.NewStaffRepository(pool)
	serviceRepo := storage.NewServiceRepository(pool)
	notificationRepo := storage.NewNotificationRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	reminderRepo := reminder.NewRepository()

	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	reminderQueue := reminder.NewQueue(reminderRepo, offsets)
	scheduler := notify.NewScheduler(outboxRepo, logger)

	bookingSvc := booking.NewService(apptRepo, customerRepo, staffRepo, serviceRepo, scheduler, reminderQueue, logger)

	normalizer := phone.NewNormalizer(config.String("GARAGE_COUNTRY", "FR"))
	resolver := customer.NewResolver(customerRepo, normalizer, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	reminderWorker := reminder.NewWorker(pool, reminderRepo, outboxRepo, logger, reminder.WorkerConfig{
		Interval:  time.Duration(config.Int("REMINDER_POLL_SECONDS", 15)) * time.Second,
		BatchSize: 50,
		Backoff:   time.Duration(config.Int("REMINDER_RETRY_BACKOFF_SECONDS", 60)) * time.Second,
	})
	go reminderWorker.Run(ctx)

	garageTZ := config.String("GARAGE_TZ", "Europe/Paris")
	garageLoc, err := time.LoadLocation(garageTZ)
	if err != nil {
		logger.Warn("invalid GARAGE_TZ, using UTC", "tz", garageTZ, "err", err)
		garageLoc = time.UTC
	}
	renderer := notify.NewRenderer(
		config.String("GARAGE_NAME", "GarageDesk"),
		garageTZ,
		config.String("GARAGE_LOCALE", "fr"),
	)
	var sender sms.Sender
	if url := strings.TrimSpace(config.String("SMS_WEBHOOK_URL", "")); url != "" {
		sender = sms.NewWebhookSender(url, config.String("SMS_WEBHOOK_TOKEN", ""))
	} else {
		logger.Warn("no sms provider configured, using noop sender")
		sender = sms.NewNoopSender()
	}
	dispatcher := notify.NewDispatcher(renderer, sender, notificationRepo, logger)

	inboxRepo := inbox.NewRepository(pool)
	if strings.TrimSpace(brokers) != "" {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "garagedesk"),
			Topic:   outbox.EventNotificationRequested,
		}, dispatcher.Handle)
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("notification consumer disabled (no kafka brokers configured)")
	}

	bookingHandler := handlers.NewBookingHandler(bookingSvc, resolver, logger, garageLoc)
	customerHandler := handlers.NewCustomerHandler(customerRepo, logger)
	staffHandler := handlers.NewStaffHandler(staffRepo, logger)
	serviceHandler := handlers.NewServiceHandler(serviceRepo, logger)

	jwtSecret := config.String("JWT_SECRET", "dev-secret")

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	publicLimit := publicRateLimiter(logger)
	mux.Handle("/api/v1/public/book", publicLimit(http.HandlerFunc(bookingHandler.PublicBook)))
	mux.Handle("/api/v1/public/services", publicLimit(http.HandlerFunc(serviceHandler.List)))
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(bookingHandler.Slots)))

	staffOnly := func(h http.HandlerFunc) http.Handler {
		return requireAuth(requireRole(h, string(model.RoleStaff), string(model.RoleAdmin)), jwtSecret)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return requireAuth(requireRole(h, string(model.RoleAdmin)), jwtSecret)
	}

	mux.Handle("/api/v1/appointments", staffOnly(bookingHandler.Collection))
	mux.Handle("/api/v1/appointments/get", staffOnly(bookingHandler.Get))
	mux.Handle("/api/v1/appointments/confirm", staffOnly(bookingHandler.Confirm))
	mux.Handle("/api/v1/appointments/reschedule", staffOnly(bookingHandler.Reschedule))
	mux.Handle("/api/v1/appointments/cancel", staffOnly(bookingHandler.Cancel))
	mux.Handle("/api/v1/appointments/start", staffOnly(bookingHandler.Start))
	mux.Handle("/api/v1/appointments/complete", staffOnly(bookingHandler.Complete))
	mux.Handle("/api/v1/appointments/no-show", staffOnly(bookingHandler.NoShow))

	mux.Handle("/api/v1/staff", staffOnly(staffHandler.List))

	mux.Handle("/api/v1/customers", staffOnly(customerHandler.List))
	mux.Handle("/api/v1/customers/deactivate", adminOnly(customerHandler.Deactivate))
	mux.Handle("/api/v1/customers/reactivate", adminOnly(customerHandler.Reactivate))

	mux.Handle("/api/v1/services", staffOnly(serviceHandler.List))
	mux.Handle("/api/v1/services/create", adminOnly(serviceHandler.Create))
	mux.Handle("/api/v1/services/update", adminOnly(serviceHandler.Update))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.String("CORS_ALLOW_CREDENTIALS", "false") == "true",
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("HTTP_TIMEOUT_SECONDS", 15))*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "garagedesk")
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

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
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

// publicRateLimiter throttles the unauthenticated booking surface. With a
// Redis address configured the limit is shared across replicas.
func publicRateLimiter(logger *slog.Logger) httpx.Middleware {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}

	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
		return rl.Middleware(logger, true)
	}

	rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return rl.Middleware()
}

func requireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Del("X-User-Id")
		r.Header.Del("X-Role")
		r.Header.Set("X-User-Id", claims.Sub)
		r.Header.Set("X-Role", claims.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role")
		if _, ok := allowed[role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
