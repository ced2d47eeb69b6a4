package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"commonwealth/internal/config"
	"commonwealth/internal/database"
	"commonwealth/internal/delivery"
	"commonwealth/internal/delivery/email"
	"commonwealth/internal/delivery/realtime"
	"commonwealth/internal/delivery/webhook"
	"commonwealth/internal/domain/address"
	"commonwealth/internal/domain/integration"
	"commonwealth/internal/domain/notification"
	"commonwealth/internal/domain/subscription"
	"commonwealth/internal/jobs"
	"commonwealth/internal/logging"
	"commonwealth/internal/middleware"
	jwtsvc "commonwealth/internal/pkg/jwt"
	"commonwealth/internal/pkg/lock"
	"commonwealth/internal/pkg/metrics"
	"commonwealth/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	redisClient, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, db, lock.New(redisClient, "commonwealth:"), reg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.scheduler.Start()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	a.scheduler.Stop(shutdownCtx)
	a.engine.Wait()
	return nil
}

type app struct {
	router    *gin.Engine
	engine    *notification.Engine
	email     *email.Dispatcher
	hub       *realtime.Hub
	scheduler *jobs.DigestScheduler
}

func newApp(cfg *config.Config, db *gorm.DB, locks *lock.Service, reg *prometheus.Registry, logger *slog.Logger) (*app, error) {
	rec := metrics.New(reg)

	userRepo := repository.NewUserRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	communities := delivery.NewCommunities(communityRepo)
	tokens := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)

	mailer := email.NewPostmarkMailer(cfg.PostmarkToken,
		email.WithBaseURL(cfg.PostmarkBaseURL),
		email.WithLogger(logger),
	)
	emailDispatcher := email.NewDispatcher(
		email.Config{
			From:           cfg.EmailFrom,
			ServerURL:      cfg.ServerURL,
			DigestPageSize: cfg.DigestPageSize,
		},
		email.Deps{
			Mailer:      mailer,
			Users:       userRepo,
			Authors:     addressRepo,
			Communities: communities,
			Digests:     notificationRepo,
			Locker:      locks,
			Metrics:     rec,
			Logger:      logger,
		},
	)
	webhookDispatcher := webhook.NewDispatcher(
		webhook.Config{
			Production:       cfg.IsProduction(),
			FeedbackURL:      cfg.FeedbackWebhookURL,
			DefaultLogoURL:   cfg.DefaultLogoURL,
			ServerURL:        cfg.ServerURL,
			TelegramBotToken: cfg.TelegramBotToken,
			Timeout:          cfg.WebhookTimeout,
		},
		webhook.Deps{
			Webhooks:    webhookRepo,
			Communities: communities,
			Authors:     addressRepo,
			Metrics:     rec,
			Logger:      logger,
		},
	)
	hub := realtime.NewHub(logger)

	engine := notification.NewEngine(
		db,
		notification.NewStore(db, rec),
		address.NewResolver(addressRepo),
		notification.Dispatchers{
			Email:    emailDispatcher,
			Webhooks: webhookDispatcher,
			Realtime: hub,
		},
		rec,
		logger,
		notification.EngineConfig{MaxConcurrentDeliveries: cfg.DeliveryQueueSize},
	)

	scheduler, err := jobs.NewDigestScheduler(emailDispatcher, jobs.Schedule{
		Daily:  cfg.DigestDailySpec,
		Weekly: cfg.DigestWeeklySpec,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorLogger(logger), middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	realtime.RegisterRoutes(r, realtime.NewHandler(hub, tokens, cfg.CORSAllowedOrigins))

	v1 := r.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(tokens))
	{
		notification.RegisterRoutes(protected, notification.NewHandler(
			notification.NewService(notification.NewReadRepository(db)),
		))
		subscription.RegisterRoutes(protected, subscription.NewHandler(
			subscription.NewService(subscription.NewRepository(db), userRepo),
		))

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		integration.RegisterAdminRoutes(admin, integration.NewHandler(
			integration.NewService(webhookRepo, communityRepo),
		))
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalTokenAuth(cfg.InternalToken, logger))
	{
		notification.RegisterInternalRoutes(internal, notification.NewInternalHandler(engine))
		jobs.RegisterInternalRoutes(internal, jobs.NewDigestHandler(emailDispatcher))
	}

	return &app{
		router:    r,
		engine:    engine,
		email:     emailDispatcher,
		hub:       hub,
		scheduler: scheduler,
	}, nil
}
