package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"commonwealth/internal/config"
	"commonwealth/internal/database"
	"commonwealth/internal/delivery"
	"commonwealth/internal/delivery/email"
	"commonwealth/internal/domain"
	"commonwealth/internal/logging"
	"commonwealth/internal/pkg/lock"
	"commonwealth/internal/repository"
)

// digest sends one round of digest emails and exits. Runs that overlap with
// the API's scheduler are skipped through the shared Redis lock.
func main() {
	interval := flag.String("interval", string(domain.IntervalDaily), "digest interval: daily or weekly")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	addresses := repository.NewAddressRepository(db)
	dispatcher := email.NewDispatcher(
		email.Config{
			From:           cfg.EmailFrom,
			ServerURL:      cfg.ServerURL,
			DigestPageSize: cfg.DigestPageSize,
		},
		email.Deps{
			Mailer: email.NewPostmarkMailer(cfg.PostmarkToken,
				email.WithBaseURL(cfg.PostmarkBaseURL),
				email.WithLogger(logger),
			),
			Users:       repository.NewUserRepository(db),
			Authors:     addresses,
			Communities: delivery.NewCommunities(repository.NewCommunityRepository(db)),
			Digests:     repository.NewNotificationRepository(db),
			Locker:      lock.New(redisClient, "commonwealth:"),
			Logger:      logger,
		},
	)

	report, err := dispatcher.DispatchDigest(ctx, domain.EmailInterval(*interval))
	if err != nil {
		logger.Error("digest failed", "interval", *interval, "error", err)
		os.Exit(1)
	}
	logger.Info("digest completed",
		"interval", *interval,
		"skipped", report.Skipped,
		"users", report.UsersScanned,
		"sent", report.EmailsSent,
		"failed", report.Failed,
	)
}
