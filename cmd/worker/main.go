package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"solicitudes/internal/config"
	"solicitudes/internal/database"
	"solicitudes/internal/repository"
	"solicitudes/internal/worker"

	"go.uber.org/zap"
)

// The worker binary runs the email delivery loop: it claims due jobs from
// the queue, sends mail and records per-notification outcomes. Several
// instances can run side by side; job claiming uses row locks so a job is
// processed once.
func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Development)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to postgresql")

	var sender worker.Sender
	if cfg.SMTP.Host == "" || cfg.Development {
		sender = worker.NewLogMailer(logger)
		logger.Info("using log mail transport")
	} else {
		sender = worker.NewSMTPMailer(cfg.SMTP, logger)
	}

	w := worker.New(
		repository.NewEmailJobRepository(db),
		repository.NewRequestRepository(db),
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		sender,
		cfg.Worker,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
