package main

import (
	"time"

	"finledger/internal/cli"
	"finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting recurring-worker")

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// Postings are announced over AMQP when a broker is configured.
	var publisher services.EventPublisher
	if amqpClient := cli.InitAMQP(logger, cfg); amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	processor := services.NewRecurringProcessor(sqliteRepo, publisher)
	recurringWorker := worker.NewRecurringWorker(processor)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	stopped := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		<-stopped
	})
	ctx = log.NewContext(ctx, logger)

	go func() {
		defer close(stopped)
		recurringWorker.Run(ctx, cfg.RecurringInterval)
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
