// Command expense-worker mirrors expense.created events into a Google Sheet.
// Without GOOGLE_SPREADSHEET_ID the rows are only kept in memory.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/log"
	"expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	"expenses/internal/sheets/memory"
	"expenses/internal/worker"
)

const (
	cacheSweepInterval = 10 * time.Minute
	memoryRows         = 1000
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	sl := log.NewStructuredLogger(logger)

	if !cfg.AMQPEnabled() {
		logger.Error("The worker needs AMQP_URL to consume expense.created events")
		os.Exit(1)
	}

	var appender sheets.ExpenseAppender
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			sl.LogError(context.Background(), "Failed to initialize Google Sheets client", err,
				log.ErrorTypeConfiguration, log.OpStartup, nil)
			os.Exit(1)
		}
		appender = client
	} else {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirrored rows are kept in memory only")
		appender = memory.New(memoryRows)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		sl.LogError(context.Background(), "Failed to initialize AMQP client", err,
			log.ErrorTypeNetwork, log.OpStartup, nil)
		os.Exit(1)
	}

	mirror := worker.NewSheetsMirror(appender, worker.MirrorConfig{}, nil, logger)

	caches := cache.NewManager(logger)
	caches.Register(mirror.Seen())

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(context.Context) {
		if err := consumer.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	logger.Info("Starting expense-worker",
		"queue", cfg.AMQPQueue,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.ConsumeExpenseCreated(gctx, mirror.HandleExpenseCreated)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		caches.StartCleanup(cacheSweepInterval)
		<-gctx.Done()
		caches.Stop()
		caches.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		sl.LogError(context.Background(), "Message consumption failed", err,
			log.ErrorTypeNetwork, log.OpConsume, nil)
		_ = consumer.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
