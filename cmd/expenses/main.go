// Command expenses runs the record store API.
//
//	expenses [serve]   migrate the database, then serve
//	expenses migrate   apply pending migrations and exit
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/security"
	"expenses/internal/services"
	"expenses/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		serve(cfg, logger)
	case "migrate":
		migrate(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: expenses [serve|migrate]\n", command)
		os.Exit(2)
	}
}

func migrate(cfg *config.Config, logger *log.Logger) {
	start := time.Now()
	if err := storage.RunMigrations(cfg.StorageConfig()); err != nil {
		log.NewStructuredLogger(logger).LogError(context.Background(), "Migration failed", err,
			log.ErrorTypeDatabase, log.OpMigrate, nil)
		os.Exit(1)
	}
	logger.Info("Database migrations applied",
		"driver", cfg.DBDriver,
		log.FieldDuration, time.Since(start).Milliseconds())
}

func serve(cfg *config.Config, logger *log.Logger) {
	repo, err := cli.OpenStore(context.Background(), logger, cfg.StorageConfig())
	if err != nil {
		log.NewStructuredLogger(logger).LogError(context.Background(), "Failed to initialize storage", err,
			log.ErrorTypeDatabase, log.OpStartup, nil)
		os.Exit(1)
	}

	m := metrics.New(nil)
	opts := []services.Option{services.WithLogger(logger), services.WithMetrics(m)}

	if cfg.AMQPEnabled() {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			log.NewStructuredLogger(logger).LogError(context.Background(), "Failed to initialize AMQP client", err,
				log.ErrorTypeNetwork, log.OpStartup, nil)
			_ = repo.Close()
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(repo, opts...)

	srv, err := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxBodyBytes:       security.MaxBodyBytes,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		log.NewStructuredLogger(logger).LogError(context.Background(), "Failed to configure server", err,
			log.ErrorTypeConfiguration, log.OpStartup, nil)
		_ = svc.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Service close error", log.FieldError, err)
		}
	})

	logger.Info("Starting expense API", "port", cfg.Port, "driver", cfg.DBDriver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = svc.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
