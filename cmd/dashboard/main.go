// Command dashboard serves the web dashboard in front of the expense API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/client"
	"expenses/internal/dashboard"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentDashboard)
	cfg := cli.LoadAndValidateConfig(logger)

	api, err := client.New(client.Config{
		BaseURL:       cfg.APIURL,
		ReadTimeout:   cfg.APIReadTimeout,
		CreateTimeout: cfg.APICreateTimeout,
		Logger:        logger,
	})
	if err != nil {
		log.NewStructuredLogger(logger).LogError(context.Background(), "Invalid API client settings", err,
			log.ErrorTypeConfiguration, log.OpStartup, nil)
		os.Exit(1)
	}

	srv, err := dashboard.NewServer(":"+cfg.DashboardPort, api, dashboard.Options{
		Logger:         logger,
		Metrics:        metrics.New(nil),
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		log.NewStructuredLogger(logger).LogError(context.Background(), "Failed to configure dashboard", err,
			log.ErrorTypeConfiguration, log.OpStartup, nil)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.Register(srv.ChartCache())
	caches.StartCleanup(5 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, cli.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Dashboard shutdown error", log.FieldError, err)
		}
		caches.Stop()
		caches.Wait()
	})

	logger.Info("Starting dashboard", "port", cfg.DashboardPort, "api_url", cfg.APIURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Dashboard server error", log.FieldError, err, "port", cfg.DashboardPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Dashboard stopped gracefully")
}
