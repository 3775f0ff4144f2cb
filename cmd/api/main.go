package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formgate/leadcapture/cmd/mainconfig"
	"github.com/formgate/leadcapture/internal/api/router"
	"github.com/formgate/leadcapture/internal/app/bootstrap"
	appconfig "github.com/formgate/leadcapture/internal/config"
	"github.com/formgate/leadcapture/internal/leads"
	"github.com/formgate/leadcapture/internal/observability/metrics"
	"github.com/formgate/leadcapture/internal/ratelimit"
	"github.com/formgate/leadcapture/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadcapture API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Initialize storage and services
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	leadMetrics := metrics.NewLeadMetrics(nil)
	store := leads.NewStore(dynamoClient, cfg.LeadsTable, logger, leadMetrics)
	limiter := ratelimit.New(dynamoClient, cfg.RateLimitTable, cfg.RateLimitMaxPerHour, cfg.RateLimitFailOpen, logger)
	notifier := bootstrap.BuildNotifier(awsCfg, cfg, logger)
	archiver := bootstrap.BuildArchiver(awsCfg, cfg, logger)

	service := leads.NewSubmissionService(store, limiter, notifier, cfg.MaxCustomFields, logger, leadMetrics)

	// Initialize handlers
	leadsHandler := leads.NewHandler(service, store, logger, leadMetrics)
	adminHandler := leads.NewAdminHandler(store, archiver, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:         logger,
		LeadsHandler:   leadsHandler,
		AdminHandler:   adminHandler,
		MetricsHandler: promhttp.Handler(),
		APIKey:         cfg.APIKey,
		AdminJWTSecret: cfg.AdminJWTSecret,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
