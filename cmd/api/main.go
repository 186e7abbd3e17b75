package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dialogflow-bridge/cmd/mainconfig"
	"github.com/wolfman30/dialogflow-bridge/internal/api/router"
	"github.com/wolfman30/dialogflow-bridge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dialogflow-bridge/internal/config"
	"github.com/wolfman30/dialogflow-bridge/internal/gateway"
	"github.com/wolfman30/dialogflow-bridge/internal/media"
	"github.com/wolfman30/dialogflow-bridge/internal/observability/metrics"
	"github.com/wolfman30/dialogflow-bridge/internal/webhook"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting dialogflow-bridge",
		"env", cfg.Env,
		"port", cfg.Port,
		"provider", cfg.AIProvider,
		"reply_format", cfg.ReplyFormat,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.CollaboratorTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires every component behind the HTTP router. The cleanup
// func releases clients opened along the way.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	metricsHandler, bridgeMetrics := setupMetrics()

	var awsCfg aws.Config
	if cfg.UsesAWS() {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = loaded
	}

	fetcher, closeFetcher, err := bootstrap.BuildFetcher(ctx, cfg, awsCfg, bridgeMetrics, logger)
	if err != nil {
		return nil, nil, err
	}

	format, err := gateway.FormatByName(cfg.ReplyFormat)
	if err != nil {
		_ = closeFetcher()
		return nil, nil, err
	}
	mode := gateway.ResolveButtonMode(cfg.ButtonMode, format)
	logger.Info("reply rendering configured", "format", format.Name(), "button_mode", string(mode))

	opts := []webhook.Option{webhook.WithRecorder(bridgeMetrics)}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if store := bootstrap.BuildReplayStore(redisClient, cfg); store != nil {
		opts = append(opts, webhook.WithReplayStore(store))
		logger.Info("webhook replay cache enabled", "ttl", cfg.ReplayTTL.String())
	}

	hook := webhook.NewHandler(webhook.Config{
		LanguageCode:  cfg.DialogflowLanguageCode,
		PublicBaseURL: cfg.PublicBaseURL,
		FallbackReply: cfg.FallbackReply,
	}, fetcher, gateway.NewRenderer(mode), format, logger, opts...)

	var s3Client media.S3API
	if cfg.StaticS3Bucket != "" {
		s3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
	}
	images := media.NewHandler(bootstrap.BuildImageSource(cfg, s3Client, logger), logger)

	cleanup := func() {
		if err := closeFetcher(); err != nil {
			logger.Warn("failed to close assistant clients", "error", err)
		}
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	return router.New(&router.Config{
		Logger:         logger,
		Webhook:        hook,
		ImageHandler:   images,
		MetricsHandler: metricsHandler,
	}), cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.BridgeMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBridgeMetrics(reg)
}
