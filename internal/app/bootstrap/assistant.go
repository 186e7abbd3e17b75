package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"google.golang.org/api/option"

	"github.com/wolfman30/dialogflow-bridge/internal/assistant"
	appconfig "github.com/wolfman30/dialogflow-bridge/internal/config"
	"github.com/wolfman30/dialogflow-bridge/pkg/logging"
)

// BuildFetcher wires the configured collaborator: each provider gets a
// deadline and instrumentation, and the primary falls back to the secondary
// provider when one is configured. The returned closer releases provider
// clients.
func BuildFetcher(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, observer assistant.LatencyObserver, logger *logging.Logger) (assistant.Fetcher, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	build := func(provider string) (assistant.Fetcher, error) {
		f, closer, err := buildProvider(ctx, provider, cfg, awsCfg, logger)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		return assistant.Instrument(assistant.WithTimeout(f, cfg.CollaboratorTimeout), provider, observer), nil
	}

	primary, err := build(cfg.AIProvider)
	if err != nil {
		return nil, nil, err
	}
	if cfg.AIFallbackProvider == "" {
		logger.Info("assistant provider configured", "provider", cfg.AIProvider, "timeout", cfg.CollaboratorTimeout.String())
		return primary, closeAll, nil
	}

	secondary, err := build(cfg.AIFallbackProvider)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	logger.Info("assistant provider configured",
		"provider", cfg.AIProvider,
		"fallback_provider", cfg.AIFallbackProvider,
		"timeout", cfg.CollaboratorTimeout.String(),
	)
	return assistant.NewFallbackFetcher(primary, secondary, logger), closeAll, nil
}

func buildProvider(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (assistant.Fetcher, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case appconfig.ProviderDialogflow:
		f, err := assistant.NewDialogflowFetcher(ctx, cfg.DialogflowProjectID, dialogflowOptions(cfg, logger)...)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: dialogflow: %w", err)
		}
		return f, nil, nil
	case appconfig.ProviderGemini:
		f, err := assistant.NewGeminiFetcher(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		return f, f.Close, nil
	case appconfig.ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: bedrock: model id is required")
		}
		return assistant.NewBedrockFetcher(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unsupported assistant provider %q", provider)
	}
}

// dialogflowOptions uses the service-account file when it exists and falls
// back to application default credentials otherwise.
func dialogflowOptions(cfg *appconfig.Config, logger *logging.Logger) []option.ClientOption {
	path := strings.TrimSpace(cfg.GoogleCredentialsFile)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("google credentials file not found; using application default credentials", "path", path)
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(path)}
}
