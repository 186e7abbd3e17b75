package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported collaborator providers.
const (
	ProviderDialogflow = "dialogflow"
	ProviderGemini     = "gemini"
	ProviderBedrock    = "bedrock"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	// Conversational collaborator
	AIProvider             string
	AIFallbackProvider     string
	DialogflowProjectID    string
	DialogflowLanguageCode string
	GoogleCredentialsFile  string
	GeminiAPIKey           string
	GeminiModelID          string
	BedrockModelID         string
	CollaboratorTimeout    time.Duration
	FallbackReply          string

	// Reply rendering
	ReplyFormat string
	ButtonMode  string

	// Static images
	StaticDir      string
	StaticS3Bucket string
	StaticS3Prefix string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Webhook replay cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ReplayTTL     time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "5000"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		AIProvider:             strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", ProviderDialogflow))),
		AIFallbackProvider:     strings.ToLower(strings.TrimSpace(getEnv("AI_FALLBACK_PROVIDER", ""))),
		DialogflowProjectID:    getEnv("DIALOGFLOW_PROJECT_ID", ""),
		DialogflowLanguageCode: getEnv("DIALOGFLOW_LANGUAGE_CODE", "en"),
		GoogleCredentialsFile:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", "service_account_key.json"),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:          getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),
		CollaboratorTimeout:    getEnvAsDuration("COLLABORATOR_TIMEOUT", 5*time.Second),
		FallbackReply:          getEnv("FALLBACK_REPLY", "Sorry, something went wrong, please try again."),

		ReplyFormat: strings.ToLower(strings.TrimSpace(getEnv("REPLY_FORMAT", "twiml"))),
		ButtonMode:  strings.ToLower(strings.TrimSpace(getEnv("BUTTON_MODE", "auto"))),

		StaticDir:      getEnv("STATIC_DIR", "static/images"),
		StaticS3Bucket: getEnv("STATIC_S3_BUCKET", ""),
		StaticS3Prefix: getEnv("STATIC_S3_PREFIX", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ReplayTTL:     getEnvAsDuration("REPLAY_TTL", 10*time.Minute),
	}
}

// Validate reports settings that would leave the bridge unable to reach its collaborator.
func (c *Config) Validate() error {
	var errs []error
	for _, provider := range []string{c.AIProvider, c.AIFallbackProvider} {
		if provider == "" {
			continue
		}
		if err := c.validateProvider(provider); err != nil {
			errs = append(errs, err)
		}
	}
	if c.AIProvider == "" {
		errs = append(errs, errors.New("config: AI_PROVIDER is required"))
	}
	if c.AIFallbackProvider != "" && c.AIFallbackProvider == c.AIProvider {
		errs = append(errs, errors.New("config: AI_FALLBACK_PROVIDER must differ from AI_PROVIDER"))
	}
	switch c.ReplyFormat {
	case "twiml", "whatsapp":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported REPLY_FORMAT %q", c.ReplyFormat))
	}
	switch c.ButtonMode {
	case "auto", "interactive", "text":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported BUTTON_MODE %q", c.ButtonMode))
	}
	if c.CollaboratorTimeout < 0 {
		errs = append(errs, errors.New("config: COLLABORATOR_TIMEOUT must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateProvider(provider string) error {
	switch provider {
	case ProviderDialogflow:
		if strings.TrimSpace(c.DialogflowProjectID) == "" {
			return errors.New("config: DIALOGFLOW_PROJECT_ID is required for dialogflow")
		}
	case ProviderGemini:
		if strings.TrimSpace(c.GeminiAPIKey) == "" {
			return errors.New("config: GEMINI_API_KEY is required for gemini")
		}
	case ProviderBedrock:
		if strings.TrimSpace(c.BedrockModelID) == "" {
			return errors.New("config: BEDROCK_MODEL_ID is required for bedrock")
		}
	default:
		return fmt.Errorf("config: unsupported provider %q", provider)
	}
	return nil
}

// UsesAWS reports whether any configured component needs an AWS client.
func (c *Config) UsesAWS() bool {
	return c.AIProvider == ProviderBedrock || c.AIFallbackProvider == ProviderBedrock || c.StaticS3Bucket != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
