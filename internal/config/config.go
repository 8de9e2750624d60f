package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogLevel    string
	Port        string

	Shopify ShopifyConfig
	Tables  TablesConfig
	Redis   RedisConfig

	// TokenEncKeyB64 is the base64 AES-256 key used to seal shop access tokens.
	TokenEncKeyB64 string

	ReturnsTopicArn   string // SNS topic notified for pending-review returns
	GDPRArchiveBucket string
	BedrockModelID    string

	RateLimitRPS   int
	RateLimitBurst int

	// SSMParameterPrefix, when set, lets secrets missing from the environment be read from Parameter Store.
	SSMParameterPrefix string
}

type ShopifyConfig struct {
	APIKey                 string
	APISecret              string
	APIVersion             string
	Scopes                 string
	AppURL                 string // public base URL of this backend (OAuth redirect, webhook address)
	ProxySignatureRequired bool
	MaxRetries             int
}

type TablesConfig struct {
	Integrations  string
	OAuthState    string
	Sessions      string
	WebhookDedupe string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from the environment, falling back to an optional .env file.
func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("SHOPIFY_API_VERSION", "2025-01")
	viper.SetDefault("SHOPIFY_MAX_RETRIES", "3")
	viper.SetDefault("RATE_LIMIT_RPS", "5")
	viper.SetDefault("RATE_LIMIT_BURST", "20")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Port:        getEnvOrViper("PORT", "8080"),
		Shopify: ShopifyConfig{
			APIKey:                 strings.TrimSpace(getEnvOrViper("SHOPIFY_API_KEY", "")),
			APISecret:              strings.TrimSpace(getEnvOrViper("SHOPIFY_API_SECRET", "")),
			APIVersion:             strings.TrimSpace(getEnvOrViper("SHOPIFY_API_VERSION", "2025-01")),
			Scopes:                 strings.TrimSpace(getEnvOrViper("SHOPIFY_SCOPES", "read_orders,write_orders,read_customers,write_customers")),
			AppURL:                 strings.TrimRight(strings.TrimSpace(getEnvOrViper("SHOPIFY_APP_URL", "")), "/"),
			ProxySignatureRequired: getBool("SHOPIFY_PROXY_SIGNATURE_REQUIRED", false),
			MaxRetries:             getInt("SHOPIFY_MAX_RETRIES", 3),
		},
		Tables: TablesConfig{
			Integrations:  strings.TrimSpace(getEnvOrViper("INTEGRATIONS_TABLE", "")),
			OAuthState:    strings.TrimSpace(getEnvOrViper("OAUTH_STATE_TABLE", "")),
			Sessions:      strings.TrimSpace(getEnvOrViper("SESSIONS_TABLE", "")),
			WebhookDedupe: strings.TrimSpace(getEnvOrViper("SHOPIFY_WEBHOOK_DEDUPE_TABLE", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getEnvOrViper("REDIS_ADDR", "")),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		TokenEncKeyB64:    strings.TrimSpace(getEnvOrViper("TOKEN_ENC_KEY_B64", "")),
		ReturnsTopicArn:   strings.TrimSpace(getEnvOrViper("RETURNS_TOPIC_ARN", "")),
		GDPRArchiveBucket: strings.TrimSpace(getEnvOrViper("GDPR_ARCHIVE_BUCKET", "")),
		BedrockModelID:    strings.TrimSpace(getEnvOrViper("BEDROCK_MODEL_ID", "")),
		RateLimitRPS:      getInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getInt("RATE_LIMIT_BURST", 20),

		SSMParameterPrefix: strings.TrimRight(strings.TrimSpace(getEnvOrViper("SSM_PARAMETER_PREFIX", "")), "/"),
	}

	if cfg.Shopify.APISecret == "" && cfg.SSMParameterPrefix == "" {
		return nil, fmt.Errorf("SHOPIFY_API_SECRET is required")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production logging and gin release mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnvOrViper(key, "")))
	if err != nil {
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(getEnvOrViper(key, "")))
	if err != nil {
		return defaultValue
	}
	return b
}
