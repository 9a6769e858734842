package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the messenger service.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=json text"`

	// Public HTTP API
	HTTPPort       int           `mapstructure:"HTTP_PORT" validate:"min=1,max=65535"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"` // empty disables bearer auth
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`
	ShutdownGrace  time.Duration `mapstructure:"SHUTDOWN_GRACE" validate:"gt=0"`

	// NATS job consumer. An empty URL disables the consumer.
	NATSUrl            string        `mapstructure:"NATS_URL"`
	NATSSendSubject    string        `mapstructure:"NATS_SEND_SUBJECT" validate:"required"`
	NATSQueueGroup     string        `mapstructure:"NATS_QUEUE_GROUP" validate:"required"`
	NATSOutcomeSubject string        `mapstructure:"NATS_OUTCOME_SUBJECT" validate:"required"`
	JobTimeout         time.Duration `mapstructure:"JOB_TIMEOUT" validate:"gt=0"`

	// Messenger platform (Graph API)
	GraphBaseURL    string        `mapstructure:"MESSENGER_GRAPH_BASE_URL" validate:"required,url"`
	APIVersion      string        `mapstructure:"MESSENGER_API_VERSION" validate:"required"`
	PageID          string        `mapstructure:"MESSENGER_PAGE_ID" validate:"required"`
	PageAccessToken string        `mapstructure:"MESSENGER_PAGE_ACCESS_TOKEN" validate:"required"`
	FallbackTag     string        `mapstructure:"MESSENGER_FALLBACK_TAG" validate:"oneof=HUMAN_AGENT ACCOUNT_UPDATE POST_PURCHASE_UPDATE CONFIRMED_EVENT_UPDATE"`
	HTTPTimeout     time.Duration `mapstructure:"MESSENGER_HTTP_TIMEOUT" validate:"gt=0"`
}

// Load reads config.defaults.yaml from configPath (if present), then APP_* environment
// variables, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP") // APP_LOG_LEVEL, APP_MESSENGER_PAGE_ACCESS_TOKEN etc.

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("Configuration file ('config.defaults.yaml') not found; using defaults and environment variables.")
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Every key needs a default so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("SHUTDOWN_GRACE", "15s")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SEND_SUBJECT", "messenger.jobs.send")
	v.SetDefault("NATS_QUEUE_GROUP", "messenger_delivery_workers")
	v.SetDefault("NATS_OUTCOME_SUBJECT", "messenger.outcomes")
	v.SetDefault("JOB_TIMEOUT", "60s")

	v.SetDefault("MESSENGER_GRAPH_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("MESSENGER_API_VERSION", "v18.0")
	v.SetDefault("MESSENGER_PAGE_ID", "me")
	v.SetDefault("MESSENGER_PAGE_ACCESS_TOKEN", "")
	v.SetDefault("MESSENGER_FALLBACK_TAG", "HUMAN_AGENT")
	v.SetDefault("MESSENGER_HTTP_TIMEOUT", "30s")
}
