// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/WajidAliShah2004/slack-bot/pkg/config"
	"github.com/WajidAliShah2004/slack-bot/pkg/database"
	"github.com/WajidAliShah2004/slack-bot/pkg/tracing"
)

const defaultSessionSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// OAuth provider
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthTenantID     string   `env:"OAUTH_TENANT_ID"`
	OAuthRedirectURL  string   `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/api/v1/auth/callback"`
	OAuthScopes       []string `env:"OAUTH_SCOPES" envDefault:"openid,profile,email,User.Read" envSeparator:","`

	// Session tokens
	SessionSecret        string        `env:"SESSION_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionTokenLifetime time.Duration `env:"SESSION_TOKEN_LIFETIME" envDefault:"24h"`
	// TokenCipherKey is a base64-encoded 32-byte key, distinct from the
	// signing secret. It seals stored provider tokens.
	TokenCipherKey string `env:"TOKEN_CIPHER_KEY"`

	// Login state
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"10m"`

	// Webhook verification
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTolerance time.Duration `env:"WEBHOOK_TOLERANCE" envDefault:"5m"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"slackbot"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"slackbot_secret"`
	PostgresDB   string `env:"POSTGRES_DB_NAME" envDefault:"slackbot_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tracing
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSample    float64 `env:"TRACE_SAMPLE_RATE" envDefault:"0.1"`
}

// Load reads configuration from environment variables and validates the
// secrets. Outside development every secret must be explicitly set.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	if cfg.Environment != "development" {
		if cfg.SessionSecret == defaultSessionSecret {
			return nil, fmt.Errorf("SESSION_SECRET must be explicitly set in %q mode", cfg.Environment)
		}
		if len(cfg.SessionSecret) < 32 {
			return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters long, got %d", len(cfg.SessionSecret))
		}
		if cfg.TokenCipherKey == "" {
			return nil, fmt.Errorf("TOKEN_CIPHER_KEY must be set in %q mode", cfg.Environment)
		}
		if cfg.WebhookSecret == "" {
			return nil, fmt.Errorf("WEBHOOK_SECRET must be set in %q mode", cfg.Environment)
		}
		if cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "" || cfg.OAuthTenantID == "" {
			return nil, fmt.Errorf("OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET, and OAUTH_TENANT_ID must be set in %q mode", cfg.Environment)
		}
	}

	return cfg, nil
}

// Postgres returns the connection settings for the database pool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
	}
}

// Redis returns the connection settings for the Redis client.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}

// Tracing returns the tracer settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName:  "slack-bot",
		Environment:  c.Environment,
		OTLPEndpoint: c.OTLPEndpoint,
		SampleRate:   c.TraceSample,
		Enabled:      c.TracingEnabled,
	}
}
