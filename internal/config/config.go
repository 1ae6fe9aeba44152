package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Billing   BillingConfig
	AI        AIConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the postgres connection string for this configuration.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

type BillingConfig struct {
	// OperationTimeout bounds each external lookup and store write during
	// reconciliation. On timeout the delivery fails retryable and the
	// provider redelivers.
	OperationTimeout time.Duration
}

type AIConfig struct {
	OpenAIKey        string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicModel   string
	AnthropicBaseURL string
	RequestTimeout   time.Duration
}

type TelemetryConfig struct {
	Enabled        bool
	ExporterURL    string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRatio  float64
}

func NewConfig() *Config {
	environment := getEnv("SERVER_ENVIRONMENT", EnvironmentDevelopment)

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			Environment:  environment,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "password"),
			Name:         getEnv("DB_NAME", "inkwell"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
			CheckoutSuccessURL: getEnv("STRIPE_CHECKOUT_SUCCESS_URL", "http://localhost:3000/editor?success=true"),
			CheckoutCancelURL:  getEnv("STRIPE_CHECKOUT_CANCEL_URL", "http://localhost:3000/billing?canceled=true"),
		},
		Billing: BillingConfig{
			OperationTimeout: getEnvDuration("BILLING_OPERATION_TIMEOUT", 10*time.Second),
		},
		AI: AIConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4"),
			OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
			AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			RequestTimeout:   getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getEnvBool("TELEMETRY_ENABLED", false),
			ExporterURL:    getEnv("TELEMETRY_EXPORTER_URL", ""),
			ServiceName:    getEnv("TELEMETRY_SERVICE_NAME", "inkwell"),
			ServiceVersion: getEnv("TELEMETRY_SERVICE_VERSION", "dev"),
			Environment:    environment,
			SamplingRatio:  getEnvFloat("TELEMETRY_SAMPLING_RATIO", 1.0),
		},
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
