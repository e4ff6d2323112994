// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds everything the server needs to start. Secrets come from the
// environment only; a local .env file is loaded when present.
type Config struct {
	Port        string
	Env         string // development or production
	AppURL      string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string

	PaystackSecretKey string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	JWTSecret string
	LogLevel  string
}

// Load reads the environment, applying development defaults for everything
// except the hard requirements (database URL, JWT secret).
func Load() (*Config, error) {
	// .env is a dev convenience; absence is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getenv("PORT", "8080"),
		Env:               getenv("APP_ENV", "development"),
		AppURL:            getenv("APP_URL", "http://localhost:8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_PHONE_NUMBER"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetupLogging configures the global zerolog logger: human-readable console
// output in development, JSON elsewhere.
func (c *Config) SetupLogging() {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
