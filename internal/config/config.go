// Package config loads engine configuration from environment variables.
// A .env file is honoured for local development (loaded by the binaries
// via godotenv before Load is called).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied when the corresponding environment variable is unset.
var (
	defaultMinBidIncrement = decimal.RequireFromString("1.00")
	defaultCommissionRate  = decimal.RequireFromString("0.10")
	defaultProcessingRate  = decimal.RequireFromString("0.029")
	defaultRoyaltyRate     = decimal.RequireFromString("0.05")
)

const (
	defaultExtensionWindow = 5 * time.Minute
	defaultMaxCascadeDepth = 100
	defaultRelayBatchSize  = 10
	defaultRelayInterval   = time.Second
	defaultCloserInterval  = 30 * time.Second
	defaultLockTimeout     = 3 * time.Second
)

// Config holds all runtime configuration for the auction engine.
type Config struct {
	// Infrastructure
	DatabaseURL string
	RabbitMQURL string
	RedisURL    string
	HTTPAddr    string

	// Bidding rules
	MinBidIncrement decimal.Decimal
	ExtensionWindow time.Duration
	MaxCascadeDepth int

	// Settlement rates
	CommissionRate    decimal.Decimal
	ProcessingFeeRate decimal.Decimal
	RoyaltyRate       decimal.Decimal

	// Workers
	RelayBatchSize int
	RelayInterval  time.Duration
	CloserInterval time.Duration
	DBLockTimeout  time.Duration
	EventsExchange string
}

// Load reads configuration from the environment. DATABASE_URL and
// RABBITMQ_URL are required; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		MinBidIncrement:   defaultMinBidIncrement,
		ExtensionWindow:   defaultExtensionWindow,
		MaxCascadeDepth:   defaultMaxCascadeDepth,
		CommissionRate:    defaultCommissionRate,
		ProcessingFeeRate: defaultProcessingRate,
		RoyaltyRate:       defaultRoyaltyRate,
		RelayBatchSize:    defaultRelayBatchSize,
		RelayInterval:     defaultRelayInterval,
		CloserInterval:    defaultCloserInterval,
		DBLockTimeout:     defaultLockTimeout,
		EventsExchange:    envOr("EVENTS_EXCHANGE", "auction.events"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is not set")
	}

	var err error
	if cfg.MinBidIncrement, err = envDecimal("MIN_BID_INCREMENT", cfg.MinBidIncrement); err != nil {
		return nil, err
	}
	if cfg.CommissionRate, err = envDecimal("COMMISSION_RATE", cfg.CommissionRate); err != nil {
		return nil, err
	}
	if cfg.ProcessingFeeRate, err = envDecimal("PROCESSING_FEE_RATE", cfg.ProcessingFeeRate); err != nil {
		return nil, err
	}
	if cfg.RoyaltyRate, err = envDecimal("ROYALTY_RATE", cfg.RoyaltyRate); err != nil {
		return nil, err
	}
	if cfg.ExtensionWindow, err = envDuration("EXTENSION_WINDOW", cfg.ExtensionWindow); err != nil {
		return nil, err
	}
	if cfg.RelayInterval, err = envDuration("RELAY_INTERVAL", cfg.RelayInterval); err != nil {
		return nil, err
	}
	if cfg.CloserInterval, err = envDuration("CLOSER_INTERVAL", cfg.CloserInterval); err != nil {
		return nil, err
	}
	if cfg.DBLockTimeout, err = envDuration("DB_LOCK_TIMEOUT", cfg.DBLockTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxCascadeDepth, err = envInt("MAX_CASCADE_DEPTH", cfg.MaxCascadeDepth); err != nil {
		return nil, err
	}
	if cfg.RelayBatchSize, err = envInt("RELAY_BATCH_SIZE", cfg.RelayBatchSize); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q", key, v)
	}
	return d, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q", key, v)
	}
	return n, nil
}
