// Package config loads runtime configuration from the environment so main
// stays lean.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config carries the knobs for storage adapters, the audit sink, and
// observability. Optional backends stay unconfigured when their variables
// are unset; the bbolt store path is the only thing the CLI requires.
type Config struct {
	LogLevel  string `env:"CIRCLES_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CIRCLES_LOG_FORMAT" envDefault:"text"`

	// StorePath locates the local bbolt file used by the CLI.
	StorePath string `env:"CIRCLES_STORE_PATH" envDefault:"circles.db"`

	// RedisURL and PostgresDSN select the shared-store adapters when a host
	// deployment wants them instead of the local file.
	RedisURL    string `env:"CIRCLES_REDIS_URL"`
	PostgresDSN string `env:"CIRCLES_POSTGRES_DSN"`

	// Kafka settings feed the audit sink. No brokers means no Kafka sink.
	KafkaBrokers []string `env:"CIRCLES_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"CIRCLES_KAFKA_TOPIC" envDefault:"circles.audit"`

	// MasterKey seeds purpose-key derivation for invite envelopes and
	// sponsor codes. Base64 or raw. When unset the core falls back to an
	// ephemeral per-process key, so shareable invites only verify within
	// the process that minted them.
	MasterKey string `env:"CIRCLES_MASTER_KEY"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
