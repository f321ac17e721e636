// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	// RedisURL points at the distributed message-relay store. The default
	// matches a local development instance.
	RedisURL string `env:"REDIS_URL" default:"redis://localhost:6379"`

	// DatabaseURL is optional; when unset the API token strategy is not
	// registered.
	DatabaseURL string `env:"DATABASE_URL"`

	// ClusterSocket is the unix socket shared by same-host processes in
	// cluster-local relay mode.
	ClusterSocket string `env:"CLUSTER_SOCKET" default:"/tmp/pulsegate-cluster.sock"`

	// RoomTimeout bounds ability generation plus payload shaping for a
	// single room; expiry is treated as deny-and-log.
	RoomTimeout time.Duration `env:"ROOM_TIMEOUT" default:"5s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"32"`
	ConnectionRatePerSec    float64 `env:"CONNECTION_RATE_PER_SEC" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"10"`
}

// Production reports whether the process runs in production mode, which
// selects the distributed relay path.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.RoomTimeout <= 0 {
		return fmt.Errorf("ROOM_TIMEOUT must be positive, got %s", cfg.RoomTimeout)
	}
	if cfg.MaxWebSocketConnections <= 0 {
		return fmt.Errorf("MAX_WEBSOCKET_CONNECTIONS must be positive, got %d", cfg.MaxWebSocketConnections)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}
	if cfg.ConnectionRatePerSec <= 0 {
		return fmt.Errorf("CONNECTION_RATE_PER_SEC must be positive, got %f", cfg.ConnectionRatePerSec)
	}
	return nil
}
