// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Port           int
	DatabaseURL    string
	DatabaseType   string
	SessionSecret  string
	RedisURL       string
	StoreTimeout   time.Duration
	PublishTimeout time.Duration
	QueueSize      int
}

// ParseFlags validates flags and fills unset values from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("livepoll", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for cross-instance live updates")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "Session token secret (prefer env)")

	// Tuning
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", 0, "Bound on vote admission store work")
	fs.DurationVar(&cfg.PublishTimeout, "publish-timeout", 0, "Bound on a single live update publish")
	fs.IntVar(&cfg.QueueSize, "queue", 0, "Live update dispatch queue length")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	var err error
	if cfg.StoreTimeout, err = durationOrEnv(cfg.StoreTimeout, "STORE_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PublishTimeout, err = durationOrEnv(cfg.PublishTimeout, "PUBLISH_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.QueueSize == 0 {
		if sizeStr := os.Getenv("BROADCAST_QUEUE"); sizeStr != "" {
			size, err := strconv.Atoi(sizeStr)
			if err != nil || size <= 0 {
				return Config{}, errors.New("invalid BROADCAST_QUEUE env variable")
			}
			cfg.QueueSize = size
		} else {
			cfg.QueueSize = 256
		}
	}

	// Secrets - MUST be provided
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET required")
	}

	return cfg, nil
}

func durationOrEnv(current time.Duration, env string, def time.Duration) (time.Duration, error) {
	if current > 0 {
		return current, nil
	}
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + env + " env variable")
	}
	return d, nil
}
