package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment and an optional .env file.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	// StoreBaseURL selects the REST store. Empty runs against the in-memory store.
	StoreBaseURL string
	StoreTimeout time.Duration

	// MySQLDSN selects the MySQL journal. Empty keeps the journal in memory.
	MySQLDSN string

	// RedisAddr selects Redis for locks, idempotency and sessions. Empty keeps them in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WorkerCount    int
	QueueSize      int
	LockTTL        time.Duration
	LockWait       time.Duration
	SessionTTL     time.Duration
	IdempotencyTTL time.Duration

	LogLevel       string
	LogDevelopment bool
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)
	cfg.HTTPAddr = str("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = str("GRPC_ADDR", ":50051")
	cfg.StoreBaseURL = str("STORE_BASE_URL", "")
	cfg.MySQLDSN = str("MYSQL_DSN", "")
	cfg.RedisAddr = str("REDIS_ADDR", "")
	cfg.RedisPassword = str("REDIS_PASSWORD", "")
	cfg.LogLevel = str("LOG_LEVEL", "info")

	if cfg.StoreTimeout, err = duration("STORE_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LockTTL, err = duration("LOCK_TTL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LockWait, err = duration("LOCK_WAIT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = duration("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = integer("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.WorkerCount, err = integer("WORKER_COUNT", 4); err != nil {
		return Config{}, err
	}
	if cfg.QueueSize, err = integer("QUEUE_SIZE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.LogDevelopment, err = boolean("LOG_DEVELOPMENT", false); err != nil {
		return Config{}, err
	}

	if cfg.WorkerCount < 1 {
		return Config{}, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.QueueSize < 0 {
		return Config{}, fmt.Errorf("QUEUE_SIZE must not be negative, got %d", cfg.QueueSize)
	}
	return cfg, nil
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func integer(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
