package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

const (
	// EnvDataDir names the variable holding the base directory for JSONL files.
	EnvDataDir = "LEITSTAND_DATA_DIR"
	// DefaultDataDir is resolved against the working directory.
	DefaultDataDir = "data"

	defaultAddr        = ":8080"
	defaultMaxBody     = 1024 * 1024
	defaultLockTimeout = 30 * time.Second
	defaultRateLimit   = "60/minute"
	defaultVersion     = "dev"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	DataDir     string
	Token       string
	MaxBody     int64
	LockTimeout time.Duration
	RateLimit   string
	Version     string
	TrustProxy  bool
	Log         Log
	Redis       RedisConfig
}

// Log selects the slog handler.
type Log struct {
	Level  string
	Format string
}

// RedisConfig enables the shared rate-limit store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ErrMissingToken is returned by Validate when no ingest token is configured.
var ErrMissingToken = errors.New("LEITSTAND_TOKEN not set: auth is required for all requests")

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envOr("LEITSTAND_ADDR", defaultAddr),
		DataDir:     DataDirFromEnv(),
		Token:       os.Getenv("LEITSTAND_TOKEN"),
		MaxBody:     envInt64("LEITSTAND_MAX_BODY", defaultMaxBody),
		LockTimeout: envDuration("LEITSTAND_LOCK_TIMEOUT", defaultLockTimeout),
		RateLimit:   envOr("LEITSTAND_RATE_LIMIT", defaultRateLimit),
		Version:     envOr("LEITSTAND_VERSION", defaultVersion),
		TrustProxy:  envBool("LEITSTAND_TRUST_PROXY"),
		Log: Log{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("LEITSTAND_REDIS_URL"),
			PoolSize:     int(envInt64("LEITSTAND_REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envInt64("LEITSTAND_REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  envDuration("LEITSTAND_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("LEITSTAND_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("LEITSTAND_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

// DataDirFromEnv returns LEITSTAND_DATA_DIR or the default.
func DataDirFromEnv() string {
	return envOr(EnvDataDir, DefaultDataDir)
}

// Validate reports settings the server cannot start without.
func (s Server) Validate() error {
	if s.Token == "" {
		return ErrMissingToken
	}
	if s.MaxBody <= 0 {
		return errors.New("LEITSTAND_MAX_BODY must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// envDuration accepts Go durations ("1m30s") and bare integers as seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
