package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Backend BackendConfig
	Session SessionConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Audit   AuditConfig
	Limits  LimitsConfig
}

type BackendConfig struct {
	BaseURL string        `env:"BACKEND_URL,     default=http://localhost:3000"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT, default=10s"`
}

type SessionConfig struct {
	// Store selects where credentials live: "redis" or "cookie".
	Store      string        `env:"TOKEN_STORE,        default=redis"`
	Key        string        `env:"SESSION_KEY,        required"`
	CookieName string        `env:"SESSION_COOKIE,     default=portal_session"`
	MaxAge     time.Duration `env:"SESSION_MAX_AGE,    default=12h"`
	Secure     bool          `env:"COOKIE_SECURE,      default=false"`
	SameSite   string        `env:"COOKIE_SAMESITE,    default=lax"`
	SignInPath string        `env:"SIGNIN_PATH,        default=/signin"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=typeapproval_portal"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
	PoolSize int    `env:"REDIS_POOL_SIZE, default=0"`
}

type AuditConfig struct {
	Workers        int           `env:"AUDIT_WORKERS,         default=4"`
	Retention      time.Duration `env:"AUDIT_RETENTION,       default=2160h"`
	DeniedThrottle time.Duration `env:"AUDIT_DENIED_THROTTLE, default=5m"`
}

type LimitsConfig struct {
	// SignInPerSecond is the sustained sign-in/sign-up rate allowed per client IP.
	SignInPerSecond float64 `env:"SIGNIN_RATE,  default=1"`
	SignInBurst     int     `env:"SIGNIN_BURST, default=5"`
}

// Load reads a .env file when present, then the environment, using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Session.Store != "redis" && cfg.Session.Store != "cookie" {
		return nil, fmt.Errorf("config: TOKEN_STORE must be redis or cookie, got %q", cfg.Session.Store)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the portal runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
