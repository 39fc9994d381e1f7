package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig
	GRPC      GRPCConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Identity  IdentityConfig
	Redis     RedisConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	SeedRates bool `env:"SEED_RATES,default=false"`
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path         string `env:"DB_PATH,default=app.db"` // SQLite database file path
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=8"`
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `env:"GRPC_ADDRESS,default=:50051"` // gRPC server listen address (e.g., ":50051")
}

// HTTPConfig contains REST server settings.
type HTTPConfig struct {
	Address         string        `env:"HTTP_ADDRESS,default=:8080"`
	CORSOrigins     string        `env:"CORS_ORIGINS"` // comma separated; empty allows any origin
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"` // JWT signing secret
	AdminUIDs string `env:"ADMIN_UIDS"` // comma separated uid or uid:username entries seeded as admins
}

// IdentityConfig points at the external identity provider.
type IdentityConfig struct {
	BaseURL     string        `env:"IDENTITY_BASE_URL"`
	Token       string        `env:"IDENTITY_TOKEN"`
	Timeout     time.Duration `env:"IDENTITY_TIMEOUT,default=2s"`
	Parallelism int           `env:"IDENTITY_PARALLELISM,default=8"`
	CacheTTL    time.Duration `env:"IDENTITY_CACHE_TTL,default=10m"`
}

// RedisConfig enables the identity profile cache when URL is set.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS,default=10"`
	Burst int     `env:"RATE_LIMIT_BURST,default=20"`
}

// AdminSeed is one administrator registered at startup.
type AdminSeed struct {
	UID      string
	Username string
}

// Load loads configuration from environment variables (and an optional .env file)
// with sensible defaults. JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := decode()
	if err != nil {
		return nil, err
	}
	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, cfg.validate()
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := decode()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	return cfg, cfg.validate()
}

func decode() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Database.MaxOpenConns < 1:
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1")
	case c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1:
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	case c.Identity.Timeout <= 0:
		return fmt.Errorf("IDENTITY_TIMEOUT must be positive")
	}
	for _, s := range c.Admins() {
		if s.UID == "" {
			return fmt.Errorf("ADMIN_UIDS contains an empty uid")
		}
	}
	return nil
}

// Admins parses ADMIN_UIDS. An entry without a username uses the uid.
func (c *Config) Admins() []AdminSeed {
	var out []AdminSeed
	for _, item := range splitList(c.Auth.AdminUIDs) {
		uid, name, _ := strings.Cut(item, ":")
		uid, name = strings.TrimSpace(uid), strings.TrimSpace(name)
		if name == "" {
			name = uid
		}
		out = append(out, AdminSeed{UID: uid, Username: name})
	}
	return out
}

// AllowedOrigins returns the CORS allow list, defaulting to any origin.
func (c *Config) AllowedOrigins() []string {
	if o := splitList(c.HTTP.CORSOrigins); len(o) > 0 {
		return o
	}
	return []string{"*"}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	redis := "disabled"
	if c.Redis.URL != "" {
		redis = "*** (masked) ***"
	}
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, HTTP: %s, Identity: %q, Redis: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Identity.BaseURL, redis)
}
