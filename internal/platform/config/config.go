// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	pstrings "eventpass/pkg/platform/strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// DevSigningKey is used when no key is configured. Production deployments
// must override both signing keys.
const DevSigningKey = "dev-secret-key-change-in-production"

// Server captures everything cmd/server and passctl need.
type Server struct {
	Addr        string        `env:"EVENTPASS_ADDR" envDefault:":8080"`
	Store       string        `env:"EVENTPASS_STORE" envDefault:"memory"`
	DatabaseURL string        `env:"DATABASE_URL"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"eventpass.db"`
	Redis       RedisConfig   `envPrefix:"REDIS_"`
	Assets      AssetConfig   `envPrefix:"ASSET_"`
	Identity    IdentityConfig
	PublicURL   string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	ChromeBin   string        `env:"CHROME_BIN"`
	Audit       AuditConfig
	Log         LogConfig     `envPrefix:"LOG_"`
	RequestTTL  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

// RedisConfig configures the optional Redis sequence allocator.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// AssetConfig configures the photo store and its signed links.
type AssetConfig struct {
	Root         string        `env:"ROOT" envDefault:"data/assets"`
	SigningKey   string        `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	SignedURLTTL time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`
}

// IdentityConfig configures bearer token verification.
type IdentityConfig struct {
	SigningKey string `env:"IDENTITY_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"IDENTITY_ISSUER" envDefault:"eventpass-idp"`
	Audience   string `env:"IDENTITY_AUDIENCE" envDefault:"eventpass"`
}

// AuditConfig selects the audit sinks. Kafka is used when brokers are set.
type AuditConfig struct {
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string   `env:"AUDIT_TOPIC" envDefault:"eventpass.audit"`
	Buffer       int      `env:"AUDIT_BUFFER" envDefault:"256"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses the environment and validates the result.
func Load() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Audit.KafkaBrokers = pstrings.DedupeAndTrim(cfg.Audit.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Server) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown EVENTPASS_STORE %q", c.Store)
	}
	if c.Assets.SignedURLTTL <= 0 || c.Assets.SignedURLTTL > 24*time.Hour {
		return fmt.Errorf("config: ASSET_SIGNED_URL_TTL must be within (0, 24h], got %s", c.Assets.SignedURLTTL)
	}
	if c.Assets.SigningKey == "" || c.Identity.SigningKey == "" {
		return fmt.Errorf("config: signing keys must not be empty")
	}
	return nil
}

// UsesDevKeys reports whether either signing key is the development default.
func (c Server) UsesDevKeys() bool {
	return c.Assets.SigningKey == DevSigningKey || c.Identity.SigningKey == DevSigningKey
}
