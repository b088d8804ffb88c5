// Package config loads process configuration from CERTLEDGER_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. CERTLEDGER_ADDR.
const Prefix = "certledger"

// DevSigningKey is accepted only outside production.
const DevSigningKey = "dev-secret-key-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	Environment     string        `envconfig:"ENV" default:"local"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	PublicBaseURL   string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	TrustedProxies  []string      `envconfig:"TRUSTED_PROXIES"`
}

// Auth configures issuer token validation and the admin token.
type Auth struct {
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY"`
	JWTIssuer     string `envconfig:"JWT_ISSUER"`
	JWTAudience   string `envconfig:"JWT_AUDIENCE"`
	AdminToken    string `envconfig:"ADMIN_TOKEN"`

	// AdminTokenHash is a bcrypt hash of the admin token and wins over
	// AdminToken when both are set.
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`
}

// Database configures the Postgres pool. An empty URL selects the in-memory
// stores.
type Database struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"5m"`
	AutoMigrate     bool          `envconfig:"DATABASE_AUTO_MIGRATE" default:"true"`
}

// RedisConfig configures the shared anchor record cache. An empty URL
// disables it.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Kafka configures the anchoring event stream. Empty brokers fall back to
// logging events.
type Kafka struct {
	Brokers         string        `envconfig:"KAFKA_BROKERS"`
	Topic           string        `envconfig:"KAFKA_TOPIC" default:"certledger.credential.events"`
	ClientID        string        `envconfig:"KAFKA_CLIENT_ID" default:"certledger"`
	Acks            string        `envconfig:"KAFKA_ACKS" default:"all"`
	Retries         int           `envconfig:"KAFKA_RETRIES" default:"3"`
	DeliveryTimeout time.Duration `envconfig:"KAFKA_DELIVERY_TIMEOUT" default:"30s"`
}

// Ledger configures the record contract client. Any of endpoint, contract or
// signer may be missing: the client degrades instead of failing startup.
type Ledger struct {
	Endpoint        string        `envconfig:"LEDGER_ENDPOINT"`
	ContractAddress string        `envconfig:"LEDGER_CONTRACT_ADDRESS"`
	SignerKey       string        `envconfig:"LEDGER_SIGNER_KEY"`
	CallTimeout     time.Duration `envconfig:"LEDGER_CALL_TIMEOUT" default:"2m"`
	ReadTimeout     time.Duration `envconfig:"LEDGER_READ_TIMEOUT" default:"5s"`
	ReceiptTimeout  time.Duration `envconfig:"LEDGER_RECEIPT_TIMEOUT" default:"90s"`
	GasHeadroomPct  uint64        `envconfig:"LEDGER_GAS_HEADROOM_PCT" default:"20"`
	CacheSize       int           `envconfig:"LEDGER_CACHE_SIZE" default:"4096"`
	CacheTTL        time.Duration `envconfig:"LEDGER_CACHE_TTL" default:"1h"`
	BreakerFailures int           `envconfig:"LEDGER_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"LEDGER_BREAKER_COOLDOWN" default:"30s"`
}

// Reconcile configures the pending-anchor worker.
type Reconcile struct {
	Enabled      bool          `envconfig:"RECONCILE_ENABLED" default:"true"`
	Interval     time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	GracePeriod  time.Duration `envconfig:"RECONCILE_GRACE_PERIOD" default:"5m"`
	AbandonAfter time.Duration `envconfig:"RECONCILE_ABANDON_AFTER" default:"30m"`
	BatchSize    int           `envconfig:"RECONCILE_BATCH_SIZE" default:"100"`
}

// Config is the full process configuration. Groups are embedded so every
// variable sits directly under the prefix; access overlapping names through
// the group, e.g. cfg.Database.URL.
type Config struct {
	Server
	Auth
	Database
	RedisConfig
	Kafka
	Ledger
	Reconcile
}

// Load reads the environment. It fails only on malformed values or on
// settings that are unsafe in production.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether dev fallbacks must be refused.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Environment) {
	case "prod", "production":
		return true
	}
	return false
}

func (c *Config) finalize() error {
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	if c.PublicBaseURL == "" {
		return errors.New("CERTLEDGER_PUBLIC_BASE_URL must not be empty")
	}
	if c.JWTSigningKey == "" {
		if c.IsProduction() {
			return errors.New("CERTLEDGER_JWT_SIGNING_KEY is required in production")
		}
		c.JWTSigningKey = DevSigningKey
	}
	if c.IsProduction() && c.JWTSigningKey == DevSigningKey {
		return errors.New("the development signing key cannot be used in production")
	}
	if c.Ledger.CallTimeout <= 0 || c.Ledger.ReadTimeout <= 0 {
		return errors.New("ledger timeouts must be positive")
	}
	return nil
}
