// Package config loads process configuration from PARISHNET_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends for entities and snapshots.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Consent registry backends.
const (
	ConsentMemory   = "memory"
	ConsentRedis    = "redis"
	ConsentPostgres = "postgres"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Store    Store
	Consent  Consent
	Postgres Postgres
	Redis    RedisConfig
	S3       S3
	Audit    Audit
	Log      Log
	Tracing  Tracing
	Locking  Locking
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"PARISHNET_ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"PARISHNET_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"PARISHNET_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"PARISHNET_SHUTDOWN_TIMEOUT" envDefault:"20s"`
	// AdminToken guards /admin routes when set.
	AdminToken string `env:"PARISHNET_ADMIN_TOKEN"`
}

// Store selects the entity backend.
type Store struct {
	Backend    string `env:"PARISHNET_STORE"       envDefault:"memory"`
	SQLitePath string `env:"PARISHNET_SQLITE_PATH" envDefault:"parishnet.db"`
}

// Consent selects the consent registry backend.
type Consent struct {
	Backend string `env:"PARISHNET_CONSENT_STORE" envDefault:"memory"`
}

// Postgres configures the shared database handle.
type Postgres struct {
	URL             string        `env:"PARISHNET_DATABASE_URL"`
	MaxOpenConns    int           `env:"PARISHNET_DB_MAX_OPEN_CONNS"     envDefault:"20"`
	MaxIdleConns    int           `env:"PARISHNET_DB_MAX_IDLE_CONNS"     envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"PARISHNET_DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"PARISHNET_DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"PARISHNET_DB_AUTO_MIGRATE"       envDefault:"true"`
}

// RedisConfig configures the consent registry client.
type RedisConfig struct {
	URL          string        `env:"PARISHNET_REDIS_URL"`
	PoolSize     int           `env:"PARISHNET_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"PARISHNET_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"PARISHNET_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"PARISHNET_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"PARISHNET_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// S3 configures the object-store entity backend.
type S3 struct {
	Bucket          string `env:"PARISHNET_S3_BUCKET"`
	Region          string `env:"PARISHNET_S3_REGION"     envDefault:"us-east-1"`
	Endpoint        string `env:"PARISHNET_S3_ENDPOINT"`
	AccessKeyID     string `env:"PARISHNET_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"PARISHNET_S3_SECRET_ACCESS_KEY"`
	PathStyle       bool   `env:"PARISHNET_S3_PATH_STYLE" envDefault:"false"`
}

// Audit configures where audit events go. With no Kafka brokers, events are
// written to Postgres when a database is configured and kept in memory
// otherwise. With both, Postgres is the fallback for Kafka.
type Audit struct {
	KafkaBrokers  []string `env:"PARISHNET_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic    string   `env:"PARISHNET_KAFKA_TOPIC"   envDefault:"parishnet.audit"`
	KafkaClientID string   `env:"PARISHNET_KAFKA_CLIENT_ID" envDefault:"parishnet"`
	OpsBuffer     int      `env:"PARISHNET_AUDIT_OPS_BUFFER" envDefault:"1024"`

	// Kafka failures before events divert to Postgres, and how often an
	// open circuit retries the broker.
	FailoverThreshold int           `env:"PARISHNET_AUDIT_FAILOVER_THRESHOLD" envDefault:"5"`
	FailoverProbe     time.Duration `env:"PARISHNET_AUDIT_FAILOVER_PROBE"     envDefault:"10s"`
}

// Log configures the structured logger.
type Log struct {
	Format string `env:"PARISHNET_LOG_FORMAT" envDefault:"json"`
	Level  string `env:"PARISHNET_LOG_LEVEL"  envDefault:"info"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Endpoint    string `env:"PARISHNET_OTEL_ENDPOINT"`
	ServiceName string `env:"PARISHNET_OTEL_SERVICE_NAME" envDefault:"parishnet"`
}

// Locking configures per-key write serialization.
type Locking struct {
	Timeout time.Duration `env:"PARISHNET_LOCK_TIMEOUT" envDefault:"5s"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	return LoadWith(env.Options{})
}

// LoadWith parses with explicit options, used by tests to inject an
// environment map.
func LoadWith(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{StoreMemory, StoreSQLite, StorePostgres, StoreS3}, c.Store.Backend) {
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if !slices.Contains([]string{ConsentMemory, ConsentRedis, ConsentPostgres}, c.Consent.Backend) {
		errs = append(errs, fmt.Errorf("unknown consent backend %q", c.Consent.Backend))
	}
	if c.NeedsPostgres() && c.Postgres.URL == "" {
		errs = append(errs, errors.New("PARISHNET_DATABASE_URL is required for the postgres backend"))
	}
	if c.Consent.Backend == ConsentRedis && c.Redis.URL == "" {
		errs = append(errs, errors.New("PARISHNET_REDIS_URL is required for the redis consent backend"))
	}
	if c.Store.Backend == StoreS3 && c.S3.Bucket == "" {
		errs = append(errs, errors.New("PARISHNET_S3_BUCKET is required for the s3 backend"))
	}
	if c.Store.Backend == StoreSQLite && c.Store.SQLitePath == "" {
		errs = append(errs, errors.New("PARISHNET_SQLITE_PATH is required for the sqlite backend"))
	}
	if c.Locking.Timeout <= 0 {
		errs = append(errs, errors.New("PARISHNET_LOCK_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// NeedsPostgres reports whether any component uses the database.
func (c *Config) NeedsPostgres() bool {
	return c.Store.Backend == StorePostgres || c.Consent.Backend == ConsentPostgres
}
