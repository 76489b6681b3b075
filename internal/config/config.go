// Package config provides configuration structures and validation for the
// application. It handles environment-based configuration for all major
// components: HTTP server, databases, caches, message queues, external
// provider clients and the reconciliation loop.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents
// a major subsystem's configuration and is validated during startup.
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Crypto       CryptoConfig
	Billing      BillingConfig
	Falabella    FalabellaConfig
	MercadoLibre MercadoLibreConfig
	Reconciler   ReconcilerConfig
	WorkerPool   WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the issuance attempt
// audit store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains Redis configuration for single-use OAuth state
// consumption
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig contains Kafka configuration for the issuance event stream
type KafkaConfig struct {
	Brokers           string
	IssuanceTopic     string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	WriteTimeout      time.Duration
}

// CryptoConfig contains the key material for credential encryption at rest
type CryptoConfig struct {
	EncryptionKey string // base64-encoded, must decode to 32 bytes (AES-256)
}

// BillingConfig contains the OpenFactura billing provider client settings
type BillingConfig struct {
	BaseURL string
	Timeout time.Duration
}

// FalabellaConfig contains the Seller Center API client settings
type FalabellaConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// MercadoLibreConfig contains the Mercado Libre API and OAuth app settings
type MercadoLibreConfig struct {
	APIBaseURL   string
	AuthBaseURL  string // Auth domain differs per country
	ClientID     string
	ClientSecret string
	RedirectURI  string
	FrontendURL  string // Where OAuth callback redirects land
	StateSecret  string // HMAC secret for the signed state token
	StateTTL     time.Duration
	Timeout      time.Duration
}

// ReconcilerConfig contains the marketplace pull loop settings
type ReconcilerConfig struct {
	Interval    time.Duration // How often every source is pulled
	Lookback    time.Duration // Pull window when no watermark exists yet
	PageSize    int           // Orders per pull request
	PullTimeout time.Duration // Bound on one source's pull
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}

	// Validate Kafka config
	if c.Kafka.Brokers == "" {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.IssuanceTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_ISSUANCE_TOPIC is required")
	}
	if c.Kafka.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "KAFKA_WRITE_TIMEOUT must be greater than 0")
	}

	// Validate crypto config
	if c.Crypto.EncryptionKey == "" {
		validationErrors = append(validationErrors, "ENCRYPTION_KEY is required")
	}

	// Validate billing provider config
	if c.Billing.BaseURL == "" {
		validationErrors = append(validationErrors, "BILLING_BASE_URL is required")
	}
	if c.Billing.Timeout <= 0 {
		validationErrors = append(validationErrors, "BILLING_TIMEOUT must be greater than 0")
	}

	// Validate marketplace client config
	if c.Falabella.BaseURL == "" {
		validationErrors = append(validationErrors, "FALABELLA_BASE_URL is required")
	}
	if c.Falabella.Timeout <= 0 {
		validationErrors = append(validationErrors, "FALABELLA_TIMEOUT must be greater than 0")
	}
	if c.MercadoLibre.APIBaseURL == "" {
		validationErrors = append(validationErrors, "ML_API_BASE_URL is required")
	}
	if c.MercadoLibre.AuthBaseURL == "" {
		validationErrors = append(validationErrors, "ML_AUTH_BASE_URL is required")
	}
	if c.MercadoLibre.StateTTL <= 0 {
		validationErrors = append(validationErrors, "ML_STATE_TTL must be greater than 0")
	}
	if c.MercadoLibre.Timeout <= 0 {
		validationErrors = append(validationErrors, "ML_TIMEOUT must be greater than 0")
	}

	// Validate reconciler config
	if c.Reconciler.Interval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_INTERVAL must be greater than 0")
	}
	if c.Reconciler.Lookback <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_LOOKBACK must be greater than 0")
	}
	if c.Reconciler.PageSize <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_PAGE_SIZE must be greater than 0")
	}
	if c.Reconciler.PullTimeout <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_PULL_TIMEOUT must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
