package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/marketplace/internal/storage/breaker"
	miniostore "github.com/utafrali/marketplace/internal/storage/minio"
	pkgconfig "github.com/utafrali/marketplace/pkg/config"
	"github.com/utafrali/marketplace/pkg/database"
	"github.com/utafrali/marketplace/pkg/tracing"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageMinio  = "minio"
)

// Config holds all configuration for the marketplace server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB" envDefault:"64"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"marketplace"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"marketplace"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"marketplace"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
	SlowQueryThresholdMs  int   `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"0"`

	// Redis (chat notifications)
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Kafka. With events disabled the server runs without a broker.
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Object storage
	StorageBackend   string  `env:"STORAGE_BACKEND" envDefault:"memory"`
	StorageBaseURL   string  `env:"STORAGE_BASE_URL" envDefault:""`
	MinioEndpoint    string  `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey   string  `env:"MINIO_ACCESS_KEY" envDefault:""`
	MinioSecretKey   string  `env:"MINIO_SECRET_KEY" envDefault:""`
	MinioBucket      string  `env:"MINIO_BUCKET" envDefault:"marketplace"`
	MinioRegion      string  `env:"MINIO_REGION" envDefault:""`
	MinioUseSSL      bool    `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioPublicURL   string  `env:"MINIO_PUBLIC_URL" envDefault:""`
	BreakerRatio     float64 `env:"STORAGE_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinReqs   uint32  `env:"STORAGE_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerOpenSecs  int     `env:"STORAGE_BREAKER_OPEN_SECONDS" envDefault:"30"`
	DefaultImageURL  string  `env:"DEFAULT_PRODUCT_IMAGE_URL" envDefault:""`
	DefaultStoreLogo string  `env:"DEFAULT_STORE_LOGO_URL" envDefault:""`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:""`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:""`

	// Rate limiting on mutating routes, per client IP
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load marketplace config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}

	c.StorageBackend = strings.ToLower(c.StorageBackend)
	switch c.StorageBackend {
	case StorageMemory:
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend")
		}
		if c.MinioBucket == "" {
			return fmt.Errorf("MINIO_BUCKET is required for the minio backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageMemory, StorageMinio, c.StorageBackend)
	}

	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.BreakerRatio <= 0 || c.BreakerRatio > 1 {
		return fmt.Errorf("STORAGE_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", c.BreakerRatio)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		PoolSize: c.RedisPoolSize,
	}
}

// Minio returns the object storage configuration.
func (c *Config) Minio() miniostore.Config {
	return miniostore.Config{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		Region:    c.MinioRegion,
		UseSSL:    c.MinioUseSSL,
		PublicURL: c.MinioPublicURL,
	}
}

// Breaker returns the circuit breaker settings for the storage backend.
func (c *Config) Breaker() breaker.Config {
	cfg := breaker.DefaultConfig("object-storage")
	cfg.FailureRatio = c.BreakerRatio
	cfg.MinRequests = c.BreakerMinReqs
	cfg.Timeout = time.Duration(c.BreakerOpenSecs) * time.Second
	return cfg
}

// Tracing returns the OpenTelemetry configuration.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// PublicBaseURL is the prefix the memory backend serves uploads under.
func (c *Config) PublicBaseURL() string {
	if c.StorageBaseURL != "" {
		return strings.TrimRight(c.StorageBaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d/media", c.HTTPPort)
}
