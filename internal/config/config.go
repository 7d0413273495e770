package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Postgres      PostgresConfig
	Storage       StorageConfig
	KMS           KMSConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	Bucketing     BucketingConfig
	API           APIConfig
}

type ServerConfig struct {
	Port           int
	TLSPort        int
	EnableTLS      bool
	AutoCert       bool
	Domain         string
	CertFile       string
	KeyFile        string
	AutoCertDir    string
	Email          string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	// Driver is "redis" or "memory". The memory driver keeps the cache in process.
	Driver           string
	URL              string
	Password         string
	DB               int
	PoolSize         int
	OperationTimeout time.Duration
	ProbeInterval    time.Duration
}

type PostgresConfig struct {
	URL            string
	MinConns       int
	MaxConns       int
	CommandTimeout time.Duration
	AutoMigrate    bool
}

type StorageConfig struct {
	OAuthTTL        time.Duration
	VendorTTL       time.Duration
	VerificationTTL time.Duration
	SweepInterval   time.Duration
	HistoryLimit    int
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

type BucketingConfig struct {
	VendorBuckets int
	EventBuckets  int
}

type APIConfig struct {
	InternalToken  string
	AllowedOrigins []string
}

var (
	current  *Config
	loadOnce sync.Once
)

// LoadConfig reads the environment (and a .env file when present) once and caches the result.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()
		current = FromEnv()
	})
	return current
}

// LoadEnvFile loads path into the process environment without overriding
// variables that are already set. Call it before LoadConfig.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Get returns the loaded config, loading it on first use.
func Get() *Config {
	return LoadConfig()
}

// FromEnv builds a Config from the current process environment without caching.
func FromEnv() *Config {
	return &Config{
		Environment: GetEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			TLSPort:        getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:      getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:       getEnvBool("SERVER_AUTO_CERT", false),
			Domain:         GetEnv("SERVER_DOMAIN", "localhost"),
			CertFile:       GetEnv("SERVER_CERT_FILE", ""),
			KeyFile:        GetEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:    GetEnv("SERVER_AUTOCERT_DIR", "./certs"),
			Email:          GetEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Driver:           GetEnv("CACHE_DRIVER", "redis"),
			URL:              GetEnv("REDIS_URL", "redis://localhost:6379"),
			Password:         GetEnv("REDIS_PASSWORD", ""),
			DB:               getEnvInt("REDIS_DB", 0),
			PoolSize:         getEnvInt("REDIS_POOL_SIZE", 20),
			OperationTimeout: getEnvDuration("REDIS_OPERATION_TIMEOUT", 500*time.Millisecond),
			ProbeInterval:    getEnvDuration("REDIS_PROBE_INTERVAL", 30*time.Second),
		},
		Postgres: PostgresConfig{
			URL:            GetEnv("DATABASE_URL", ""),
			MinConns:       getEnvInt("DATABASE_MIN_CONNS", 5),
			MaxConns:       getEnvInt("DATABASE_MAX_CONNS", 20),
			CommandTimeout: getEnvDuration("DATABASE_COMMAND_TIMEOUT", 60*time.Second),
			AutoMigrate:    getEnvBool("DATABASE_AUTO_MIGRATE", true),
		},
		Storage: StorageConfig{
			OAuthTTL:        getEnvDuration("CACHE_TTL_OAUTH", time.Hour),
			VendorTTL:       getEnvDuration("CACHE_TTL_VENDOR", time.Hour),
			VerificationTTL: getEnvDuration("CACHE_TTL_VERIFICATION", 24*time.Hour),
			SweepInterval:   getEnvDuration("MAINTENANCE_SWEEP_INTERVAL", time.Hour),
			HistoryLimit:    getEnvInt("VERIFICATION_HISTORY_LIMIT", 50),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   GetEnv("KMS_KEY_ID", ""),
			Region:  GetEnv("AWS_REGION", "us-east-1"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   GetEnv("KAFKA_VERIFICATION_TOPIC", "payshield.verification-attempts"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      GetEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password: GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database: GetEnv("CLICKHOUSE_DATABASE", "payshield"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:      GetEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username: GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password: GetEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    GetEnv("ELASTICSEARCH_INDEX", "verification-attempts"),
		},
		Bucketing: BucketingConfig{
			VendorBuckets: getEnvInt("BUCKETING_VENDOR_BUCKETS", 256),
			EventBuckets:  getEnvInt("BUCKETING_EVENT_BUCKETS", 64),
		},
		API: APIConfig{
			InternalToken:  GetEnv("API_INTERNAL_TOKEN", ""),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"https://*"}),
		},
	}
}

// Validate reports configuration that would make the storage core unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Postgres.MinConns < 0 || c.Postgres.MaxConns <= 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, fmt.Errorf("invalid postgres pool bounds %d-%d", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	if c.Postgres.CommandTimeout <= 0 {
		errs = append(errs, errors.New("DATABASE_COMMAND_TIMEOUT must be positive"))
	}
	if c.Redis.Driver != "redis" && c.Redis.Driver != "memory" {
		errs = append(errs, fmt.Errorf("unknown CACHE_DRIVER %q", c.Redis.Driver))
	}
	if c.Redis.PoolSize <= 0 {
		errs = append(errs, errors.New("REDIS_POOL_SIZE must be positive"))
	}
	if c.Storage.OAuthTTL <= 0 || c.Storage.VendorTTL <= 0 || c.Storage.VerificationTTL <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Storage.SweepInterval <= 0 {
		errs = append(errs, errors.New("MAINTENANCE_SWEEP_INTERVAL must be positive"))
	}
	if c.IsProduction() && c.API.InternalToken == "" {
		errs = append(errs, errors.New("API_INTERNAL_TOKEN is required in production"))
	}
	if c.KMS.Enabled && c.KMS.KeyID == "" {
		errs = append(errs, errors.New("KMS_KEY_ID is required when KMS is enabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
