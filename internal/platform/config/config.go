package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	liststr "dgtt/pkg/platform/strings"
)

// Config is the full runtime configuration. Values come from defaults, then
// an optional YAML file named by CONFIG_FILE, then the environment.
type Config struct {
	Environment  string             `yaml:"environment"`
	LogLevel     string             `yaml:"log_level"`
	Server       Server             `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Payment      PaymentConfig      `yaml:"payment"`
	Notification NotificationConfig `yaml:"notification"`
	Audit        AuditConfig        `yaml:"audit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string  `yaml:"addr"`
	JWTSigningKey  string  `yaml:"jwt_signing_key"`
	JWTIssuer      string  `yaml:"jwt_issuer"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	// OpsToken guards /metrics and /readyz. Empty leaves them open.
	OpsToken        string        `yaml:"ops_token"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the store backend. An empty URL keeps every store in memory.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Driver          string        `yaml:"driver"` // "pgx" or "postgres"
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig holds the notification bus settings. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	ClientID          string   `yaml:"client_id"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

type PaymentConfig struct {
	Enabled         bool          `yaml:"enabled"`
	SchoolFee       float64       `yaml:"school_fee"`
	CandidateFee    float64       `yaml:"candidate_fee"`
	Timeout         time.Duration `yaml:"timeout"`
	PaymentLinkBase string        `yaml:"payment_link_base"`
}

type NotificationConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

type AuditConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
	SigningKey    string        `yaml:"signing_key"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Environment: "development",
		LogLevel:    "info",
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			JWTIssuer:       "dgtt",
			RateLimitRPS:    20,
			RateLimitBurst:  40,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "pgx",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:             "dgtt.workflow.notifications",
			ClientID:          "dgtt-workflow",
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Payment: PaymentConfig{
			Enabled:         false,
			SchoolFee:       100000,
			CandidateFee:    50000,
			Timeout:         5 * time.Second,
			PaymentLinkBase: "https://simulation-paiement.dgtt-portail.com/pay/",
		},
		Notification: NotificationConfig{
			Timeout:  3 * time.Second,
			DedupTTL: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Retention:     5 * 365 * 24 * time.Hour,
			PurgeInterval: 24 * time.Hour,
			SigningKey:    "dev-document-signing-key",
		},
	}
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Environment, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Server.Addr, "DGTT_ADDR")
	setString(&c.Server.JWTSigningKey, "JWT_SIGNING_KEY")
	setString(&c.Server.JWTIssuer, "JWT_ISSUER")
	setString(&c.Server.OpsToken, "OPS_TOKEN")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = liststr.SplitList(v)
	}
	setString(&c.Payment.PaymentLinkBase, "PAYMENT_LINK_BASE")
	setString(&c.Audit.SigningKey, "DOCUMENT_SIGNING_KEY")

	var errs []error
	errs = append(errs,
		setFloat(&c.Server.RateLimitRPS, "RATE_LIMIT_RPS"),
		setBool(&c.Database.Migrate, "DATABASE_MIGRATE"),
		setBool(&c.Payment.Enabled, "PAYMENT_ENABLED"),
		setFloat(&c.Payment.SchoolFee, "PAYMENT_SCHOOL_FEE"),
		setFloat(&c.Payment.CandidateFee, "PAYMENT_CANDIDATE_FEE"),
		setDuration(&c.Payment.Timeout, "PAYMENT_TIMEOUT"),
		setDuration(&c.Notification.Timeout, "NOTIFICATION_TIMEOUT"),
		setDuration(&c.Audit.Retention, "AUDIT_RETENTION"),
		setDuration(&c.Audit.PurgeInterval, "AUDIT_PURGE_INTERVAL"),
	)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
