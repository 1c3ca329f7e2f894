// Package config defines all configuration structures for the model serving
// platform. No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GRPCConfig holds binary-RPC server tunables.
type GRPCConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	MaxRecvMsgSize    int           `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize    int           `mapstructure:"max_send_msg_size"`
	GracefulTimeout   time.Duration `mapstructure:"graceful_timeout"`
	ReflectionEnabled bool          `mapstructure:"reflection_enabled"`
}

// DatabaseConfig holds PostgreSQL connection parameters, used by the
// optional lifecycle-transition audit log.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
	Enabled         bool          `mapstructure:"enabled"`
}

// RedisConfig holds Redis connection parameters, used by the optional
// per-model ListStatuses cache.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	Enabled      bool          `mapstructure:"enabled"`
}

// KafkaConfig holds Apache Kafka producer parameters, used by the optional
// lifecycle-event sink.
type KafkaConfig struct {
	Brokers          []string      `mapstructure:"brokers"`
	Topic            string        `mapstructure:"topic"`
	BatchSize        int           `mapstructure:"batch_size"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	RequiredAcks     string        `mapstructure:"required_acks"` // "none" | "one" | "all"
	Enabled          bool          `mapstructure:"enabled"`
}

// MinIOConfig holds object-store connection parameters for model roots that
// live in a bucket rather than on local disk.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "console"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
}

// ModelConfig declares one managed model: where its versions live and which
// policy selects the serve set, per spec §3 Policy Config.
type ModelConfig struct {
	Name          string   `mapstructure:"name"`
	Root          string   `mapstructure:"root"`            // filesystem path or bucket-relative prefix
	StorageBackend string  `mapstructure:"storage_backend"` // "fs" | "objectstore"
	PolicyKind    string   `mapstructure:"policy_kind"`      // "latest" | "specific" | "all"
	LatestN       int      `mapstructure:"latest_n"`
	SpecificSet   []int64  `mapstructure:"specific_set"`
}

// ServingConfig holds the repository-watcher and per-model policy settings
// that drive the C5/C6 lifecycle engine.
type ServingConfig struct {
	WatchInterval time.Duration `mapstructure:"watch_interval"`
	Models        []ModelConfig `mapstructure:"models"`
	// BackendURL addresses the out-of-process inference runtime every
	// configured model's Engine Handle loads through.
	BackendURL string `mapstructure:"backend_url"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the serving process. Every
// infrastructure component and the serving engine itself read their settings
// from the relevant sub-struct.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	GRPC    GRPCConfig     `mapstructure:"grpc"`
	Serving ServingConfig  `mapstructure:"serving"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Kafka   KafkaConfig    `mapstructure:"kafka"`
	MinIO   MinIOConfig    `mapstructure:"minio"`
	Log     LogConfig      `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// GRPC
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("config: grpc.port %d is out of range [1, 65535]", c.GRPC.Port)
	}

	// Serving
	if c.Serving.WatchInterval <= 0 {
		return fmt.Errorf("config: serving.watch_interval must be > 0")
	}
	if c.Serving.BackendURL == "" {
		return fmt.Errorf("config: serving.backend_url is required")
	}
	if len(c.Serving.Models) == 0 {
		return fmt.Errorf("config: serving.models must declare at least one model")
	}
	seen := make(map[string]struct{}, len(c.Serving.Models))
	for _, m := range c.Serving.Models {
		if m.Name == "" {
			return fmt.Errorf("config: serving.models entries must have a non-empty name")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("config: serving.models contains duplicate model name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Root == "" {
			return fmt.Errorf("config: serving.models[%s].root is required", m.Name)
		}
		switch m.StorageBackend {
		case "fs", "objectstore":
		default:
			return fmt.Errorf("config: serving.models[%s].storage_backend %q is invalid; expected fs|objectstore", m.Name, m.StorageBackend)
		}
		switch m.PolicyKind {
		case "latest":
			if m.LatestN < 1 {
				return fmt.Errorf("config: serving.models[%s].latest_n must be >= 1", m.Name)
			}
		case "specific":
			if len(m.SpecificSet) == 0 {
				return fmt.Errorf("config: serving.models[%s].specific_set must be non-empty", m.Name)
			}
		case "all":
		default:
			return fmt.Errorf("config: serving.models[%s].policy_kind %q is invalid; expected latest|specific|all", m.Name, m.PolicyKind)
		}
	}

	// Database (only validated when the audit sink is enabled)
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required when database.enabled is true")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required when database.enabled is true")
		}
	}

	// Redis (only validated when the status cache is enabled)
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis.enabled is true")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Kafka (only validated when the event sink is enabled)
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address when kafka.enabled is true")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka.enabled is true")
		}
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
