package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Storage  Storage  `mapstructure:"storage"`
	Upload   Upload   `mapstructure:"upload"`
	Cleanup  Cleanup  `mapstructure:"cleanup"`
	Registry Registry `mapstructure:"registry"`
	Database Database `mapstructure:"database"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Retry    Retry    `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	Port      string `mapstructure:"port"`       // HTTP port to listen on
	StaticDir string `mapstructure:"static_dir"` // built front-end, served when present
}

// Storage selects and configures the backend for the intake and results areas.
type Storage struct {
	Backend    string `mapstructure:"backend"` // "local" or "minio"
	IntakeDir  string `mapstructure:"intake_dir"`
	ResultsDir string `mapstructure:"results_dir"`
	MinIO      MinIO  `mapstructure:"minio"`
}

// MinIO holds configuration for the object storage backend.
type MinIO struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Upload holds limits for incoming files.
type Upload struct {
	MaxSize   int64  `mapstructure:"max_size"`   // bytes
	FormField string `mapstructure:"form_field"` // multipart field carrying the file
}

// Cleanup holds the lifetimes of stored files.
type Cleanup struct {
	IntakeDelay   time.Duration `mapstructure:"intake_delay"`   // after a successful process
	DownloadDelay time.Duration `mapstructure:"download_delay"` // after a download
	UploadTTL     time.Duration `mapstructure:"upload_ttl"`     // upload never processed
	ResultTTL     time.Duration `mapstructure:"result_ttl"`     // result never downloaded
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Registry selects where scheduled deletions are kept.
type Registry struct {
	Backend string `mapstructure:"backend"` // "memory" or "postgres"
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Kafka holds configuration for lifecycle event publishing.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	GroupID string   `mapstructure:"group_id"` // Consumer group ID
	Topic   string   `mapstructure:"topic"`    // Kafka topic name
	Brokers []string `mapstructure:"brokers"`  // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Addr returns the listen address for the HTTP server.
func (s Server) Addr() string {
	return ":" + s.Port
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.static_dir", "dist")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.intake_dir", "uploads")
	v.SetDefault("storage.results_dir", "processed")
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket_name", "fileflexor")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("upload.max_size", 50<<20)
	v.SetDefault("upload.form_field", "file")

	v.SetDefault("cleanup.intake_delay", time.Second)
	v.SetDefault("cleanup.download_delay", 5*time.Second)
	v.SetDefault("cleanup.upload_ttl", time.Hour)
	v.SetDefault("cleanup.result_ttl", time.Hour)
	v.SetDefault("cleanup.sweep_interval", time.Second)

	v.SetDefault("registry.backend", "memory")

	v.SetDefault("database.master.host", "localhost")
	v.SetDefault("database.master.port", "5432")
	v.SetDefault("database.master.name", "fileflexor")
	v.SetDefault("database.master.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "file-events")
	v.SetDefault("kafka.group_id", "fileflexor-events")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds environment variables to Viper keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":               "PORT",
		"database.master.host":      "DB_HOST",
		"database.master.port":      "DB_PORT",
		"database.master.user":      "DB_USER",
		"database.master.pass":      "DB_PASSWORD",
		"database.master.name":      "DB_NAME",
		"storage.minio.endpoint":    "MINIO_ENDPOINT",
		"storage.minio.access_key":  "MINIO_ACCESS_KEY",
		"storage.minio.secret_key":  "MINIO_SECRET_KEY",
		"storage.minio.bucket_name": "MINIO_BUCKET",
		"kafka.brokers":             "KAFKA_BROKERS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the configuration from path. A missing file is not an error:
// defaults and environment variables are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		zlog.Logger.Warn().Str("path", path).Msg("config file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("invalid storage.backend %q: want local or minio", c.Storage.Backend)
	}

	switch c.Registry.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid registry.backend %q: want memory or postgres", c.Registry.Backend)
	}

	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive, got %d", c.Upload.MaxSize)
	}
	if c.Upload.FormField == "" {
		return errors.New("upload.form_field must not be empty")
	}
	if c.Cleanup.SweepInterval <= 0 {
		return fmt.Errorf("cleanup.sweep_interval must be positive, got %s", c.Cleanup.SweepInterval)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty when kafka is enabled")
	}

	return nil
}
