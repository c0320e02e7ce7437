package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Log      LogConfig      `mapstructure:"log"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Mail     MailConfig     `mapstructure:"mail"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	LogLevel        string `mapstructure:"log_level"`         // gorm log level, defaults to log.level
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`     // Secret for session JWT signing
	SessionTTL    time.Duration `mapstructure:"session_ttl"`    // Session token lifetime
	ActivationTTL time.Duration `mapstructure:"activation_ttl"` // Activation token lifetime
	FrontendURL   string        `mapstructure:"frontend_url"`   // Base URL used in activation links
}

// QueueConfig holds notification queue configuration
type QueueConfig struct {
	Type       string `mapstructure:"type"`        // "memory" or "valkey"
	ValkeyAddr string `mapstructure:"valkey_addr"` // Valkey address (if type=valkey), e.g., "localhost:6379"
	BufferSize int    `mapstructure:"buffer_size"` // Memory queue buffer
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// NotifyConfig bounds notification dispatch and delivery.
type NotifyConfig struct {
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	MaxRetries     uint64        `mapstructure:"max_retries"`
	RetryBase      time.Duration `mapstructure:"retry_base"`
	Workers        int           `mapstructure:"workers"`
}

// MailConfig holds outgoing mail transport configuration
type MailConfig struct {
	Transport string `mapstructure:"transport"` // "log" or "smtp"
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	Security  string `mapstructure:"security"` // "starttls", "tls" (implicit, port 465) or "none"
}

// Load reads configuration from .env, config file and environment variables
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults for local development
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./gatherly.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.activation_ttl", 72*time.Hour)
	v.SetDefault("auth.frontend_url", "http://localhost:8080")
	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.valkey_addr", "localhost:6379")
	v.SetDefault("queue.buffer_size", 100)
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("notify.enqueue_timeout", 2*time.Second)
	v.SetDefault("notify.send_timeout", 10*time.Second)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.retry_base", time.Second)
	v.SetDefault("notify.workers", 4)
	v.SetDefault("mail.transport", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.security", "starttls")
	v.SetDefault("mail.from", "no-reply@gatherly.local")

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gatherly/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override
	v.SetEnvPrefix("GATHERLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = cfg.Log.Level
	}

	return &cfg, nil
}
