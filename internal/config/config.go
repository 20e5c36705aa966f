package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the guard service
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Escalation   EscalationConfig   `mapstructure:"escalation"`
	LoginMonitor LoginMonitorConfig `mapstructure:"login_monitor"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Log          LogConfig          `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis configuration for shared counters and dedup state
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// AuthConfig holds session token settings
type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
}

// AuditConfig holds security log writer settings
type AuditConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// EscalationConfig holds alert escalation thresholds
type EscalationConfig struct {
	Window          time.Duration `mapstructure:"window"`
	RepeatThreshold int           `mapstructure:"repeat_threshold"`
}

// LoginMonitorConfig holds failed-login tracking settings. The lockout
// duration is configured separately from the failure-counting window.
type LoginMonitorConfig struct {
	FailureWindow    time.Duration `mapstructure:"failure_window"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// NotifyConfig holds notification channel settings
type NotifyConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	WebhookURL string        `mapstructure:"webhook_url"`
	SMTP       SMTPConfig    `mapstructure:"smtp"`
}

// SMTPConfig holds email delivery settings for admin alerts
type SMTPConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	From       string   `mapstructure:"from"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Recipients []string `mapstructure:"recipients"`
}

// NATSConfig holds the optional notification queue settings
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	Subject string `mapstructure:"subject"`
}

// LogConfig holds structured logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "cantolico")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "cantolico_guard")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.access_ttl", "15m")

	v.SetDefault("audit.write_timeout", "3s")
	v.SetDefault("audit.retry_backoff", "250ms")

	v.SetDefault("escalation.window", "15m")
	v.SetDefault("escalation.repeat_threshold", 5)

	v.SetDefault("login_monitor.failure_window", "15m")
	v.SetDefault("login_monitor.failure_threshold", 5)
	v.SetDefault("login_monitor.lockout_duration", "15m")

	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.from", "alerts@cantolico.example")
	v.SetDefault("notify.smtp.recipients", []string{})

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.subject", "guard.alerts")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override file config
	v.SetEnvPrefix("GUARD")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
