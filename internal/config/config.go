// Package config defines the top-level configuration for the book pricer
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PRICER_* environment variables.
type Config struct {
	Pricer    PricerConfig    `toml:"pricer"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Retention RetentionConfig `toml:"retention"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	LogFormat string          `toml:"log_format"`
}

// PricerConfig describes one pricing run.
type PricerConfig struct {
	Instrument string `toml:"instrument"`
	TargetSize int64  `toml:"target_size"`
	// MaxMessages caps the number of input records; -1 is unbounded.
	MaxMessages int64  `toml:"max_messages"`
	Input       string `toml:"input"`
	Format      string `toml:"format"`
	// Diagnostics is "stderr", "discard" or a file path.
	Diagnostics string `toml:"diagnostics"`
	// DepthEvery publishes a depth snapshot every n accepted events; 0 never.
	DepthEvery  int64    `toml:"depth_every"`
	DepthLevels int      `toml:"depth_levels"`
	LockTTL     duration `toml:"lock_ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	KeyPrefix    string `toml:"key_prefix"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	ReportBatch   int    `toml:"report_batch"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
	Archive        bool   `toml:"archive"`
}

// KafkaConfig configures the kafka:// input and the optional report topic.
type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	GroupID     string   `toml:"group_id"`
	Partition   int      `toml:"partition"`
	MaxWait     duration `toml:"max_wait"`
	ReportTopic string   `toml:"report_topic"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds alert channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Cooldown suppresses repeated availability alerts per instrument.
	Cooldown duration `toml:"cooldown"`
}

// RetentionConfig controls pruning of persisted runs.
type RetentionConfig struct {
	Days int    `toml:"days"`
	Cron string `toml:"cron"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Pricer: PricerConfig{
			Instrument:  "default",
			MaxMessages: -1,
			Input:       "-",
			Format:      "text",
			Diagnostics: "stderr",
			DepthEvery:  1000,
			DepthLevels: 10,
			LockTTL:     duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			KeyPrefix:    "pricer",
			StreamMaxLen: 100_000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			ReportBatch:   500,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pricer-data",
			ForcePathStyle: true,
			Archive:        true,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			MaxWait: duration{500 * time.Millisecond},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   20,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events:   []string{"unavailable", "recovered", "run_finished", "run_failed"},
			Cooldown: duration{5 * time.Minute},
		},
		Retention: RetentionConfig{
			Days: 90,
			Cron: "0 3 * * *",
		},
		Mode:      "stream",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LockTTLDuration returns the single-writer lock lifetime.
func (p PricerConfig) LockTTLDuration() time.Duration { return p.LockTTL.Duration }

// MaxWaitDuration returns the Kafka reader's fetch wait.
func (k KafkaConfig) MaxWaitDuration() time.Duration { return k.MaxWait.Duration }

// CooldownDuration returns the alert cooldown.
func (n NotifyConfig) CooldownDuration() time.Duration { return n.Cooldown.Duration }

// RateWindowDuration returns the rate limiter window.
func (s ServerConfig) RateWindowDuration() time.Duration { return s.RateWindow.Duration }

// NeedsRedis reports whether the mode publishes to Redis.
func (c *Config) NeedsRedis() bool { return c.Mode == "publish" || c.Mode == "full" }

// NeedsPostgres reports whether the mode persists runs.
func (c *Config) NeedsPostgres() bool { return c.Mode == "full" }

// NeedsS3 reports whether the mode archives runs or reads an s3:// input.
func (c *Config) NeedsS3() bool {
	return (c.Mode == "full" && c.S3.Archive) || strings.HasPrefix(c.Pricer.Input, "s3://")
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"stream":  true,
	"publish": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validEvents = map[string]bool{
	"unavailable":  true,
	"recovered":    true,
	"run_finished": true,
	"run_failed":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: stream, publish, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: json, text)", c.LogFormat))
	}

	// Pricer
	if c.Pricer.TargetSize <= 0 {
		errs = append(errs, fmt.Sprintf("pricer: target_size must be > 0, got %d", c.Pricer.TargetSize))
	}
	if c.Pricer.MaxMessages < -1 {
		errs = append(errs, "pricer: max_messages must be -1 (unbounded) or >= 0")
	}
	if f := c.Pricer.Format; f != "text" && f != "binary" {
		errs = append(errs, fmt.Sprintf("pricer: format must be text or binary, got %q", f))
	}
	if strings.TrimSpace(c.Pricer.Instrument) == "" {
		errs = append(errs, "pricer: instrument must not be empty")
	}
	if c.Pricer.DepthEvery < 0 {
		errs = append(errs, "pricer: depth_every must be >= 0")
	}
	if c.Pricer.DepthLevels < 1 {
		errs = append(errs, "pricer: depth_levels must be >= 1")
	}
	if c.NeedsRedis() && c.Pricer.LockTTL.Duration < time.Second {
		errs = append(errs, "pricer: lock_ttl must be at least 1s")
	}

	// Redis
	if c.NeedsRedis() || strings.HasPrefix(c.Pricer.Input, "redis://") {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.NeedsPostgres() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
		if c.Postgres.ReportBatch < 1 {
			errs = append(errs, "postgres: report_batch must be >= 1")
		}
	}

	// S3
	if c.NeedsS3() && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Kafka
	if strings.HasPrefix(c.Pricer.Input, "kafka://") || c.Kafka.ReportTopic != "" {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty")
		}
	}

	// Server
	if c.Server.Enabled && c.NeedsRedis() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Notify
	for _, ev := range c.Notify.Events {
		if !validEvents[ev] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Retention
	if c.Retention.Days < 0 {
		errs = append(errs, "retention: days must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
