package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) over the
// built-in defaults, then applies PRICER_* environment variable overrides.
// A .env file in the working directory is loaded first when present. The
// returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRICER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Pricer ──
	setStr(&cfg.Pricer.Instrument, "PRICER_INSTRUMENT")
	setInt64(&cfg.Pricer.TargetSize, "PRICER_TARGET_SIZE")
	setInt64(&cfg.Pricer.MaxMessages, "PRICER_MAX_MESSAGES")
	setStr(&cfg.Pricer.Input, "PRICER_INPUT")
	setStr(&cfg.Pricer.Format, "PRICER_FORMAT")
	setStr(&cfg.Pricer.Diagnostics, "PRICER_DIAGNOSTICS")
	setInt64(&cfg.Pricer.DepthEvery, "PRICER_DEPTH_EVERY")
	setInt(&cfg.Pricer.DepthLevels, "PRICER_DEPTH_LEVELS")
	setDuration(&cfg.Pricer.LockTTL, "PRICER_LOCK_TTL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PRICER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRICER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRICER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRICER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRICER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRICER_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "PRICER_REDIS_KEY_PREFIX")
	setInt64(&cfg.Redis.StreamMaxLen, "PRICER_REDIS_STREAM_MAX_LEN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PRICER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "PRICER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PRICER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PRICER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PRICER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PRICER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PRICER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PRICER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PRICER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PRICER_POSTGRES_RUN_MIGRATIONS")
	setInt(&cfg.Postgres.ReportBatch, "PRICER_POSTGRES_REPORT_BATCH")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PRICER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRICER_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRICER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRICER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRICER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRICER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRICER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "PRICER_S3_PREFIX")
	setBool(&cfg.S3.Archive, "PRICER_S3_ARCHIVE")

	// ── Kafka ──
	setStringSlice(&cfg.Kafka.Brokers, "PRICER_KAFKA_BROKERS")
	setStr(&cfg.Kafka.GroupID, "PRICER_KAFKA_GROUP_ID")
	setInt(&cfg.Kafka.Partition, "PRICER_KAFKA_PARTITION")
	setDuration(&cfg.Kafka.MaxWait, "PRICER_KAFKA_MAX_WAIT")
	setStr(&cfg.Kafka.ReportTopic, "PRICER_KAFKA_REPORT_TOPIC")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PRICER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PRICER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PRICER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PRICER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "PRICER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PRICER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PRICER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PRICER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PRICER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PRICER_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "PRICER_NOTIFY_COOLDOWN")

	// ── Retention ──
	setInt(&cfg.Retention.Days, "PRICER_RETENTION_DAYS")
	setStr(&cfg.Retention.Cron, "PRICER_RETENTION_CRON")

	// ── Top-level ──
	setStr(&cfg.Mode, "PRICER_MODE")
	setStr(&cfg.LogLevel, "PRICER_LOG_LEVEL")
	setStr(&cfg.LogFormat, "PRICER_LOG_FORMAT")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
