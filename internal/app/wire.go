package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/bookpricer/internal/blob/s3"
	"github.com/alanyoungcy/bookpricer/internal/cache/redis"
	"github.com/alanyoungcy/bookpricer/internal/config"
	"github.com/alanyoungcy/bookpricer/internal/domain"
	"github.com/alanyoungcy/bookpricer/internal/notify"
	"github.com/alanyoungcy/bookpricer/internal/server/handler"
	"github.com/alanyoungcy/bookpricer/internal/store/postgres"
)

// Dependencies bundles the adapters a mode may use. Fields stay nil when the
// mode or configuration does not call for them.
type Dependencies struct {
	// Stores
	RunStore    domain.RunStore
	ReportStore domain.ReportStore
	ErrorStore  domain.EventErrorStore

	// Caches
	IncomeCache domain.IncomeCache
	DepthCache  domain.DepthCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader
	Archiver   domain.RunArchiver

	// Report delivery
	Senders []notify.ReportSender
	Alerter *notify.Alerter

	// Checks probes each connected backend for the health endpoint.
	Checks map[string]handler.Check
}

// Wire constructs the concrete adapters the configuration asks for and
// returns them together with a cleanup function that releases them in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: map[string]handler.Check{}}

	// --- Redis (publish and full modes, or a redis:// input) ---
	if cfg.NeedsRedis() || strings.HasPrefix(cfg.Pricer.Input, "redis://") {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient.Ping

		deps.SignalBus = redis.NewSignalBus(redisClient).WithStreamMaxLen(cfg.Redis.StreamMaxLen)
		deps.IncomeCache = redis.NewIncomeCache(redisClient)
		deps.DepthCache = redis.NewDepthCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, logger)
	}

	// --- PostgreSQL (full mode) ---
	if cfg.NeedsPostgres() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Checks["postgres"] = pgClient.Ping

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RunStore = postgres.NewRunStore(pool)
		deps.ReportStore = postgres.NewReportStore(pool)
		deps.ErrorStore = postgres.NewEventErrorStore(pool)
	}

	// --- S3 blob storage (full mode archive, or an s3:// input) ---
	if cfg.NeedsS3() {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Checks["s3"] = s3Client.Health

		deps.BlobReader = s3blob.NewReader(s3Client)
		if cfg.NeedsPostgres() && cfg.S3.Archive {
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		}
	}

	// --- Alerts (full mode) ---
	var alertSenders []notify.AlertSender
	if cfg.NeedsPostgres() {
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
			alertSenders = append(alertSenders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
		}
		if cfg.Notify.DiscordWebhookURL != "" {
			alertSenders = append(alertSenders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
		}
	}
	if len(alertSenders) > 0 {
		deps.Alerter = notify.NewAlerter(alertSenders, cfg.Notify.Events, logger).
			WithCooldown(cfg.Notify.CooldownDuration())
	}

	// --- Report senders beyond stdout ---
	if deps.SignalBus != nil && cfg.NeedsRedis() {
		deps.Senders = append(deps.Senders, notify.NewBusSender(deps.SignalBus, deps.IncomeCache))
	}
	if deps.ReportStore != nil {
		deps.Senders = append(deps.Senders, notify.NewStoreSender(deps.ReportStore, cfg.Postgres.ReportBatch))
	}
	if cfg.Kafka.ReportTopic != "" {
		kw := notify.NewKafkaSender(cfg.Kafka.Brokers, cfg.Kafka.ReportTopic)
		closers = append(closers, func() { _ = kw.Close() })
		deps.Senders = append(deps.Senders, kw)
	}
	if deps.Alerter != nil {
		deps.Senders = append(deps.Senders, notify.NewAvailabilityWatch(deps.Alerter))
	}

	return deps, cleanup, nil
}
