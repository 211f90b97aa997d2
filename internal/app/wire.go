package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/nftmart/internal/blob/s3"
	"github.com/alanyoungcy/nftmart/internal/cache/redis"
	"github.com/alanyoungcy/nftmart/internal/clock"
	"github.com/alanyoungcy/nftmart/internal/config"
	"github.com/alanyoungcy/nftmart/internal/crypto"
	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/notify"
	"github.com/alanyoungcy/nftmart/internal/server/handler"
	"github.com/alanyoungcy/nftmart/internal/server/middleware"
	"github.com/alanyoungcy/nftmart/internal/store/memory"
	"github.com/alanyoungcy/nftmart/internal/store/postgres"
)

// Dependencies bundles every concrete collaborator the daemon runs with. It
// is constructed by Wire and torn down by the returned cleanup function.
// Optional collaborators are nil when their backing service is disabled.
type Dependencies struct {
	Backend    domain.Backend
	Clock      domain.Clock
	EventStore domain.EventStore

	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	ReplayGuard domain.ReplayGuard
	SignalBus   domain.SignalBus

	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	Notifier *notify.Notifier
	Operator domain.AccountID

	// HealthChecks probes every external service that was wired.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Clock:        clock.NewWall(cfg.Chain.Genesis, cfg.Chain.BlockTime.Duration),
		HealthChecks: make(map[string]handler.HealthCheck),
	}

	operator, err := resolveOperator(cfg.Operator)
	if err != nil {
		return fail(fmt.Errorf("wire: operator: %w", err))
	}
	deps.Operator = operator

	// --- State backend ---
	switch cfg.Backend.Kind {
	case "postgres":
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
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Backend = postgres.NewBackend(pool)
		deps.EventStore = postgres.NewEventStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	default:
		deps.Backend = memory.New()
		logger.WarnContext(ctx, "wire: using in-memory backend, state is lost on restart")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.ReplayGuard = redis.NewReplayGuard(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		deps.ReplayGuard = middleware.NewLocalReplayGuard()
	}

	// --- S3 blob storage (only for the archive job) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
		if deps.EventStore != nil {
			deps.Archiver = s3blob.NewEventArchiver(deps.EventStore, deps.BlobWriter, deps.BlobReader,
				cfg.Archive.Prefix, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	return deps, cleanup, nil
}

// resolveOperator returns the admin account: from the configured key when
// one is present, else from the bare address. Without either, admin routes
// are unreachable.
func resolveOperator(cfg config.OperatorConfig) (domain.AccountID, error) {
	if cfg.PrivateKey != "" || cfg.EncryptedKeyPath != "" {
		signer, err := crypto.LoadSigner(crypto.KeyConfig{
			RawPrivateKey:    cfg.PrivateKey,
			EncryptedKeyPath: cfg.EncryptedKeyPath,
			KeyPassword:      cfg.KeyPassword,
		})
		if err != nil {
			return domain.AccountID{}, err
		}
		return signer.Address(), nil
	}
	var who domain.AccountID
	if cfg.Address != "" {
		if err := who.UnmarshalText([]byte(cfg.Address)); err != nil {
			return domain.AccountID{}, err
		}
	}
	return who, nil
}
