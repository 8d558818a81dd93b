package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/omenmarkets/omen/internal/blob/s3"
	"github.com/omenmarkets/omen/internal/cache/redis"
	"github.com/omenmarkets/omen/internal/config"
	"github.com/omenmarkets/omen/internal/crypto"
	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/engine"
	"github.com/omenmarkets/omen/internal/notify"
	"github.com/omenmarkets/omen/internal/oracle"
	"github.com/omenmarkets/omen/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Engine
	Engine *engine.Engine

	// Stores
	MarketStore     domain.MarketStore
	PositionStore   domain.PositionStore
	WagerStore      domain.WagerStore
	LedgerStore     domain.LedgerStore
	ResolutionStore domain.ResolutionStore
	AuditStore      domain.AuditStore

	// Caches
	MarketCache domain.MarketCache
	OddsCache   domain.OddsCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// AdminAPIKey is the resolved admin credential guarding privileged routes.
	AdminAPIKey string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.WagerStore = postgres.NewWagerStore(pool)
	deps.LedgerStore = postgres.NewLedgerStore(pool)
	deps.ResolutionStore = postgres.NewResolutionStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.OddsCache = redis.NewOddsCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only when archival is enabled) ---
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.BlobDeleter = reader // same type implements BlobDeleter
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			postgres.NewMarketStore(pool),
			postgres.NewPositionStore(pool),
			postgres.NewWagerStore(pool),
			deps.AuditStore,
		)
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Admin credential ---
	adminKey, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Admin.ApiKey,
		EncryptedPath: cfg.Admin.EncryptedKeyPath,
		Password:      cfg.Admin.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: admin credential: %w", err)
	}
	deps.AdminAPIKey = adminKey

	// --- Settlement engine ---
	var adjudicator domain.Adjudicator
	if cfg.Oracle.URL != "" {
		adjudicator = oracle.NewHTTPAdjudicator(cfg.Oracle.URL, cfg.Oracle.ApiKey, cfg.Oracle.Timeout.Duration)
	} else {
		// Without an external oracle, disputes fall back to upholding the
		// original proposal.
		adjudicator = oracle.Confirming()
	}

	deps.Engine = engine.New(engine.Config{
		LivenessWindow: cfg.Engine.LivenessWindow.Duration,
		MinBond:        cfg.Engine.MinBond,
		MaxStake:       cfg.Engine.MaxStake,
	}, adjudicator, time.Now)

	if err := rehydrate(ctx, deps); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: rehydrate engine: %w", err)
	}

	return deps, cleanup, nil
}

// rehydratePageSize bounds each market page loaded during startup recovery.
const rehydratePageSize = 500

// rehydrate loads the persisted ledger state into the in-memory engine so a
// restarted process resumes exactly where the previous one stopped.
func rehydrate(ctx context.Context, deps *Dependencies) error {
	var markets []domain.Market
	for offset := 0; ; offset += rehydratePageSize {
		page, err := deps.MarketStore.List(ctx, domain.ListOpts{
			Limit:  rehydratePageSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("list markets: %w", err)
		}
		markets = append(markets, page...)
		if len(page) < rehydratePageSize {
			break
		}
	}

	var positions []domain.Position
	for _, m := range markets {
		p, err := deps.PositionStore.ListByMarket(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("list positions for %s: %w", m.ID, err)
		}
		positions = append(positions, p...)
	}

	requests, err := deps.ResolutionStore.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending resolutions: %w", err)
	}

	if err := deps.Engine.Restore(markets, positions, requests); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "engine state restored",
		slog.Int("markets", len(markets)),
		slog.Int("positions", len(positions)),
		slog.Int("pending_resolutions", len(requests)),
	)
	return nil
}
