// Package app assembles the transfer engine from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kartabank/kartabank/internal/account"
	"github.com/kartabank/kartabank/internal/config"
	"github.com/kartabank/kartabank/internal/events"
	"github.com/kartabank/kartabank/internal/infra"
	"github.com/kartabank/kartabank/internal/ledger"
	"github.com/kartabank/kartabank/internal/transfer"
)

// Services bundles the wired transfer engine with its supporting stores.
type Services struct {
	Transfer *transfer.Service
	Accounts account.Repository
	Ledger   ledger.Ledger

	closers []func() error
}

// Close releases the optional resources owned by the services (Redis client,
// Kafka writer). The database pool stays with the caller.
func (s *Services) Close() error {
	var errs []error
	for _, closer := range s.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the transfer engine over the given connection pool: Postgres
// ledger and account store, the Redis duplicate guard when REDIS_URL is set,
// and Kafka event publishing when brokers are configured.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, logger *slog.Logger) (*Services, error) {
	accounts := account.NewPostgresRepository(db)
	ledgerBackend := ledger.NewPostgresLedger(db, cfg.LockTimeout)

	services := &Services{Accounts: accounts, Ledger: ledgerBackend}

	guard, closeGuard, err := NewGuard(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeGuard != nil {
		services.closers = append(services.closers, closeGuard)
	}

	publisher, closePublisher := NewPublisher(cfg, logger)
	if closePublisher != nil {
		services.closers = append(services.closers, closePublisher)
	}

	services.Transfer = transfer.NewService(accounts, ledgerBackend, guard, publisher, logger)
	return services, nil
}

// NewGuard builds the duplicate-reservation guard when Redis is configured.
// Without a REDIS_URL the guard is nil and the engine relies solely on the
// ledger's unique constraint.
func NewGuard(ctx context.Context, cfg config.Config) (*transfer.Guard, func() error, error) {
	if cfg.RedisURL == "" {
		return nil, nil, nil
	}
	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return transfer.NewGuard(cache, cfg.GuardTTL), cache.Close, nil
}

// NewPublisher selects the completion-event publisher: Kafka when brokers
// are configured, the logging stub otherwise.
func NewPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, func() error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLoggerPublisher(logger), nil
	}
	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
	return publisher, publisher.Close
}
