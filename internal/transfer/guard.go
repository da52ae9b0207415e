package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kartabank/kartabank/internal/ledger"
)

const (
	reservationPrefix  = "transfer:reservation:v1:"
	reservationTimeout = 2 * time.Second
)

// Guard reserves client transaction identifiers in Redis before the database
// transaction opens, so concurrent duplicates fail fast instead of queueing
// on row locks. The ledger's unique constraint on client_tx_id remains the
// authority; the guard is only a fast path.
type Guard struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewGuard constructs a reservation guard with the given retention period.
func NewGuard(cache *redis.Client, ttl time.Duration) *Guard {
	return &Guard{cache: cache, ttl: ttl}
}

// Reserve claims the client transaction id. A id already held returns
// ledger.ErrDuplicateTransaction.
func (g *Guard) Reserve(ctx context.Context, clientTxID string) error {
	opCtx, cancel := context.WithTimeout(ctx, reservationTimeout)
	defer cancel()

	ok, err := g.cache.SetNX(opCtx, reservationPrefix+clientTxID, "1", g.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve transaction id: %w", err)
	}
	if !ok {
		return ledger.ErrDuplicateTransaction
	}
	return nil
}

// Release frees a reservation after the posting failed, so the caller can
// retry with the same id. Best effort.
func (g *Guard) Release(ctx context.Context, clientTxID string) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reservationTimeout)
	defer cancel()
	g.cache.Del(opCtx, reservationPrefix+clientTxID)
}
