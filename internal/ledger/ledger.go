package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInsufficientFunds occurs when a debit would take the source account
	// balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrDuplicateTransaction indicates the provided client transaction
	// identifier was already posted; the original entry is returned alongside
	// so the caller can treat the retry as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTimeout indicates the row locks for the atomic unit could not be
	// acquired within the configured bound. No mutation occurred, so the
	// caller may safely retry.
	ErrTimeout = errors.New("ledger lock wait timed out")
)

const (
	// KindTransfer marks an entry produced by a two-account transfer.
	KindTransfer = "transfer"
	// KindDeposit marks an entry produced by an external fund injection.
	KindDeposit = "deposit"

	// DefaultEntriesLimit caps an Entries read when the caller passes a
	// non-positive limit.
	DefaultEntriesLimit = 50
)

// Entry is the immutable audit record written for every balance-affecting
// operation. FromID is uuid.Nil for deposits. Entries are append-only and are
// never read back to derive balances; the balance is materialized on the
// account row.
type Entry struct {
	ID          uuid.UUID
	FromID      uuid.UUID
	ToID        uuid.UUID
	Amount      int64
	Kind        string
	Description string
	ClientTxID  string
	CreatedAt   time.Time
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
// Transfer and Deposit each run as one atomic unit: the balance reads, the
// adjustments and the entry append are isolated from concurrent postings, and
// any failure rolls the whole unit back.
type Ledger interface {
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, error)
	Deposit(ctx context.Context, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, int64, error)
	Entries(ctx context.Context, accountID uuid.UUID, limit int32) ([]Entry, error)
	SumBalances(ctx context.Context) (int64, error)
	NetDeposited(ctx context.Context, since, until time.Time) (int64, error)
}
