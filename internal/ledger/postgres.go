package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kartabank/kartabank/internal/account"
)

const (
	defaultLockTimeout = 3 * time.Second

	lockTimeoutSQLState     = "55P03"
	uniqueViolationSQLState = "23505"
)

// PostgresLedger persists ledger entries in PostgreSQL. Every posting runs in
// a single transaction with row-level locks so that no concurrent posting can
// observe or apply a partial debit/credit.
type PostgresLedger struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresLedger constructs a Postgres-backed ledger. A non-positive
// lockTimeout falls back to the default bound.
func NewPostgresLedger(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresLedger {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &PostgresLedger{db: db, lockTimeout: lockTimeout}
}

// Transfer debits fromID, credits toID and appends the audit entry as one
// atomic unit. Row locks are taken in ascending account id order to avoid
// deadlock between overlapping transfers.
func (l *PostgresLedger) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if prior, err := priorEntry(ctx, tx, clientTxID, KindTransfer); err == nil {
		return prior, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, mapLockError(err)
	}

	balances := map[uuid.UUID]int64{}
	for _, id := range lockOrder(fromID, toID) {
		balance, err := lockBalance(ctx, tx, id)
		if err != nil {
			return Entry{}, err
		}
		balances[id] = balance
	}

	if balances[fromID] < amount {
		return Entry{}, ErrInsufficientFunds
	}

	if err := adjustBalance(ctx, tx, fromID, -amount); err != nil {
		return Entry{}, err
	}
	if err := adjustBalance(ctx, tx, toID, amount); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		ID:          uuid.New(),
		FromID:      fromID,
		ToID:        toID,
		Amount:      amount,
		Kind:        KindTransfer,
		Description: description,
		ClientTxID:  clientTxID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			// A concurrent posting with the same id won the unique
			// constraint; surface its committed entry.
			_ = tx.Rollback(ctx)
			return l.committedEntry(ctx, clientTxID, KindTransfer)
		}
		return Entry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, mapLockError(err)
	}
	return entry, nil
}

// Deposit credits toID and appends the audit entry in one atomic unit,
// returning the entry and the updated balance.
func (l *PostgresLedger) Deposit(ctx context.Context, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, int64, error) {
	if amount <= 0 {
		return Entry{}, 0, ErrInvalidAmount
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return Entry{}, 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if prior, err := priorEntry(ctx, tx, clientTxID, KindDeposit); err == nil {
		return prior, 0, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, 0, mapLockError(err)
	}

	balance, err := lockBalance(ctx, tx, toID)
	if err != nil {
		return Entry{}, 0, err
	}

	if err := adjustBalance(ctx, tx, toID, amount); err != nil {
		return Entry{}, 0, err
	}

	entry := Entry{
		ID:          uuid.New(),
		ToID:        toID,
		Amount:      amount,
		Kind:        KindDeposit,
		Description: description,
		ClientTxID:  clientTxID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			_ = tx.Rollback(ctx)
			prior, err := l.committedEntry(ctx, clientTxID, KindDeposit)
			return prior, 0, err
		}
		return Entry{}, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Entry{}, 0, mapLockError(err)
	}
	return entry, balance + amount, nil
}

// Entries returns the most recent entries touching the account.
func (l *PostgresLedger) Entries(ctx context.Context, accountID uuid.UUID, limit int32) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultEntriesLimit
	}
	rows, err := l.db.Query(ctx, `SELECT id, COALESCE(from_id, '00000000-0000-0000-0000-000000000000'), to_id, amount, kind, description, client_tx_id, created_at
        FROM ledger_entries
        WHERE from_id = $1 OR to_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &e.Amount, &e.Kind, &e.Description, &e.ClientTxID, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumBalances returns the total of all materialized account balances.
func (l *PostgresLedger) SumBalances(ctx context.Context) (int64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total)
	return total, err
}

// NetDeposited returns the sum of deposit amounts posted in [since, until).
// Transfers net to zero, so this is the only way the balance total moves.
func (l *PostgresLedger) NetDeposited(ctx context.Context, since, until time.Time) (int64, error) {
	var total int64
	err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
        WHERE kind = $1 AND created_at >= $2 AND created_at < $3`,
		KindDeposit, since.UTC(), until.UTC()).Scan(&total)
	return total, err
}

func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin ledger transaction: %w", err)
	}
	// lock_timeout bounds every FOR UPDATE wait inside this transaction.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return tx, nil
}

func lockOrder(a, b uuid.UUID) []uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return []uuid.UUID{a, b}
	}
	return []uuid.UUID{b, a}
}

func lockBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", id, account.ErrNotFound)
		}
		return 0, mapLockError(err)
	}
	return balance, nil
}

func adjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2 AND balance + $1 >= 0`, delta, id)
	if err != nil {
		return mapLockError(err)
	}
	if tag.RowsAffected() == 0 {
		// The row is already locked by us, so a zero update means the
		// adjustment would have gone negative.
		return ErrInsufficientFunds
	}
	return nil
}

func appendEntry(ctx context.Context, tx pgx.Tx, entry Entry) error {
	var fromID any
	if entry.FromID != uuid.Nil {
		fromID = entry.FromID
	}
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, from_id, to_id, amount, kind, description, client_tx_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, fromID, entry.ToID, entry.Amount, entry.Kind, entry.Description, entry.ClientTxID, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQLState {
			return ErrDuplicateTransaction
		}
		return mapLockError(err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func priorEntry(ctx context.Context, q rowQuerier, clientTxID, kind string) (Entry, error) {
	var e Entry
	var createdAt time.Time
	err := q.QueryRow(ctx, `SELECT id, COALESCE(from_id, '00000000-0000-0000-0000-000000000000'), to_id, amount, kind, description, client_tx_id, created_at
        FROM ledger_entries WHERE client_tx_id = $1 AND kind = $2`, clientTxID, kind).
		Scan(&e.ID, &e.FromID, &e.ToID, &e.Amount, &e.Kind, &e.Description, &e.ClientTxID, &createdAt)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt = createdAt.UTC()
	return e, nil
}

// committedEntry fetches the entry a concurrent duplicate committed, so the
// caller still receives the original posting alongside the duplicate error.
func (l *PostgresLedger) committedEntry(ctx context.Context, clientTxID, kind string) (Entry, error) {
	prior, err := priorEntry(ctx, l.db, clientTxID, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrDuplicateTransaction
		}
		return Entry{}, err
	}
	return prior, ErrDuplicateTransaction
}

func mapLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockTimeoutSQLState {
		return ErrTimeout
	}
	return err
}
