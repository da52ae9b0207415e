package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists account metadata and resolves routing identifiers.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	Resolve(ctx context.Context, identifier string) (Account, error)
	LinkPhone(ctx context.Context, id uuid.UUID, phone string) (Account, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error)
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

// Create inserts an account record. The caller supplies all identifiers,
// including the card number.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (id, owner_id, number, phone, balance, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		acct.ID, acct.OwnerID, acct.Number, acct.Phone, acct.Balance, acct.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateNumber
		}
		return err
	}
	return nil
}

// Get fetches an account by primary identifier.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, number, COALESCE(phone, ''), balance, created_at
        FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// LinkPhone attaches a phone alias to an existing account, or clears it when
// phone is empty, and returns the updated record.
func (r *PostgresRepository) LinkPhone(ctx context.Context, id uuid.UUID, phone string) (Account, error) {
	row := r.db.QueryRow(ctx, `UPDATE accounts SET phone = NULLIF($2, '') WHERE id = $1
        RETURNING id, owner_id, number, COALESCE(phone, ''), balance, created_at`, id, phone)
	return scanAccount(row)
}

// Resolve accepts either a card number or a linked phone alias. Card numbers
// are unique and win; a phone alias matching more than one account fails with
// ErrAmbiguousMatch rather than returning an arbitrary row.
func (r *PostgresRepository) Resolve(ctx context.Context, identifier string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, owner_id, number, COALESCE(phone, ''), balance, created_at
        FROM accounts WHERE number = $1`, identifier)
	acct, err := scanAccount(row)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, owner_id, number, COALESCE(phone, ''), balance, created_at
        FROM accounts WHERE phone = $1 LIMIT 2`, identifier)
	if err != nil {
		return Account{}, err
	}
	defer rows.Close()

	matches := make([]Account, 0, 2)
	for rows.Next() {
		var a Account
		var createdAt time.Time
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Phone, &a.Balance, &createdAt); err != nil {
			return Account{}, err
		}
		a.CreatedAt = createdAt.UTC()
		matches = append(matches, a)
	}
	if err := rows.Err(); err != nil {
		return Account{}, err
	}

	switch len(matches) {
	case 0:
		return Account{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return Account{}, ErrAmbiguousMatch
	}
}

// ListByOwner returns all accounts held by the given owner, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT id, owner_id, number, COALESCE(phone, ''), balance, created_at
        FROM accounts WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var createdAt time.Time
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Phone, &a.Balance, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = createdAt.UTC()
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var a Account
	var createdAt time.Time
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Phone, &a.Balance, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
