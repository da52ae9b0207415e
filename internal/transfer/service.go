package transfer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kartabank/kartabank/internal/account"
	"github.com/kartabank/kartabank/internal/events"
	"github.com/kartabank/kartabank/internal/ledger"
)

// ErrSelfTransfer indicates source and destination resolved to the same
// account. A self-transfer is rejected before any write.
var ErrSelfTransfer = errors.New("source and destination are the same account")

// Service is the transfer engine. It resolves routing identifiers, validates
// the request, delegates the atomic unit to the ledger backend, and publishes
// a completion event after commit. Guard and publisher are optional.
type Service struct {
	accounts  account.Repository
	ledger    ledger.Ledger
	guard     *Guard
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService constructs the transfer engine.
func NewService(accounts account.Repository, ledgerBackend ledger.Ledger, guard *Guard, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		ledger:    ledgerBackend,
		guard:     guard,
		publisher: publisher,
		logger:    logger,
	}
}

// TransferInput captures the data needed to move funds between accounts.
// FromIdentifier and ToIdentifier are card numbers or, for the destination,
// optionally a linked phone alias.
type TransferInput struct {
	FromIdentifier string
	ToIdentifier   string
	Amount         int64
	Description    string
	ClientTxID     string
}

// DepositInput captures the data needed to inject funds into an account.
type DepositInput struct {
	TargetIdentifier string
	Amount           int64
	Description      string
	ClientTxID       string
}

// Transfer moves Amount minor units between two accounts and returns the
// ledger entry recorded for the movement. Validation errors fire before any
// write; the debit, credit and append are a single atomic unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.Entry, error) {
	from, err := s.accounts.Resolve(ctx, input.FromIdentifier)
	if err != nil {
		return ledger.Entry{}, err
	}
	to, err := s.accounts.Resolve(ctx, input.ToIdentifier)
	if err != nil {
		return ledger.Entry{}, err
	}

	if input.Amount <= 0 {
		return ledger.Entry{}, ledger.ErrInvalidAmount
	}
	if from.ID == to.ID {
		return ledger.Entry{}, ErrSelfTransfer
	}

	clientTxID := input.ClientTxID
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	if s.guard != nil {
		if err := s.guard.Reserve(ctx, clientTxID); err != nil {
			return ledger.Entry{}, err
		}
	}

	entry, err := s.ledger.Transfer(ctx, from.ID, to.ID, input.Amount, input.Description, clientTxID)
	if err != nil {
		if s.guard != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			// Free the reservation so a retry with the same id can proceed.
			s.guard.Release(ctx, clientTxID)
		}
		return entry, err
	}

	s.publish(ctx, entry)
	return entry, nil
}

// Deposit injects Amount minor units into the target account and returns the
// account with its updated balance. Negative amounts are rejected; a deposit
// writes a ledger entry like any other balance mutation.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (account.Account, error) {
	target, err := s.accounts.Resolve(ctx, input.TargetIdentifier)
	if err != nil {
		return account.Account{}, err
	}

	if input.Amount <= 0 {
		return account.Account{}, ledger.ErrInvalidAmount
	}

	clientTxID := input.ClientTxID
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	if s.guard != nil {
		if err := s.guard.Reserve(ctx, clientTxID); err != nil {
			return account.Account{}, err
		}
	}

	entry, balance, err := s.ledger.Deposit(ctx, target.ID, input.Amount, input.Description, clientTxID)
	if err != nil {
		if s.guard != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			s.guard.Release(ctx, clientTxID)
		}
		return account.Account{}, err
	}

	s.publish(ctx, entry)

	target.Balance = balance
	return target, nil
}

// History returns recent ledger entries touching the resolved account.
func (s *Service) History(ctx context.Context, identifier string, limit int32) ([]ledger.Entry, error) {
	acct, err := s.accounts.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.ledger.Entries(ctx, acct.ID, limit)
}

func (s *Service) publish(ctx context.Context, entry ledger.Entry) {
	if s.publisher == nil {
		return
	}
	event := events.TransactionCompleted{
		EntryID:    entry.ID,
		FromID:     entry.FromID,
		ToID:       entry.ToID,
		Amount:     entry.Amount,
		Kind:       entry.Kind,
		OccurredAt: entry.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish completion event", "entry_id", entry.ID, "error", err)
	}
}
