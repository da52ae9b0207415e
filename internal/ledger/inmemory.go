package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kartabank/kartabank/internal/account"
)

type inMemoryLedger struct {
	mu         sync.RWMutex
	balances   map[uuid.UUID]int64
	entries    []Entry
	byClientTx map[string]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests. Accounts must be registered before they can be posted to.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:   make(map[uuid.UUID]int64),
		byClientTx: make(map[string]Entry),
	}
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromID, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := KindTransfer + ":" + clientTxID
	if prior, exists := l.byClientTx[key]; exists {
		return prior, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[fromID]
	if !ok {
		return Entry{}, fmt.Errorf("account %s: %w", fromID, account.ErrNotFound)
	}
	if _, ok := l.balances[toID]; !ok {
		return Entry{}, fmt.Errorf("account %s: %w", toID, account.ErrNotFound)
	}

	if fromBalance < amount {
		return Entry{}, ErrInsufficientFunds
	}

	l.balances[fromID] -= amount
	l.balances[toID] += amount

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
	l.entries = append(l.entries, entry)
	l.byClientTx[key] = entry
	return entry, nil
}

func (l *inMemoryLedger) Deposit(_ context.Context, toID uuid.UUID, amount int64, description, clientTxID string) (Entry, int64, error) {
	if amount <= 0 {
		return Entry{}, 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := KindDeposit + ":" + clientTxID
	if prior, exists := l.byClientTx[key]; exists {
		return prior, l.balances[prior.ToID], ErrDuplicateTransaction
	}

	if _, ok := l.balances[toID]; !ok {
		return Entry{}, 0, fmt.Errorf("account %s: %w", toID, account.ErrNotFound)
	}

	l.balances[toID] += amount

	entry := Entry{
		ID:          uuid.New(),
		ToID:        toID,
		Amount:      amount,
		Kind:        KindDeposit,
		Description: description,
		ClientTxID:  clientTxID,
		CreatedAt:   time.Now().UTC(),
	}
	l.entries = append(l.entries, entry)
	l.byClientTx[key] = entry
	return entry, l.balances[toID], nil
}

func (l *inMemoryLedger) Entries(_ context.Context, accountID uuid.UUID, limit int32) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultEntriesLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []Entry
	for i := len(l.entries) - 1; i >= 0 && int32(len(entries)) < limit; i-- {
		e := l.entries[i]
		if e.FromID == accountID || e.ToID == accountID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (l *inMemoryLedger) SumBalances(_ context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, balance := range l.balances {
		total += balance
	}
	return total, nil
}

func (l *inMemoryLedger) NetDeposited(_ context.Context, since, until time.Time) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, e := range l.entries {
		if e.Kind != KindDeposit {
			continue
		}
		if e.CreatedAt.Before(since) || !e.CreatedAt.Before(until) {
			continue
		}
		total += e.Amount
	}
	return total, nil
}
