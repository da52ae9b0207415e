package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[uuid.UUID]Account
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[uuid.UUID]Account)}
}

func (r *memoryRepository) Create(_ context.Context, acct Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.Number == acct.Number {
			return ErrDuplicateNumber
		}
	}
	r.storage[acct.ID] = acct
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acct, ok := r.storage[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepository) LinkPhone(_ context.Context, id uuid.UUID, phone string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.storage[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	acct.Phone = phone
	r.storage[id] = acct
	return acct, nil
}

func (r *memoryRepository) Resolve(_ context.Context, identifier string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var aliasMatches []Account
	for _, acct := range r.storage {
		if acct.Number == identifier {
			return acct, nil
		}
		if acct.Phone != "" && acct.Phone == identifier {
			aliasMatches = append(aliasMatches, acct)
		}
	}

	switch len(aliasMatches) {
	case 0:
		return Account{}, ErrNotFound
	case 1:
		return aliasMatches[0], nil
	default:
		return Account{}, ErrAmbiguousMatch
	}
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []Account
	for _, acct := range r.storage {
		if acct.OwnerID == ownerID {
			accounts = append(accounts, acct)
		}
	}
	return accounts, nil
}
