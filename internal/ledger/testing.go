package ledger

import "github.com/google/uuid"

// Register is a test helper that makes an account known to the in-memory
// ledger with a zero balance.
func Register(l Ledger, id uuid.UUID) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if _, exists := mem.balances[id]; !exists {
			mem.balances[id] = 0
		}
	}
}

// SeedBalance is a test helper that sets the balance for an account when
// using the in-memory ledger.
func SeedBalance(l Ledger, id uuid.UUID, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[id] = amount
	}
}

// BalanceOf is a test helper that reads the materialized balance from the
// in-memory ledger.
func BalanceOf(l Ledger, id uuid.UUID) int64 {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return mem.balances[id]
	}
	return 0
}
