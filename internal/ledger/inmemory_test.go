package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)
	SeedBalance(l, a, 10_000)

	entry, err := l.Transfer(ctx, a, b, 1_500, "lunch", "client-1")
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if entry.FromID != a || entry.ToID != b || entry.Amount != 1_500 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if got := BalanceOf(l, a); got != 8_500 {
		t.Fatalf("expected from balance 8500, got %d", got)
	}
	if got := BalanceOf(l, b); got != 1_500 {
		t.Fatalf("expected to balance 1500, got %d", got)
	}

	total, err := l.SumBalances(ctx)
	if err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	if total != 10_000 {
		t.Fatalf("ledger not balanced, total=%d", total)
	}
}

func TestInMemoryLedger_InvalidAmount(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)
	SeedBalance(l, a, 1_000)

	for _, amount := range []int64{0, -100} {
		if _, err := l.Transfer(ctx, a, b, amount, "", "tx"); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if got := BalanceOf(l, a); got != 1_000 {
		t.Fatalf("balance changed on rejected transfer: %d", got)
	}
	if entries, _ := l.Entries(ctx, a, 0); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestInMemoryLedger_InsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)
	SeedBalance(l, a, 500)

	if _, err := l.Transfer(ctx, a, b, 600, "", "tx"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if BalanceOf(l, a) != 500 || BalanceOf(l, b) != 0 {
		t.Fatalf("balances changed on failed transfer: a=%d b=%d", BalanceOf(l, a), BalanceOf(l, b))
	}
}

func TestInMemoryLedger_DuplicateTransaction(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)
	SeedBalance(l, a, 5_000)

	first, err := l.Transfer(ctx, a, b, 500, "", "dup")
	if err != nil {
		t.Fatalf("initial transfer failed: %v", err)
	}

	prior, err := l.Transfer(ctx, a, b, 500, "", "dup")
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if prior.ID != first.ID {
		t.Fatalf("duplicate did not return the original entry")
	}
	if got := BalanceOf(l, a); got != 4_500 {
		t.Fatalf("duplicate mutated balance: %d", got)
	}
}

func TestInMemoryLedger_DepositWritesEntry(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	Register(l, a)

	entry, balance, err := l.Deposit(ctx, a, 2_000, "top up", "dep-1")
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if balance != 2_000 {
		t.Fatalf("expected balance 2000, got %d", balance)
	}
	if entry.Kind != KindDeposit || entry.FromID != uuid.Nil || entry.ToID != a {
		t.Fatalf("unexpected deposit entry: %+v", entry)
	}

	if _, _, err := l.Deposit(ctx, a, -50, "", "dep-2"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative deposit, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentOverdraftPrevented(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)
	SeedBalance(l, a, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Transfer(ctx, a, b, 60, "", fmt.Sprintf("race-%d", i))
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success, got %d success / %d insufficient", succeeded, insufficient)
	}
	if got := BalanceOf(l, a); got != 40 {
		t.Fatalf("expected final balance 40, got %d", got)
	}
}

func TestInMemoryLedger_EntriesLimit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	Register(l, a)

	const deposits = DefaultEntriesLimit + 10
	for i := 0; i < deposits; i++ {
		if _, _, err := l.Deposit(ctx, a, 1, "", fmt.Sprintf("dep-%d", i)); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	entries, err := l.Entries(ctx, a, 0)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != DefaultEntriesLimit {
		t.Fatalf("expected default limit of %d entries, got %d", DefaultEntriesLimit, len(entries))
	}

	entries, err = l.Entries(ctx, a, 10)
	if err != nil {
		t.Fatalf("entries with limit: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
}

func TestInMemoryLedger_NetDeposited(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	Register(l, a)
	Register(l, b)

	before, _ := l.SumBalances(ctx)

	if _, _, err := l.Deposit(ctx, a, 1_000, "", "d1"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, _, err := l.Deposit(ctx, b, 250, "", "d2"); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := l.Transfer(ctx, a, b, 400, "", "t1"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	after, _ := l.SumBalances(ctx)
	if after-before != 1_250 {
		t.Fatalf("balance total moved by %d, expected 1250", after-before)
	}
}
