package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kartabank/kartabank/internal/account"
	"github.com/kartabank/kartabank/internal/ledger"
)

func newTestGuard(t *testing.T) (*Guard, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return NewGuard(cache, time.Minute), cleanup
}

func TestGuardReserveRejectsDuplicate(t *testing.T) {
	guard, cleanup := newTestGuard(t)
	defer cleanup()

	ctx := context.Background()
	if err := guard.Reserve(ctx, "tx-1"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := guard.Reserve(ctx, "tx-1"); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
}

func TestGuardReleaseAllowsRetry(t *testing.T) {
	guard, cleanup := newTestGuard(t)
	defer cleanup()

	ctx := context.Background()
	if err := guard.Reserve(ctx, "tx-2"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	guard.Release(ctx, "tx-2")
	if err := guard.Reserve(ctx, "tx-2"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestServiceWithGuardFailsFastOnDuplicate(t *testing.T) {
	guard, cleanup := newTestGuard(t)
	defer cleanup()

	repo := account.NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led, guard, nil, nil)

	ctx := context.Background()
	a := newTestAccount(t, repo, led, "4000 0000 0000 0020", "", 1_000)
	b := newTestAccount(t, repo, led, "4000 0000 0000 0021", "", 0)

	input := TransferInput{FromIdentifier: a.Number, ToIdentifier: b.Number, Amount: 100, ClientTxID: "guarded-1"}
	if _, err := svc.Transfer(ctx, input); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := svc.Transfer(ctx, input); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if got := ledger.BalanceOf(led, a.ID); got != 900 {
		t.Fatalf("duplicate mutated balance: %d", got)
	}
}

func TestServiceReleasesReservationOnFailure(t *testing.T) {
	guard, cleanup := newTestGuard(t)
	defer cleanup()

	repo := account.NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led, guard, nil, nil)

	ctx := context.Background()
	a := newTestAccount(t, repo, led, "4000 0000 0000 0022", "", 50)
	b := newTestAccount(t, repo, led, "4000 0000 0000 0023", "", 0)

	input := TransferInput{FromIdentifier: a.Number, ToIdentifier: b.Number, Amount: 100, ClientTxID: "guarded-2"}
	if _, err := svc.Transfer(ctx, input); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed attempt must not poison the id for a corrected retry.
	ledger.SeedBalance(led, a.ID, 500)
	if _, err := svc.Transfer(ctx, input); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}
