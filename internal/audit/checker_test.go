package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kartabank/kartabank/internal/ledger"
)

func TestVerifyConservation(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	before := Snapshot{Balances: map[uuid.UUID]int64{a: 500, b: 100}}
	after := Snapshot{Balances: map[uuid.UUID]int64{a: 300, b: 550}}

	// 600 -> 850: a 250 deposit explains the movement.
	if err := VerifyConservation(before, after, 250); err != nil {
		t.Fatalf("expected conservation to hold: %v", err)
	}

	if err := VerifyConservation(before, after, 100); !errors.Is(err, ErrConservationViolated) {
		t.Fatalf("expected ErrConservationViolated, got %v", err)
	}
}

func TestCheckerOverClosedSequence(t *testing.T) {
	led := ledger.NewInMemory()
	ctx := context.Background()

	accounts := make([]uuid.UUID, 3)
	for i := range accounts {
		accounts[i] = uuid.New()
		ledger.Register(led, accounts[i])
	}

	since := time.Now().UTC().Add(-time.Minute)

	var deposited int64
	for i, amount := range []int64{1_000, 2_500, 750} {
		if _, _, err := led.Deposit(ctx, accounts[i], amount, "", fmt.Sprintf("dep-%d", i)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		deposited += amount
	}

	transfers := []struct {
		from, to int
		amount   int64
	}{
		{0, 1, 300},
		{1, 2, 1_200},
		{2, 0, 50},
	}
	for i, tr := range transfers {
		if _, err := led.Transfer(ctx, accounts[tr.from], accounts[tr.to], tr.amount, "", fmt.Sprintf("tx-%d", i)); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	checker := NewChecker(led)
	report, err := checker.Check(ctx, 0, since, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if report.NetDeposited != deposited {
		t.Fatalf("expected net deposited %d, got %d", deposited, report.NetDeposited)
	}
	if report.ClosingTotal != deposited {
		t.Fatalf("expected closing total %d, got %d", deposited, report.ClosingTotal)
	}
	if report.Drift() != 0 {
		t.Fatalf("unexpected drift: %d", report.Drift())
	}
}

func TestCheckerReportsDrift(t *testing.T) {
	led := ledger.NewInMemory()
	ctx := context.Background()

	a := uuid.New()
	ledger.Register(led, a)
	// Balance injected outside the ledger's write path, as a corruption would be.
	ledger.SeedBalance(led, a, 999)

	checker := NewChecker(led)
	report, err := checker.Check(ctx, 0, time.Time{}, time.Now().UTC())
	if !errors.Is(err, ErrConservationViolated) {
		t.Fatalf("expected ErrConservationViolated, got %v", err)
	}
	if report.Drift() != 999 {
		t.Fatalf("expected drift 999, got %d", report.Drift())
	}
}
