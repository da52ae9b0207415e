package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kartabank/kartabank/internal/ledger"
)

// ErrConservationViolated indicates the balance total moved by a different
// amount than the deposits recorded over the same period.
var ErrConservationViolated = errors.New("balance conservation violated")

// Snapshot captures account balances at a point in time.
type Snapshot struct {
	TakenAt  time.Time
	Balances map[uuid.UUID]int64
}

// Total returns the sum of all balances in the snapshot.
func (s Snapshot) Total() int64 {
	var total int64
	for _, balance := range s.Balances {
		total += balance
	}
	return total
}

// VerifyConservation confirms that the balance total moved exactly by the net
// deposited amount between two snapshots. Transfers net to zero, so deposits
// are the only permitted source of drift.
func VerifyConservation(before, after Snapshot, netDeposited int64) error {
	drift := after.Total() - before.Total()
	if drift != netDeposited {
		return fmt.Errorf("%w: balances moved by %d, deposits account for %d",
			ErrConservationViolated, drift, netDeposited)
	}
	return nil
}

// Report summarizes a conservation check over a period.
type Report struct {
	Since        time.Time
	Until        time.Time
	OpeningTotal int64
	ClosingTotal int64
	NetDeposited int64
}

// Drift is the unexplained movement of the balance total; zero when the
// ledger is consistent.
func (r Report) Drift() int64 {
	return r.ClosingTotal - r.OpeningTotal - r.NetDeposited
}

// Checker verifies conservation against the live ledger. Used by audits and
// integration tests; it only reads, never mutates.
type Checker struct {
	ledger ledger.Ledger
}

// NewChecker constructs a checker over the given ledger backend.
func NewChecker(l ledger.Ledger) *Checker {
	return &Checker{ledger: l}
}

// Check compares the current balance total with the opening total plus the
// deposits posted in [since, until). A non-zero drift returns the report
// together with ErrConservationViolated.
func (c *Checker) Check(ctx context.Context, openingTotal int64, since, until time.Time) (Report, error) {
	closing, err := c.ledger.SumBalances(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("sum balances: %w", err)
	}
	deposited, err := c.ledger.NetDeposited(ctx, since, until)
	if err != nil {
		return Report{}, fmt.Errorf("net deposited: %w", err)
	}

	report := Report{
		Since:        since,
		Until:        until,
		OpeningTotal: openingTotal,
		ClosingTotal: closing,
		NetDeposited: deposited,
	}
	if drift := report.Drift(); drift != 0 {
		return report, fmt.Errorf("%w: drift of %d minor units", ErrConservationViolated, drift)
	}
	return report, nil
}
