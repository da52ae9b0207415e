package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kartabank/kartabank/internal/audit"
	"github.com/kartabank/kartabank/internal/config"
	"github.com/kartabank/kartabank/internal/infra"
	"github.com/kartabank/kartabank/internal/ledger"
	"github.com/kartabank/kartabank/internal/logging"
)

func main() {
	opening := flag.Int64("opening-total", 0, "balance total at the start of the audit window, in minor units")
	since := flag.String("since", "", "start of the audit window (RFC 3339); defaults to the beginning of time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	windowStart := time.Time{}
	if *since != "" {
		windowStart, err = time.Parse(time.RFC3339, *since)
		if err != nil {
			logger.Error("parse since", "error", err)
			os.Exit(1)
		}
	}

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checker := audit.NewChecker(ledger.NewPostgresLedger(db, cfg.LockTimeout))

	report, err := checker.Check(ctx, *opening, windowStart, time.Now().UTC())
	if err != nil {
		if errors.Is(err, audit.ErrConservationViolated) {
			logger.Error("conservation violated",
				"opening_total", report.OpeningTotal,
				"closing_total", report.ClosingTotal,
				"net_deposited", report.NetDeposited,
				"drift", report.Drift())
			os.Exit(2)
		}
		logger.Error("audit failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ledger consistent",
		"closing_total", report.ClosingTotal,
		"net_deposited", report.NetDeposited)
}
