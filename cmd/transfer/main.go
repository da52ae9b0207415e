package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kartabank/kartabank/internal/app"
	"github.com/kartabank/kartabank/internal/config"
	"github.com/kartabank/kartabank/internal/infra"
	"github.com/kartabank/kartabank/internal/logging"
	"github.com/kartabank/kartabank/internal/transfer"
)

func main() {
	var (
		deposit     = flag.Bool("deposit", false, "inject funds into the destination instead of transferring")
		from        = flag.String("from", "", "source card number (transfers only)")
		to          = flag.String("to", "", "destination card number or phone alias")
		amount      = flag.Int64("amount", 0, "amount in minor units")
		description = flag.String("description", "", "free-text description")
		clientTxID  = flag.String("client-tx-id", "", "client transaction id for idempotent retries")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	services, err := app.New(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("build services", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("close services", "error", err)
		}
	}()

	if *deposit {
		acct, err := services.Transfer.Deposit(ctx, transfer.DepositInput{
			TargetIdentifier: *to,
			Amount:           *amount,
			Description:      *description,
			ClientTxID:       *clientTxID,
		})
		if err != nil {
			logger.Error("deposit failed", "error", err)
			os.Exit(1)
		}
		logger.Info("deposit completed", "account", acct.ID, "balance", acct.Balance)
		return
	}

	entry, err := services.Transfer.Transfer(ctx, transfer.TransferInput{
		FromIdentifier: *from,
		ToIdentifier:   *to,
		Amount:         *amount,
		Description:    *description,
		ClientTxID:     *clientTxID,
	})
	if err != nil {
		logger.Error("transfer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("transfer completed", "entry_id", entry.ID, "from", entry.FromID, "to", entry.ToID, "amount", entry.Amount)
}
