package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/config"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/logger"
	"hypercertsIndexer/internal/storage/postgres"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMigrate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema migrated")

	if len(cfg.Seeds) == 0 {
		return nil
	}
	signatures, err := events.Signatures()
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, cfg.Seeds, signatures); err != nil {
		return err
	}
	for _, seed := range cfg.Seeds {
		log.Info("contract registered",
			zap.Uint64("chain_id", seed.ChainID),
			zap.String("address", seed.Address),
			zap.Uint64("start_block", seed.StartBlock),
			zap.Strings("events", seed.Events),
		)
	}
	return nil
}
