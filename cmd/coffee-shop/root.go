package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arthurmvo/Coffee-Shop/config"
	"github.com/arthurmvo/Coffee-Shop/internal/observability"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coffee-shop",
		Short:        "Coffee Shop drinks API",
		Long:         `Coffee Shop serves the drinks menu and guards changes to it with bearer tokens issued by an OAuth provider.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newInitDBCmd(), newJWKSCmd())
	return root
}

// loadConfig reads configuration from the environment and builds the logger
func loadConfig(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
