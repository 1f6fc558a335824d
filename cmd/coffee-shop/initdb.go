package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arthurmvo/Coffee-Shop/repositories/sqldb"
)

var errNotConfirmed = errors.New("initdb drops every stored drink: pass --yes to confirm")

func newInitDBCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Drop and recreate the drinks table with a single seed drink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errNotConfirmed
			}

			ctx := cmd.Context()
			cfg, logger, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			factory, err := sqldb.NewRepositoryFactory(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = factory.Close() }()

			seed, err := factory.ResetSchema(ctx)
			if err != nil {
				logger.Error("database reset failed", zap.Error(err))
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "drinks table reset, seeded %q with id %d\n", seed.Title, seed.ID)
			return err
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm that all stored drinks are deleted")
	return cmd
}
