package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arthurmvo/Coffee-Shop/app"
	"github.com/arthurmvo/Coffee-Shop/config"
)

func newJWKSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Fetch the configured signing key set and list its keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.New(ctx)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			fetchCtx, cancel := context.WithTimeout(ctx, cfg.Auth.KeyRefreshTimeout)
			defer cancel()

			set, err := app.NewKeySource(&cfg.Auth).FetchKeySet(fetchCtx)
			if err != nil {
				return fmt.Errorf("failed to fetch key set: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KID\tALG")
			for _, kid := range set.IDs() {
				key, _ := set.Lookup(kid)
				alg := key.Algorithm
				if alg == "" {
					alg = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", kid, alg)
			}
			return w.Flush()
		},
	}
}
