package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpup/wolfcreekpass/server/internal/app"
	"github.com/dpup/wolfcreekpass/server/internal/config"
)

func migrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the storage schema, tables and buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s storage is ready\n", cfg.Storage.Backend)
			return nil
		},
	}
}
