package main

import (
	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"github.com/spf13/cobra"

	"github.com/dpup/wolfcreekpass/server/internal/config"
)

// rootCommand creates the command tree
func rootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "wolfcreek",
		Short:         "Wolf Creek Pass road condition monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(logging.EnsureLogger(cmd.Context()))

			loaded, err := config.Load(prefab.Config)
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}
	cfg = config.DefaultConfig()

	rootCmd.AddCommand(
		runCommand(cfg),
		queryCommand(cfg),
		migrateCommand(cfg),
	)
	return rootCmd
}
