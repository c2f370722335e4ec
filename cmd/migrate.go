package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()

		a := mustBootstrap()
		defer a.Close()

		if err := a.withStore(ctx, true); err != nil {
			a.logger.Fatal("migrating the database", zap.Error(err))
		}

		a.logger.Info("database schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
