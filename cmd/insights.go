package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var insightsCmd = &cobra.Command{
	Use:   "insights FILE",
	Short: "Print ATS insights for a résumé without storing anything",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ctx := context.Background()

		a := mustBootstrap()
		defer a.Close()

		if err := a.withPipeline(ctx); err != nil {
			a.logger.Fatal("preparing the ingestion pipeline", zap.Error(err))
		}

		insights, err := a.pipeline.Insights(ctx, args[0])
		if err != nil {
			a.logger.Fatal("getting insights", zap.String("file", args[0]), zap.Error(err))
		}

		if err := printJSON(insights); err != nil {
			a.logger.Fatal("printing insights", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
}
