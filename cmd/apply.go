package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a candidate to an open job",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		candidateID := parseID("candidate", cmd.Flag("candidate").Value.String())
		jobID := parseID("job", cmd.Flag("job").Value.String())

		a := mustBootstrap()
		defer a.Close()

		if err := a.withEngine(ctx, false); err != nil {
			a.logger.Fatal("preparing the match engine", zap.Error(err))
		}

		app, err := a.engine.Apply(ctx, candidateID, jobID)
		if err != nil {
			a.logger.Fatal("applying", zap.Error(err))
		}

		a.logger.Info("successfully applied to job",
			zap.Stringer("candidate_id", candidateID),
			zap.Stringer("job_id", jobID),
		)

		if err := printJSON(app); err != nil {
			a.logger.Fatal("printing the application", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringP("candidate", "c", "", "candidate id")
	applyCmd.Flags().String("job", "", "job id")
	applyCmd.MarkFlagRequired("candidate")
	applyCmd.MarkFlagRequired("job")
}
