package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend jobs to a candidate or candidates to a job",
}

var recommendJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List open jobs matching a candidate",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		candidateID := parseID("candidate", cmd.Flag("candidate").Value.String())

		a := mustBootstrap()
		defer a.Close()

		if err := a.withEngine(ctx, false); err != nil {
			a.logger.Fatal("preparing the match engine", zap.Error(err))
		}

		jobs, err := a.engine.RecommendJobs(ctx, candidateID)
		if err != nil {
			a.logger.Fatal("recommending jobs", zap.Error(err))
		}

		a.logger.Info("found matching jobs", zap.Int("count", len(jobs)))

		if err := printJSON(jobs); err != nil {
			a.logger.Fatal("printing recommendations", zap.Error(err))
		}
	},
}

var recommendCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List candidates matching a job",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		jobID := parseID("job", cmd.Flag("job").Value.String())

		a := mustBootstrap()
		defer a.Close()

		if err := a.withEngine(ctx, false); err != nil {
			a.logger.Fatal("preparing the match engine", zap.Error(err))
		}

		candidates, err := a.engine.RecommendCandidates(ctx, jobID)
		if err != nil {
			a.logger.Fatal("recommending candidates", zap.Error(err))
		}

		a.logger.Info("found matching candidates", zap.Int("count", len(candidates)))

		if err := printJSON(candidates); err != nil {
			a.logger.Fatal("printing recommendations", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.AddCommand(recommendJobsCmd, recommendCandidatesCmd)

	recommendJobsCmd.Flags().StringP("candidate", "c", "", "candidate id")
	recommendJobsCmd.MarkFlagRequired("candidate")

	recommendCandidatesCmd.Flags().String("job", "", "job id")
	recommendCandidatesCmd.MarkFlagRequired("job")
}
