package cmd

import (
	"context"

	"github.com/spigell/jobmatch/internal/match"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored records",
}

var searchJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Fuzzy search jobs by title and location, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()

		flags := cmd.Flags()
		title, _ := flags.GetString("title")
		location, _ := flags.GetString("location")
		includeClosed, _ := flags.GetBool("include-closed")

		a := mustBootstrap()
		defer a.Close()

		if err := a.withEngine(ctx, false); err != nil {
			a.logger.Fatal("preparing the match engine", zap.Error(err))
		}

		jobs, err := a.engine.SearchJobs(ctx, match.Query{
			Title:         title,
			Location:      location,
			IncludeClosed: includeClosed,
		})
		if err != nil {
			a.logger.Fatal("searching jobs", zap.Error(err))
		}

		a.logger.Info("search finished", zap.Int("count", len(jobs)))

		if err := printJSON(jobs); err != nil {
			a.logger.Fatal("printing jobs", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchJobsCmd)

	searchJobsCmd.Flags().StringP("title", "t", "", "job title to look for")
	searchJobsCmd.Flags().StringP("location", "l", "", "location to look for")
	searchJobsCmd.Flags().Bool("include-closed", false, "also return closed jobs")
}
