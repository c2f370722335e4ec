package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract a profile from a document and store it",
}

var ingestCandidateCmd = &cobra.Command{
	Use:   "candidate FILE",
	Short: "Ingest a résumé (pdf, doc, docx) for a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		userID := parseID("user", cmd.Flag("user").Value.String())

		a := mustBootstrap()
		defer a.Close()

		if err := a.withPipeline(ctx); err != nil {
			a.logger.Fatal("preparing the ingestion pipeline", zap.Error(err))
		}

		candidate, err := a.pipeline.IngestCandidateDocument(ctx, userID, args[0])
		if err != nil {
			a.logger.Fatal("ingesting a résumé", zap.String("file", args[0]), zap.Error(err))
		}

		if err := printJSON(candidate); err != nil {
			a.logger.Fatal("printing the candidate", zap.Error(err))
		}
	},
}

var ingestJobCmd = &cobra.Command{
	Use:   "job FILE",
	Short: "Ingest a job description (pdf, doc, docx) for a recruiter",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		recruiterID := parseID("recruiter", cmd.Flag("recruiter").Value.String())

		a := mustBootstrap()
		defer a.Close()

		if err := a.withPipeline(ctx); err != nil {
			a.logger.Fatal("preparing the ingestion pipeline", zap.Error(err))
		}

		job, err := a.pipeline.IngestJobDocument(ctx, recruiterID, args[0])
		if err != nil {
			a.logger.Fatal("ingesting a job description", zap.String("file", args[0]), zap.Error(err))
		}

		if err := printJSON(job); err != nil {
			a.logger.Fatal("printing the job", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestCandidateCmd, ingestJobCmd)

	ingestCandidateCmd.Flags().StringP("user", "u", "", "id of the user the résumé belongs to")
	ingestCandidateCmd.MarkFlagRequired("user")

	ingestJobCmd.Flags().StringP("recruiter", "r", "", "id of the recruiter posting the job")
	ingestJobCmd.MarkFlagRequired("recruiter")
}
