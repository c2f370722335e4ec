package cmd

import (
	"context"
	"fmt"

	"github.com/spigell/jobmatch/internal/store"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptYes              = "Yes"
	PromptNo               = "No"
	PromptShowApplications = "Show pending applications"
)

var closePrompt = promptui.Select{
	Label: "Close the job and notify candidates?",
	Items: []string{PromptYes, PromptNo, PromptShowApplications},
}

var closeJobCmd = &cobra.Command{
	Use:   "close-job",
	Short: "Close a job, score its applications and send the decisions",
	Run: func(cmd *cobra.Command, _ []string) {
		closeJob(cmd)
	},
}

func init() {
	rootCmd.AddCommand(closeJobCmd)

	closeJobCmd.Flags().String("job", "", "job id")
	closeJobCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")
	closeJobCmd.Flags().Bool("pending", false, "retry applications a closed job left pending")
	closeJobCmd.MarkFlagRequired("job")
}

func closeJob(cmd *cobra.Command) {
	ctx := context.Background()
	jobID := parseID("job", cmd.Flag("job").Value.String())
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	pending, _ := cmd.Flags().GetBool("pending")

	a := mustBootstrap()
	defer a.Close()

	if err := a.withEngine(ctx, true); err != nil {
		a.logger.Fatal("preparing the match engine", zap.Error(err))
	}

	if pending {
		report, err := a.engine.DecidePending(ctx, jobID)
		if err != nil {
			a.logger.Fatal("deciding pending applications", zap.Stringer("job_id", jobID), zap.Error(err))
		}
		if err := printJSON(report); err != nil {
			a.logger.Fatal("printing the report", zap.Error(err))
		}
		return
	}

	if !autoApprove {
		proceed, err := confirmClose(ctx, a, jobID)
		if err != nil {
			a.logger.Fatal("asking for confirmation", zap.Error(err))
		}
		if !proceed {
			a.logger.Info("job is left open", zap.Stringer("job_id", jobID))
			return
		}
	}

	report, err := a.engine.CloseJob(ctx, jobID)
	if err != nil {
		a.logger.Fatal("closing the job", zap.Stringer("job_id", jobID), zap.Error(err))
	}

	if !report.Closed {
		a.logger.Info("job was already closed, use --pending to retry leftovers", zap.Stringer("job_id", jobID))
	}

	if err := printJSON(report); err != nil {
		a.logger.Fatal("printing the report", zap.Error(err))
	}
}

func confirmClose(ctx context.Context, a *application, jobID uuid.UUID) (bool, error) {
	job, err := a.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !job.IsOpen {
		// CloseJob reports the no-op itself.
		return true, nil
	}

	apps, err := a.store.ListApplicationsByJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	pending := make([]*store.Application, 0, len(apps))
	for _, app := range apps {
		if app.Status == store.StatusPending {
			pending = append(pending, app)
		}
	}

	a.logger.Info("job is ready to close",
		zap.String("title", job.Title),
		zap.Int("pending_applications", len(pending)),
	)

	for {
		_, answer, err := closePrompt.Run()
		if err != nil {
			return false, err
		}

		switch answer {
		case PromptYes:
			return true, nil
		case PromptNo:
			return false, nil
		case PromptShowApplications:
			for _, app := range pending {
				fmt.Printf("%s %s\n", app.ID, applicantLabel(app))
			}
		}
	}
}

func applicantLabel(app *store.Application) string {
	if app.Candidate == nil || app.Candidate.User == nil {
		return app.CandidateID.String()
	}
	u := app.Candidate.User
	return fmt.Sprintf("%s <%s>", u.Name, u.Email)
}
