package cmd

import (
	"context"
	"strings"

	"github.com/spigell/jobmatch/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create accounts that documents are ingested for",
}

var registerCandidateCmd = &cobra.Command{
	Use:   "candidate",
	Short: "Create a user with an empty candidate profile",
	Run: func(cmd *cobra.Command, _ []string) {
		register(cmd, func(ctx context.Context, tx store.Repository, u *store.User) (any, error) {
			c := &store.Candidate{UserID: u.ID}
			if err := tx.CreateCandidate(ctx, c); err != nil {
				return nil, err
			}
			return c, nil
		})
	},
}

var registerRecruiterCmd = &cobra.Command{
	Use:   "recruiter",
	Short: "Create a user with a recruiter profile",
	Run: func(cmd *cobra.Command, _ []string) {
		company, _ := cmd.Flags().GetString("company")
		register(cmd, func(ctx context.Context, tx store.Repository, u *store.User) (any, error) {
			r := &store.Recruiter{UserID: u.ID, CompanyName: strings.TrimSpace(company)}
			if err := tx.CreateRecruiter(ctx, r); err != nil {
				return nil, err
			}
			return r, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.AddCommand(registerCandidateCmd, registerRecruiterCmd)

	for _, c := range []*cobra.Command{registerCandidateCmd, registerRecruiterCmd} {
		c.Flags().String("name", "", "display name")
		c.Flags().String("email", "", "email address")
		c.MarkFlagRequired("email")
	}
	registerRecruiterCmd.Flags().String("company", "", "company name")
}

func register(cmd *cobra.Command, profile func(context.Context, store.Repository, *store.User) (any, error)) {
	ctx := context.Background()
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")

	a := mustBootstrap()
	defer a.Close()

	if err := a.withStore(ctx, false); err != nil {
		a.logger.Fatal("opening the store", zap.Error(err))
	}

	var created any
	err := a.store.InTx(ctx, func(tx store.Repository) error {
		u := &store.User{
			Name:  strings.TrimSpace(name),
			Email: strings.ToLower(strings.TrimSpace(email)),
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}

		var err error
		created, err = profile(ctx, tx, u)
		return err
	})
	if err != nil {
		a.logger.Fatal("registering", zap.String("email", email), zap.Error(err))
	}

	if err := printJSON(created); err != nil {
		a.logger.Fatal("printing the profile", zap.Error(err))
	}
}
