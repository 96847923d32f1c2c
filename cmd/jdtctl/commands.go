package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jerin288/jdt-tool-web/internal/database"
)

// opener builds an app for a database URL. Tests swap in a temporary database.
type opener func(databaseURL string) (*app, error)

func newRootCmd(open opener) *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:          "jdtctl",
		Short:        "Administer the JDT PDF converter",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "database URL (default: DATABASE_URL or the server default)")

	// withApp opens the database for one command and closes it afterwards.
	withApp := func(run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			a, err := open(databaseURL)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a)
		}
	}

	root.AddCommand(
		newMigrateCmd(withApp),
		newCreateUserCmd(withApp),
		newAddCreditsCmd(withApp),
		newCheckCreditsCmd(withApp),
		newListUsersCmd(withApp),
	)
	return root
}

type wrapFunc func(run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error

func newMigrateCmd(withApp wrapFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			if err := a.db.RunMigrations(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Database is up to date")
			return nil
		}),
	}
}

func newCreateUserCmd(withApp wrapFunc) *cobra.Command {
	var email, password, referral string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with the signup bonus",
		Example: `  jdtctl create-user --email alice@example.com --password 'correct horse'
  jdtctl create-user --email bob@example.com --password hunter22 --referral AB12CD34`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			user, err := a.accounts.Signup(cmd.Context(), email, password, referral)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Created %s (referral code %s, %d credits)\n",
				user.Email, user.ReferralCode, user.AvailableCredits())
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&referral, "referral", "", "referral code of the user who invited them")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAddCreditsCmd(withApp wrapFunc) *cobra.Command {
	var (
		email   string
		all     bool
		credits int
	)
	cmd := &cobra.Command{
		Use:   "add-credits",
		Short: "Grant credits to one user or to everyone",
		Example: `  jdtctl add-credits --email alice@example.com --credits 50
  jdtctl add-credits --all --credits 5`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			out := cmd.OutOrStdout()
			if all {
				changes, err := a.ledger.GrantAll(cmd.Context(), credits)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ Added %d credits to %d users\n", credits, len(changes))
				return nil
			}
			change, err := a.ledger.Grant(cmd.Context(), email, credits)
			if errors.Is(err, database.ErrUserNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ %s: %d → %d total, %d available\n",
				change.Email, change.OldTotal, change.NewTotal, change.Available)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "user to credit")
	cmd.Flags().BoolVar(&all, "all", false, "credit every user")
	cmd.Flags().IntVar(&credits, "credits", 0, "number of credits to add")
	cmd.MarkFlagsOneRequired("email", "all")
	cmd.MarkFlagsMutuallyExclusive("email", "all")
	_ = cmd.MarkFlagRequired("credits")
	return cmd
}

func newCheckCreditsCmd(withApp wrapFunc) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "check-credits",
		Short: "Show a user's credit balance",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			user, err := a.accounts.Lookup(cmd.Context(), email)
			if errors.Is(err, database.ErrUserNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			if err != nil {
				return err
			}
			bal, err := a.ledger.Balance(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "email\t%s\n", bal.Email)
			fmt.Fprintf(w, "total\t%d\n", bal.TotalCredits)
			fmt.Fprintf(w, "used\t%d\n", bal.UsedCredits)
			fmt.Fprintf(w, "daily\t%d\n", bal.DailyCredits)
			fmt.Fprintf(w, "available\t%d\n", bal.AvailableCredits())
			fmt.Fprintf(w, "created\t%s\n", bal.CreatedAt.Format("2006-01-02 15:04"))
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "user to check")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newListUsersCmd(withApp wrapFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List every account with its balance",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			users, err := a.db.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tREFERRAL\tTOTAL\tUSED\tEARNED\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", u.Email, u.ReferralCode,
					u.TotalCredits, u.UsedCredits, u.EarnedCredits(), u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		}),
	}
}
