package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jobdeck/jobdeck/internal/board"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/jobdeck/jobdeck/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "jobdeck",
	Short:   "JobDeck - payment-gated job board",
	Long:    `JobDeck is a job board where postings go live only after the employer completes a Stripe checkout`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return board.Run(context.Background(), Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(publishDraftsCmd)
	rootCmd.AddCommand(createUserCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("JobDeck %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

// publishDraftsCmd force-publishes every DRAFT posting. Maintenance escape
// hatch for seeding demo data or recovering from lost webhook deliveries
// after confirming payment in the Stripe dashboard.
var publishDraftsCmd = &cobra.Command{
	Use:   "publish-drafts",
	Short: "Force-publish all DRAFT job postings",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Config{
			Format:    "auto",
			Level:     "info",
			Component: "jobdeck",
		})

		cfg, err := board.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		st, err := store.NewStore(cfg.StoreDir())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		n, err := st.PublishAllDrafts()
		if err != nil {
			return fmt.Errorf("publish drafts: %w", err)
		}

		log.Info().Int64("published", n).Msg("Draft postings published")
		fmt.Printf("Published %d draft posting(s)\n", n)
		return nil
	},
}

var (
	createUserEmail string
	createUserName  string
)

// createUserCmd bootstraps an employer account and prints its API token.
// There is no self-service signup; accounts are provisioned by an operator.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an employer account and print its API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if createUserEmail == "" {
			return fmt.Errorf("--email is required")
		}

		cfg, err := board.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		st, err := store.NewStore(cfg.StoreDir())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		token, err := store.GenerateAPIToken()
		if err != nil {
			return err
		}
		user := &store.User{
			ID:       store.NewID(),
			Email:    createUserEmail,
			Name:     createUserName,
			APIToken: token,
		}
		if err := st.CreateUser(user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("User ID:   %s\n", user.ID)
		fmt.Printf("API token: %s\n", user.APIToken)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "account email (required)")
	createUserCmd.Flags().StringVar(&createUserName, "name", "", "display name")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
