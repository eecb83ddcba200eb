// Command storectl administers a storefront from the terminal: seeding the
// catalog, replaying a chat session, and closing abandoned purchases.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/app"
	"github.com/example/chat-storefront/internal/config"
	"github.com/example/chat-storefront/internal/logging"
)

var (
	logger = zap.NewNop()
	// verbose enables console logging at debug level.
	verbose bool
)

// buildApp is swapped in tests for an in-memory application.
var buildApp = func(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger)
}

var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "Storefront administration tool",
	Long: `storectl talks to the same stores as the API server, configured through
the usual environment variables (DATABASE_URL, REDIS_ADDR, KAFKA_BROKERS, ...).

Available subcommands:
  seed          - Load products from a YAML or JSON file
  chat          - Chat with the storefront as a customer
  recover       - Compensate purchases abandoned mid-flight
  hash-password - Produce a bcrypt hash for ADMIN_PASSWORD_HASH`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			return nil
		}
		l, err := logging.New("debug", "console")
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")

	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the file without writing")
	chatCmd.Flags().StringVar(&chatCustomer, "customer", "cli", "customer id to chat as")
	recoverCmd.Flags().DurationVar(&recoverAfter, "older-than", 0, "minimum intent age (defaults to RECOVER_AFTER)")

	rootCmd.AddCommand(seedCmd, chatCmd, recoverCmd, hashPasswordCmd)
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
