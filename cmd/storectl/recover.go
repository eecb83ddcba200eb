package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/chat-storefront/internal/app"
)

var recoverAfter time.Duration

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Compensate purchases abandoned mid-flight",
	Long: `Closes every purchase intent older than --older-than that never reached
a terminal state, restoring stock it had taken.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(a *app.App) error {
			age := recoverAfter
			if age <= 0 {
				age = a.Config.RecoverAfter
			}
			closed, err := a.Purchaser.Recover(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovered %d intents\n", closed)
			return nil
		})
	},
}
