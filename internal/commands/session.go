package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Check upstream credentials",
	Long: `Exchange the configured CAPITAL_* credentials for a session and print
when it expires. Tokens are never printed.`,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	application, err := newCLIApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	sess, err := application.Sessions().GetValidSession(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Session created at %s, valid until %s\n",
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}
