package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search upstream instruments",
	Long: `Run an upstream instrument search and print the raw result.

Examples:
  chart-proxy search --term apple`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringP("term", "t", "", "Search term")
}

func runSearch(cmd *cobra.Command, args []string) error {
	term, _ := cmd.Flags().GetString("term")

	application, err := newCLIApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	body, err := application.Search().Search(context.Background(), term)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		_, err = os.Stdout.Write(body)
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(os.Stdout)
	return err
}
