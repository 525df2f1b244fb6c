package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chart-proxy/internal/app"
	"github.com/chart-proxy/internal/services"
	"github.com/chart-proxy/pkg/models"
	"github.com/spf13/cobra"
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Fetch one chart and print it as JSON",
	Long: `Run a single chart fetch through the full fallback pipeline and print
the response body the server would return.

Examples:
  chart-proxy chart --symbol US500
  chart-proxy chart --symbol "S&P 500" --resolution MINUTE_15 --from 2024-05-01`,
	RunE: runChart,
}

func init() {
	rootCmd.AddCommand(chartCmd)

	chartCmd.Flags().StringP("symbol", "s", "", "Epic or free-form symbol (required)")
	chartCmd.Flags().StringP("resolution", "r", "", "Resolution, e.g. MINUTE_5, HOUR, DAY (defaults to PROXY_DEFAULT_RESOLUTION)")
	chartCmd.Flags().String("from", "", "Range start")
	chartCmd.Flags().String("to", "", "Range end")
	chartCmd.MarkFlagRequired("symbol")
}

func runChart(cmd *cobra.Command, args []string) error {
	symbol, _ := cmd.Flags().GetString("symbol")
	resFlag, _ := cmd.Flags().GetString("resolution")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	application, err := newCLIApp()
	if err != nil {
		return err
	}
	defer application.Stop()

	def := models.ParseResolution(application.GetConfig().Proxy.DefaultResolution, models.ResolutionDay)
	res := models.ParseResolution(resFlag, def)

	resp, err := application.Charts().GetChart(context.Background(), symbol, res, from, to)
	if err != nil {
		if trace := services.TraceOf(err); trace != nil {
			printJSON(trace)
		}
		return err
	}

	return printJSON(resp)
}

func newCLIApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Capital.ValidateCredentials(); err != nil {
		return nil, err
	}

	log, err := newCLILogger(cfg)
	if err != nil {
		return nil, err
	}

	application := app.New(cfg, log)
	if err := application.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
