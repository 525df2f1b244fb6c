package commands

import (
	"fmt"
	"os"

	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chart-proxy",
	Short: "Chart data proxy for Capital.com",
	Long: `A proxy in front of the session-authenticated Capital.com REST API.

It serves price history in a Yahoo-chart compatible JSON shape and
falls back to coarser resolutions or resolved instruments when the
upstream has no data for the request.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads .env and the environment
func loadConfig() (*config.Config, error) {
	if path, err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: %s not loaded: %v\n", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newCLILogger builds a logger for one-shot commands. Logs go to stderr so
// stdout stays clean JSON.
func newCLILogger(cfg *config.Config) (*logrus.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	if !verbose {
		logCfg.Level = "warn"
	}
	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
