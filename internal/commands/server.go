package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chart-proxy/internal/app"
	"github.com/chart-proxy/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	serverPort int
	serverHost string
	logLevel   string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the chart proxy HTTP server",
	Long: `Start the chart proxy.

Endpoints:
• GET /chart?epic=US500&resolution=HOUR&from=...&to=...
• GET /?symbol=...   (alias of /chart)
• GET /search?term=...

Examples:
  chart-proxy server                    # Start with settings from the environment
  chart-proxy server --port 9090       # Start on custom port
  chart-proxy server --log-level debug # Enable debug logging`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides SERVER_PORT)")
	serverCmd.Flags().StringVarP(&serverHost, "host", "H", "", "Server host (overrides SERVER_HOST)")
	serverCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.WithField("upstream", cfg.Capital.APIBase).Info("Starting chart proxy")

	application := app.New(cfg, log)

	if err := application.Initialize(); err != nil {
		log.WithError(err).Error("Failed to initialize application")
		return err
	}

	if err := application.Start(); err != nil {
		log.WithError(err).Error("Failed to start application")
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-interrupt:
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
	case <-application.Done():
		log.Warn("Server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownComplete := make(chan struct{})
	go func() {
		if err := application.Stop(); err != nil {
			log.WithError(err).Error("Application shutdown error")
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		log.Info("Application shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout - forcing exit")
		os.Exit(1)
	}

	return nil
}
