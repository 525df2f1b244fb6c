package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chart-proxy/internal/messaging"
	"github.com/chart-proxy/pkg/models"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print fetch events published by running proxies",
	Long: `Subscribe to <NATS_SUBJECT_PREFIX>.> and print one line per chart fetch.

Examples:
  NATS_URL=nats://localhost:4222 chart-proxy watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newCLILogger(cfg)
	if err != nil {
		return err
	}

	nc, err := messaging.NewNATSClient(&cfg.NATS, log)
	if err != nil {
		return err
	}
	defer nc.Close()

	err = nc.SubscribeFetchEvents(func(e *models.FetchEvent) {
		if e.Error != "" {
			fmt.Printf("%s %-12s FAILED after %d attempts (%dms): %s\n",
				e.Timestamp.Format("15:04:05"), e.RequestedSymbol, len(e.Attempts), e.DurationMs, e.Error)
			return
		}
		fmt.Printf("%s %-12s -> %s @ %s, %d bars, %d attempts (%dms)\n",
			e.Timestamp.Format("15:04:05"), e.RequestedSymbol, e.UsedEpic, e.UsedResolution, e.Bars, len(e.Attempts), e.DurationMs)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Watching %s.> on %s\n", cfg.NATS.SubjectPrefix, cfg.NATS.URL)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	return nc.Drain()
}
