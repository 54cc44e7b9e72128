package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "agentview",
	Short: "Ask questions about your recent screen and audio activity",
	Long: `agentview plans a question into steps (entity resolution, timeframe,
search, analysis, answer), runs them against the local capture service and
records a readable timeline of every step.

It also watches the live capture feed for financial activity and writes
support documents from recently captured content.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "emit structured pipeline events on stderr")
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
