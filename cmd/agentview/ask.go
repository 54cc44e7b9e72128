package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rahul/agentview/internal/agent"
)

var (
	askRunID     string
	askTimeframe string
	askNoSteps   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from recently captured content",
	Long: `Plan the question into steps, run them and print the answer.

Every step is printed as it happens unless --quiet is set; the timeline is
also stored and can be shown again with "agentview steps <run-id>".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, !askNoSteps)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		if askRunID == "" {
			askRunID = uuid.NewString()
		}
		run, err := a.orchestrator().Run(ctx, agent.RunContext{
			APIKey:    a.apiKey,
			RunID:     askRunID,
			Query:     strings.Join(args, " "),
			Timeframe: askTimeframe,
		}, "")
		if err != nil {
			if errors.Is(err, agent.ErrConfiguration) {
				return err
			}
			if answer := run.Answer(); answer != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n(partial) %s\n", answer)
			}
			return fmt.Errorf("run %s failed: %w", askRunID, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n\nrun id: %s\n", run.Answer(), run.RunID)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askRunID, "run-id", "", "run id used to track steps (default: random)")
	askCmd.Flags().StringVar(&askTimeframe, "timeframe", "", "time window hint, e.g. \"yesterday\"")
	askCmd.Flags().BoolVarP(&askNoSteps, "quiet", "q", false, "do not print steps as they happen")
	rootCmd.AddCommand(askCmd)
}
