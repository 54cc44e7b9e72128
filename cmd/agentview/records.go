package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/observability"
)

var (
	listLimit   int
	classifyApp string
)

var headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)

var activitiesCmd = &cobra.Command{
	Use:   "activities",
	Short: "List stored financial activities, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, false)
		if err != nil {
			return err
		}
		defer a.Close()

		acts, err := a.db.ListFinancialActivities(cmd.Context(), listLimit)
		if err != nil {
			return fmt.Errorf("listing financial activities: %w", err)
		}
		if len(acts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No financial activity recorded.")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d financial activities", len(acts))))
		for _, act := range acts {
			parties := strings.Trim(act.SenderName+" -> "+act.ReceiverName, " ->")
			fmt.Fprintf(out, "  %s  %-12s %10.2f %s  %s", act.Timestamp.Local().Format("2006-01-02 15:04"),
				act.Type, *act.Amount, act.Currency, act.Description)
			if parties != "" {
				fmt.Fprintf(out, " (%s)", parties)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var stepsCmd = &cobra.Command{
	Use:   "steps <run-id>",
	Short: "Show the stored step timeline of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, false)
		if err != nil {
			return err
		}
		defer a.Close()

		steps, err := a.db.ListSteps(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing steps: %w", err)
		}
		if len(steps) == 0 {
			return fmt.Errorf("no steps recorded for run %s", args[0])
		}
		fmt.Fprint(cmd.OutOrStdout(), observability.NewTimelinePrinter(cmd.OutOrStdout()).FormatTimeline(steps))
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify a piece of content and store it unless it is a duplicate",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.newInference(a.apiKey)
		if err != nil {
			return err
		}
		rc := agent.RunContext{APIKey: a.apiKey, RunID: "classify-" + uuid.NewString(), Inference: svc}
		out, err := a.classifier().Classify(cmd.Context(), rc, capture.ContentItem{
			Type:    capture.OCR,
			Text:    strings.Join(args, " "),
			AppName: classifyApp,
		})
		if err != nil {
			return err
		}
		status := "stored"
		if out.Duplicate {
			status = "duplicate, not stored"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (important: %t, confidence %.2f)\n%s\n[%s]\n",
			out.Item.Category, out.Item.IsImportant, out.Item.Confidence, out.Item.HyperInfo, status)
		return nil
	},
}

func init() {
	activitiesCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of records")
	classifyCmd.Flags().StringVar(&classifyApp, "app", "", "app the content was captured from")
	rootCmd.AddCommand(activitiesCmd, stepsCmd, classifyCmd)
	rootCmd.AddCommand(supportDocCmd, instructCmd)
}
