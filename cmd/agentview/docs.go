package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/docs"
	"github.com/rahul/agentview/internal/store"
)

var supportDocCmd = &cobra.Command{
	Use:   "support-doc <trigger>",
	Short: "Write a support document from recently captured content",
	Long: `Resolve the time range the trigger sentence refers to (the last few
minutes when it names none), gather audio and OCR content from that range
and store a support document with a summary, key points and recommended
actions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, rc, err := docsRun(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := (&docs.SupportDocs{Manager: a.docsManager()}).Handle(cmd.Context(), rc, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printDoc(cmd.OutOrStdout(), doc)
		return nil
	},
}

var instructCmd = &cobra.Command{
	Use:   "instruct <instruction>",
	Short: "Summarize recently captured content for an instruction",
	Long: `Like support-doc, but summarizes with topics and sentiment, and also
checks the instruction itself for financial activity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, rc, err := docsRun(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		h := &docs.Instructions{Manager: a.docsManager(), Finance: a.financeWorker()}
		doc, err := h.Handle(cmd.Context(), rc, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printDoc(cmd.OutOrStdout(), doc)
		return nil
	},
}

func docsRun(cmd *cobra.Command) (*app, agent.RunContext, error) {
	a, err := newApp(cfgFile, verbose)
	if err != nil {
		return nil, agent.RunContext{}, err
	}
	svc, err := a.newInference(a.apiKey)
	if err != nil {
		a.Close()
		return nil, agent.RunContext{}, err
	}
	return a, agent.RunContext{APIKey: a.apiKey, RunID: "doc-" + uuid.NewString(), Inference: svc}, nil
}

func printDoc(w io.Writer, d *store.SupportDoc) {
	fmt.Fprintf(w, "%s\n", d.Summary)
	for _, p := range d.KeyPoints {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	if len(d.RecommendedActions) > 0 {
		fmt.Fprintln(w, "\nRecommended actions:")
		for _, r := range d.RecommendedActions {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if len(d.Topics) > 0 {
		fmt.Fprintf(w, "\nTopics: %s (sentiment: %s)\n", strings.Join(d.Topics, ", "), d.Sentiment)
	}
}
