package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/inference"
)

type analysisResponse struct {
	Summary          string   `json:"summary"`
	RecommendedItems []string `json:"recommendedItems"`
	Explanation      string   `json:"explanation"`
}

var analysisContract = inference.MustContract[analysisResponse]("analysis",
	"Meta summary, key points and explanation of a conversation snippet.")

const analysisSnippetLimit = 3000

// AnalysisWorker orders retrieved items in time and summarizes them. The raw
// snippet is always returned with the summary.
type AnalysisWorker struct {
	*Deps
}

func (w *AnalysisWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	w.complete(rc, "analysis", "analysis started",
		fmt.Sprintf("Analyzing search results to accomplish: %q", in.Step.Purpose))

	var items []capture.ContentItem
	if s, ok := latest[*SearchResult](in.Prev, in.Trail); ok {
		items = s.Items
	}
	snippet := conversationSnippet(items)

	req, err := w.request(rc, "analysis", map[string]any{
		"goal":    in.Step.Purpose,
		"snippet": truncate(snippet, analysisSnippetLimit),
	})
	if err != nil {
		return nil, w.fail(rc, "analysis", "analysis error", err)
	}
	resp, err := inference.Generate[analysisResponse](ctx, rc.Inference, req, analysisContract)
	if err != nil {
		return nil, w.fail(rc, "analysis", "analysis error", err)
	}

	w.complete(rc, "analysis", "analysis complete", "analysis summary: "+resp.Summary)
	return &AnalysisResult{
		Summary:             resp.Summary,
		RecommendedItems:    resp.RecommendedItems,
		Explanation:         resp.Explanation,
		ConversationSnippet: snippet,
	}, nil
}

// conversationSnippet joins items in ascending timestamp order.
func conversationSnippet(items []capture.ContentItem) string {
	sorted := append([]capture.ContentItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	parts := make([]string, 0, len(sorted))
	for _, item := range sorted {
		ts := "unknown time"
		if !item.Timestamp.IsZero() {
			ts = item.Timestamp.UTC().Format(time.RFC3339)
		}
		text := strings.TrimSpace(item.Text)
		if text == "" {
			text = "[no text]"
		}
		parts = append(parts, ts+":\n"+text)
	}
	return strings.Join(parts, "\n\n")
}
