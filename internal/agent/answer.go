package agent

import (
	"context"
	"strings"
)

const answerSnippetLimit = 4000

// AnswerWorker turns the last result into the short user-facing answer.
type AnswerWorker struct {
	*Deps
}

func (w *AnswerWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	w.complete(rc, "answer", "Generating final answer",
		"Taking the search results and summarizing them into a short answer. Purpose: "+in.Step.Purpose)

	snippet, summary := answerSource(in)
	maxLines := w.Pipeline.AnswerMaxLines
	if maxLines <= 0 {
		maxLines = 10
	}

	req, err := w.request(rc, "answer", map[string]any{
		"snippet":  truncate(snippet, answerSnippetLimit),
		"summary":  summary,
		"purpose":  in.Step.Purpose,
		"query":    in.query(rc),
		"maxLines": maxLines,
	})
	if err != nil {
		return nil, w.fail(rc, "answer", "answer error", err)
	}
	text, err := rc.Inference.GenerateText(ctx, req)
	if err != nil {
		return nil, w.fail(rc, "answer", "answer error", err)
	}

	answer := clampLines(text, maxLines)
	w.complete(rc, "answer", "Answer generated", answer)
	return &AnswerResult{Answer: answer}, nil
}

// answerSource picks the snippet and summary from the previous result,
// falling back to the latest analysis or search in the trail.
func answerSource(in Input) (snippet, summary string) {
	switch prev := in.Prev.(type) {
	case *AnalysisResult:
		return prev.ConversationSnippet, prev.Summary
	case *SearchResult:
		return conversationSnippet(prev.Items), prev.Summary
	}
	if a, ok := latest[*AnalysisResult](nil, in.Trail); ok {
		return a.ConversationSnippet, a.Summary
	}
	if s, ok := latest[*SearchResult](nil, in.Trail); ok {
		return conversationSnippet(s.Items), s.Summary
	}
	return "", ""
}

// clampLines keeps at most n non-trailing lines.
func clampLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \n")
}
