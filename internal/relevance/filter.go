// Package relevance asks the inference service which retrieved items matter
// for a query, in bounded batches.
package relevance

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
)

const (
	DefaultBatchSize = 8
	snippetLength    = 250
	fallbackReason   = "marked relevant to the query"
)

// Decision labels one item of a batch by its index within the batch.
type Decision struct {
	Index    int    `json:"index"`
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason,omitempty"`
}

type Decisions struct {
	Results []Decision `json:"results"`
}

var Contract = inference.MustContract[Decisions]("relevance_decisions",
	"Relevance decision for every listed item, referenced by index.")

type Filter struct {
	Inference inference.Service
	Prompts   *prompts.Book
	Steps     *observability.StepRecorder
	BatchSize int
	Model     string
}

func NewFilter(svc inference.Service, book *prompts.Book, steps *observability.StepRecorder, batchSize int) *Filter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Filter{Inference: svc, Prompts: book, Steps: steps, BatchSize: batchSize}
}

// Filter returns the relevant subset of items, each with a non-empty
// RelevanceReason. Batches run in order and keep their item order.
func (f *Filter) Filter(ctx context.Context, runID, query string, items []capture.ContentItem) ([]capture.ContentItem, error) {
	size := f.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var relevant []capture.ContentItem
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		kept, err := f.batch(ctx, runID, query, items[start:end])
		if err != nil {
			if f.Steps != nil {
				f.Steps.Fail(runID, "filter error", fmt.Sprintf("relevance check failed for items %d-%d: %v", start, end-1, err))
			}
			return relevant, err
		}
		relevant = append(relevant, kept...)
	}

	if f.Steps != nil {
		f.Steps.Complete(runID, "filter progress", fmt.Sprintf("filtered %d items, found %d relevant", len(items), len(relevant)))
	}
	return relevant, nil
}

func (f *Filter) batch(ctx context.Context, runID, query string, chunk []capture.ContentItem) ([]capture.ContentItem, error) {
	var lines []string
	for i, item := range chunk {
		text := strings.ReplaceAll(item.Text, "\n", " ")
		if r := []rune(text); len(r) > snippetLength {
			text = string(r[:snippetLength])
		}
		lines = append(lines, fmt.Sprintf("item %d, timestamp: %s\n%q", i, item.Timestamp.Format("2006-01-02T15:04:05Z07:00"), text))
	}

	system, prompt, err := f.Prompts.Render("relevance", map[string]any{
		"query": query,
		"items": strings.Join(lines, "\n\n"),
	})
	if err != nil {
		return nil, err
	}
	decisions, err := inference.Generate[Decisions](ctx, f.Inference, inference.Request{
		Model: f.Model, System: system, Prompt: prompt, RunID: runID,
	}, Contract)
	if err != nil {
		return nil, err
	}

	reasons := make(map[int]string)
	for _, d := range decisions.Results {
		if !d.Relevant || d.Index < 0 || d.Index >= len(chunk) {
			continue
		}
		reason := strings.TrimSpace(d.Reason)
		if reason == "" {
			reason = fallbackReason
		}
		if _, seen := reasons[d.Index]; !seen {
			reasons[d.Index] = reason
		}
	}

	var kept []capture.ContentItem
	for i, item := range chunk {
		if reason, ok := reasons[i]; ok {
			item.RelevanceReason = reason
			kept = append(kept, item)
		}
	}
	return kept, nil
}
