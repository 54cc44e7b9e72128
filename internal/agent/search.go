package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/timeframe"
	"github.com/sourcegraph/conc/pool"
)

type keyTerms struct {
	Synonyms    []string `json:"synonyms"`
	Explanation string   `json:"explanation"`
}

var keyTermsContract = inference.MustContract[keyTerms]("search_terms",
	"Short single word or short phrase terms worth searching for.")

const maxParallelQueries = 4

// SearchWorker retrieves captured content for the run's terms, filters it
// for relevance and summarizes what was found.
type SearchWorker struct {
	*Deps
}

func (w *SearchWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	if w.Capture == nil {
		return nil, w.fail(rc, "search", "search error", &ConfigError{Reason: "no capture client configured"})
	}
	query := in.query(rc)
	w.complete(rc, "search", "search started", "Analyzing query: "+query)

	synonyms, explanation, err := w.synonyms(ctx, rc, in, query)
	if err != nil {
		return nil, w.fail(rc, "search", "search error", fmt.Errorf("failed to analyze query: %w", err))
	}
	w.complete(rc, "search", "analyze query done",
		fmt.Sprintf("Synonyms used: %s\nExplanation: %s", strings.Join(synonyms, ", "), explanation))

	win := w.window(in)
	queries := w.queries(in, synonyms)
	types := w.contentTypes(in)

	raw, err := w.retrieve(ctx, rc, queries, types, win)
	if err != nil {
		return nil, w.fail(rc, "search", "search error", err)
	}
	candidates := w.admit(raw)

	relevant, err := w.relevance(rc.Inference).Filter(ctx, rc.RunID, query, candidates)
	if err != nil {
		return nil, w.fail(rc, "search", "search error", fmt.Errorf("relevance filter failed: %w", err))
	}

	summary := "No relevant results found."
	if len(relevant) > 0 {
		summary, err = w.summarize(ctx, rc, query, synonyms, relevant)
		if err != nil {
			return nil, w.fail(rc, "search", "search error", fmt.Errorf("failed to summarize results: %w", err))
		}
	}

	w.complete(rc, "search", "search complete", fmt.Sprintf(
		"search results summary:\n- total items found: %d\n- relevant items: %d\n- final summary: %s",
		len(raw), len(relevant), summary))

	return &SearchResult{
		Items:                  relevant,
		Summary:                summary,
		NextStepRecommendation: "proceed with analysis or final answer",
		Synonyms:               synonyms,
		Queries:                queries,
	}, nil
}

// synonyms prefers an earlier entity resolution, then a short query as is,
// then asks the model for key terms.
func (w *SearchWorker) synonyms(ctx context.Context, rc RunContext, in Input, query string) ([]string, string, error) {
	if ent, ok := latest[*EntityResult](in.Prev, in.Trail); ok && len(ent.Synonyms) > 0 {
		return ent.Synonyms, "from entity resolution", nil
	}
	query = strings.TrimSpace(query)
	if len(strings.Fields(query)) <= 2 {
		return []string{query}, "query is already short, using it as is", nil
	}

	req, err := w.request(rc, "keyterms", map[string]any{"query": query})
	if err != nil {
		return nil, "", err
	}
	terms, err := inference.Generate[keyTerms](ctx, rc.Inference, req, keyTermsContract)
	if err != nil {
		return nil, "", err
	}
	if s := uniqueTerms(terms.Synonyms); len(s) > 0 {
		return s, terms.Explanation, nil
	}
	return []string{query}, "no key terms found", nil
}

func (w *SearchWorker) window(in Input) timeframe.Window {
	if tf, ok := latest[*TimeframeResult](in.Prev, in.Trail); ok {
		return tf.Window
	}
	if p, ok := latest[*PlanningResult](in.Prev, in.Trail); ok {
		t := p.SearchPlan.Timeframe
		return timeframe.FromStrings(t.Type, t.StartTime, t.EndTime, t.Rationale)
	}
	return timeframe.Window{Type: timeframe.None}
}

func (w *SearchWorker) queries(in Input, synonyms []string) []string {
	var out []string
	if p, ok := latest[*PlanningResult](in.Prev, in.Trail); ok {
		for _, q := range p.SearchPlan.SearchQueries {
			if s := governance.SanitizeQuery(q.Query); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	var terms []string
	for _, s := range synonyms {
		if t := governance.SanitizeQuery(s); t != "" {
			terms = append(terms, t)
		}
	}
	return []string{strings.Join(terms, " OR ")}
}

func (w *SearchWorker) contentTypes(in Input) []capture.ContentType {
	names := w.Pipeline.ContentTypes
	if p, ok := latest[*PlanningResult](in.Prev, in.Trail); ok && len(p.SearchPlan.ContentTypes) > 0 {
		names = p.SearchPlan.ContentTypes
	}
	if len(names) == 0 {
		names = []string{string(capture.OCR)}
	}
	types := make([]capture.ContentType, len(names))
	for i, n := range names {
		types[i] = capture.ContentType(n)
	}
	return types
}

// retrieve runs every query against every content type concurrently. A
// failing sub-query is recorded and skipped; only cancellation aborts.
func (w *SearchWorker) retrieve(ctx context.Context, rc RunContext, queries []string, types []capture.ContentType, win timeframe.Window) ([]capture.ContentItem, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		all  []capture.ContentItem
	)

	p := pool.New().WithMaxGoroutines(maxParallelQueries)
	for _, q := range queries {
		for _, ct := range types {
			w.complete(rc, "search", "search progress", fmt.Sprintf("Performing search: %q in %s", q, ct))
			p.Go(func() {
				items, err := w.Capture.Search(ctx, capture.Query{
					Q:           q,
					ContentType: ct,
					StartTime:   win.StartString(),
					EndTime:     win.EndString(),
					Limit:       w.Pipeline.SearchLimit,
					MinLength:   w.Pipeline.SearchMinLength,
				})
				w.Logger.LogRetrieval(rc.RunID, q, string(ct), len(items), err)
				if err != nil {
					if ctx.Err() == nil {
						w.failText(rc, "search", "search error", fmt.Sprintf("error executing search %q in %s: %v", q, ct, err))
					}
					return
				}
				mu.Lock()
				defer mu.Unlock()
				for _, item := range items {
					if k := item.Key(); !seen[k] {
						seen[k] = true
						all = append(all, item)
					}
				}
			})
		}
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].Key() < all[j].Key()
	})
	return all, nil
}

// admit drops content from excluded windows and strips markup.
func (w *SearchWorker) admit(items []capture.ContentItem) []capture.ContentItem {
	var out []capture.ContentItem
	for _, item := range items {
		if w.Policy != nil {
			if !w.Policy.Allowed(governance.Request{AppName: item.AppName, WindowName: item.WindowName, Text: item.Text}) {
				continue
			}
			item.Text = w.Policy.Clean(item.Text)
		}
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (w *SearchWorker) summarize(ctx context.Context, rc RunContext, query string, synonyms []string, items []capture.ContentItem) (string, error) {
	var sample []string
	for _, item := range items[:min(3, len(items))] {
		sample = append(sample, truncate(item.Text, 300))
	}
	req, err := w.request(rc, "search_summary", map[string]any{
		"count":    len(items),
		"query":    query,
		"synonyms": strings.Join(synonyms, ", "),
		"sample":   strings.Join(sample, "\n---\n"),
	})
	if err != nil {
		return "", err
	}
	return rc.Inference.GenerateText(ctx, req)
}
