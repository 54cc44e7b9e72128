package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/agentview/internal/inference"
)

var entityContract = inference.MustContract[EntityResult]("entity_resolution",
	"Name variations and synonyms found in the user's query.")

// EntityWorker expands a query into name variants.
type EntityWorker struct {
	*Deps
}

func (w *EntityWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	query := in.query(rc)
	w.complete(rc, "entity-resolution", "entity-resolution started",
		fmt.Sprintf("resolving entities in query: %q", query))

	req, err := w.request(rc, "entity", map[string]any{"query": query})
	if err != nil {
		return nil, w.fail(rc, "entity-resolution", "entity-resolution error", err)
	}
	res, err := inference.Generate[EntityResult](ctx, rc.Inference, req, entityContract)
	if err != nil {
		return nil, w.fail(rc, "entity-resolution", "entity-resolution error", err)
	}

	res.Synonyms = uniqueTerms(res.Synonyms)
	if len(res.Synonyms) == 0 {
		res.Synonyms = []string{strings.TrimSpace(query)}
		if res.Explanation == "" {
			res.Explanation = "no variants found, using the query as is"
		}
	}
	if strings.TrimSpace(res.ResolvedQuery) == "" {
		res.ResolvedQuery = strings.Join(res.Synonyms, " OR ")
	}

	w.complete(rc, "entity-resolution", "entity-resolution complete",
		fmt.Sprintf("resolvedQuery: %s\nsynonyms: %s", res.ResolvedQuery, strings.Join(res.Synonyms, ", ")))
	return &res, nil
}

// uniqueTerms trims terms and drops empties and case-insensitive repeats.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
