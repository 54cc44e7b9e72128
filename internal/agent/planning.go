package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/agentview/internal/inference"
)

var planningContract = inference.MustContract[PlanningResult]("search_plan",
	"Detailed plan with a search plan describing content types, queries and time window.",
	inference.Enum("searchPlan.timeframe.type", "specific", "relative", "none"),
	inference.Enum("searchPlan.contentTypes[]", "ocr", "audio", "ui"),
	inference.Range("searchPlan.searchQueries[].confidence", 0, 1),
)

// PlanningWorker produces a SearchPlan the Search worker can follow.
type PlanningWorker struct {
	*Deps
}

func (w *PlanningWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	pc := in.Step.Context
	if pc.Query == "" {
		pc.Query = in.query(rc)
	}
	w.complete(rc, "planning", "planning started",
		fmt.Sprintf("Planning %q for query %q", in.Step.Purpose, pc.Query))

	req, err := w.request(rc, "planning", map[string]any{
		"purpose":   in.Step.Purpose,
		"type":      pc.Type,
		"query":     pc.Query,
		"timeframe": pc.Timeframe,
		"now":       w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, w.fail(rc, "planning", "planning error", err)
	}
	plan, err := inference.Generate[PlanningResult](ctx, rc.Inference, req, planningContract)
	if err != nil {
		return nil, w.fail(rc, "planning", "planning error", err)
	}

	var queries []string
	for _, q := range plan.SearchPlan.SearchQueries {
		queries = append(queries, q.Query)
	}
	w.complete(rc, "planning", "planning complete", fmt.Sprintf(
		"%d steps planned, searching %s for %s\n%s",
		len(plan.Steps), strings.Join(plan.SearchPlan.ContentTypes, ", "), strings.Join(queries, "; "), plan.Rationale))
	return &plan, nil
}
