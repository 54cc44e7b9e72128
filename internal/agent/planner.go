package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/agentview/internal/inference"
)

// Planner turns a user query into an ExecutionPlan. A plan that fails
// validation fails the whole run; there is no retry at this layer.
type Planner struct {
	*Deps
}

func (p *Planner) GeneratePlan(ctx context.Context, rc RunContext, instructions string) (*ExecutionPlan, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	req, err := p.request(rc, "plan", map[string]any{
		"query":        rc.Query,
		"instructions": instructions,
	})
	if err != nil {
		return nil, p.fail(rc, "planner", "Planning failed", err)
	}
	plan, err := inference.Generate[ExecutionPlan](ctx, rc.Inference, req, planContract)
	if err != nil {
		return nil, p.fail(rc, "planner", "Planning failed", fmt.Errorf("failed to generate plan: %w", err))
	}
	if plan.Query == "" {
		plan.Query = rc.Query
	}

	p.Logger.LogPlan(rc.RunID, plan)
	steps := make([]string, len(plan.Steps))
	for i, s := range plan.Steps {
		steps[i] = string(s.Type) + ": " + s.Purpose
	}
	p.complete(rc, "planner", "Generated plan",
		fmt.Sprintf("Complexity: %s\nSteps: %s", plan.EstimatedComplexity, strings.Join(steps, " → ")))
	return &plan, nil
}
