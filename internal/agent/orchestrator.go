package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rahul/agentview/internal/inference"
)

// InferenceFactory binds an inference service to an API key.
type InferenceFactory func(apiKey string) (inference.Service, error)

// Orchestrator plans a query and drives the plan through the workers.
type Orchestrator struct {
	Deps         *Deps
	Planner      *Planner
	Executor     *Executor
	NewInference InferenceFactory
	// APIKey is used by Ask when callers carry no key of their own.
	APIKey string
}

func NewOrchestrator(deps *Deps, factory InferenceFactory) *Orchestrator {
	return &Orchestrator{
		Deps:         deps,
		Planner:      &Planner{Deps: deps},
		Executor:     NewExecutor(NewWorkers(deps), deps),
		NewInference: factory,
	}
}

// Run executes one query end to end. The returned Run carries partial
// results when err is non-nil and a plan was produced.
func (o *Orchestrator) Run(ctx context.Context, rc RunContext, instructions string) (*Run, error) {
	if rc.APIKey == "" {
		return nil, &ConfigError{Reason: "API key is required for classification"}
	}
	if rc.RunID == "" {
		return nil, &ConfigError{Reason: "run id is required for tracking steps"}
	}
	if rc.Inference == nil {
		if o.NewInference == nil {
			return nil, &ConfigError{Reason: "no inference service configured"}
		}
		svc, err := o.NewInference(rc.APIKey)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("failed to create inference client: %v", err)}
		}
		rc.Inference = svc
	}

	d := o.Deps
	run := &Run{RunID: rc.RunID, StartedAt: d.now()}
	d.complete(rc, "orchestrator", "Starting classification orchestration",
		fmt.Sprintf("Planning the process for query: %q", rc.Query))

	plan, err := o.Planner.GeneratePlan(ctx, rc, instructions)
	if err != nil {
		return nil, err
	}
	run.Plan = plan
	if rc.Timeframe == "" {
		rc.Timeframe = plan.Timeframe
	}

	run.Results, err = o.Executor.Execute(ctx, rc, plan)
	run.FinishedAt = d.now()
	if err != nil {
		return run, err
	}

	d.complete(rc, "orchestrator", "Classification process completed",
		fmt.Sprintf("Processed %d steps successfully", len(plan.Steps)))
	return run, nil
}

// Ask runs question under a fresh run id and returns the answer text.
func (o *Orchestrator) Ask(ctx context.Context, question string) (string, error) {
	run, err := o.Run(ctx, RunContext{APIKey: o.APIKey, RunID: uuid.NewString(), Query: question}, "")
	if err != nil {
		return "", err
	}
	if answer := run.Answer(); answer != "" {
		return answer, nil
	}
	return "I found nothing to answer with.", nil
}
