package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rahul/agentview/internal/agent"

// Executor runs plan steps strictly in order; step N+1 sees step N's result.
type Executor struct {
	Workers Workers
	Deps    *Deps
	tracer  trace.Tracer
}

func NewExecutor(workers Workers, deps *Deps) *Executor {
	return &Executor{Workers: workers, Deps: deps, tracer: otel.Tracer(tracerName)}
}

// Execute returns one result per completed step. On failure the results
// produced so far are returned alongside the error.
func (e *Executor) Execute(ctx context.Context, rc RunContext, plan *ExecutionPlan) ([]Result, error) {
	if plan == nil {
		return nil, nil
	}
	tracer := e.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	results := make([]Result, 0, len(plan.Steps))
	var prev Result
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		worker, err := e.Workers.For(step.Type)
		if err != nil {
			return results, e.Deps.fail(rc, "executor", "Unknown step type", err)
		}

		stepCtx, span := tracer.Start(ctx, "agent.step."+string(step.Type), trace.WithAttributes(
			attribute.String("agent.run_id", rc.RunID),
			attribute.Int("agent.step_index", i),
			attribute.String("agent.step_purpose", step.Purpose),
		))
		res, err := worker.Execute(stepCtx, rc, Input{
			Step:  step,
			Plan:  plan,
			Prev:  prev,
			Trail: append([]Result(nil), results...),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return results, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Type, err)
		}
		span.End()

		results = append(results, res)
		prev = res
	}
	return results, nil
}
