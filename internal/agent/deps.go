package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
	"github.com/rahul/agentview/internal/relevance"
	"github.com/rahul/agentview/internal/store"
	"github.com/rahul/agentview/pkg/config"
)

// FinanceStore persists detected financial activities.
type FinanceStore interface {
	InsertFinancialActivity(ctx context.Context, a *store.FinancialActivity) error
}

// Deps are the collaborators shared by the planner and every worker.
type Deps struct {
	Prompts  *prompts.Book
	Steps    *observability.StepRecorder
	Logger   *observability.Logger
	Capture  capture.Searcher
	Policy   *governance.ContentPolicy
	Finance  FinanceStore
	Notifier gateway.Notifier
	Pipeline config.PipelineConfig
	// Model overrides the inference client's default model when set.
	Model string
	Now   func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) complete(rc RunContext, worker, action, text string) {
	if d.Steps != nil {
		d.Steps.Complete(rc.RunID, action, text)
	}
	d.Logger.LogStep(rc.RunID, worker, action, text, false)
}

// fail records a terminal error step and returns err for propagation.
func (d *Deps) fail(rc RunContext, worker, action string, err error) error {
	d.failText(rc, worker, action, err.Error())
	return err
}

func (d *Deps) failText(rc RunContext, worker, action, text string) {
	if d.Steps != nil {
		d.Steps.Fail(rc.RunID, action, text)
	}
	d.Logger.LogStep(rc.RunID, worker, action, text, true)
}

func (d *Deps) request(rc RunContext, name string, vars map[string]any) (inference.Request, error) {
	system, prompt, err := d.Prompts.Render(name, vars)
	if err != nil {
		return inference.Request{}, err
	}
	return inference.Request{Model: d.Model, System: system, Prompt: prompt, RunID: rc.RunID}, nil
}

func (d *Deps) relevance(svc inference.Service) *relevance.Filter {
	f := relevance.NewFilter(svc, d.Prompts, d.Steps, d.Pipeline.RelevanceBatchSize)
	f.Model = d.Model
	return f
}

func (d *Deps) lookback() time.Duration {
	return d.Pipeline.DefaultLookback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func requireInference(rc RunContext) error {
	if rc.Inference == nil {
		return &ConfigError{Reason: fmt.Sprintf("run %s has no inference service", rc.RunID)}
	}
	return nil
}
