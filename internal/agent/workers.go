package agent

import (
	"context"
	"fmt"
)

// Worker executes one plan step.
type Worker interface {
	Execute(ctx context.Context, rc RunContext, in Input) (Result, error)
}

// Workers is the dispatch table: one handler per StepKind. Adding a kind
// means adding a field here and a case in For.
type Workers struct {
	Planning         Worker
	EntityResolution Worker
	Timeframe        Worker
	Search           Worker
	Analysis         Worker
	Answer           Worker
}

func NewWorkers(d *Deps) Workers {
	return Workers{
		Planning:         &PlanningWorker{Deps: d},
		EntityResolution: &EntityWorker{Deps: d},
		Timeframe:        &TimeframeWorker{Deps: d},
		Search:           &SearchWorker{Deps: d},
		Analysis:         &AnalysisWorker{Deps: d},
		Answer:           &AnswerWorker{Deps: d},
	}
}

// For resolves the worker for kind. Unknown kinds and unset handlers are
// configuration errors.
func (w Workers) For(kind StepKind) (Worker, error) {
	var h Worker
	switch kind {
	case KindPlanning:
		h = w.Planning
	case KindEntityResolution:
		h = w.EntityResolution
	case KindTimeframe:
		h = w.Timeframe
	case KindSearch:
		h = w.Search
	case KindAnalysis:
		h = w.Analysis
	case KindAnswer:
		h = w.Answer
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("no worker registered for step type %q", kind)}
	}
	if h == nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("worker for step type %q is not configured", kind)}
	}
	return h, nil
}

// Validate checks that every kind resolves to a handler.
func (w Workers) Validate() error {
	for _, k := range AllStepKinds {
		if _, err := w.For(k); err != nil {
			return err
		}
	}
	return nil
}
