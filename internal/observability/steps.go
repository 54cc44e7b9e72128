package observability

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FinishReason is the terminal state of an AgentStep.
type FinishReason string

const (
	FinishComplete FinishReason = "complete"
	FinishError    FinishReason = "error"
)

// AgentStep is one human-readable entry of a run's timeline.
type AgentStep struct {
	ID           string       `json:"id"`
	RunID        string       `json:"runId"`
	Timestamp    time.Time    `json:"timestamp"`
	HumanAction  string       `json:"humanAction"`
	Text         string       `json:"text"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
}

// StepSink receives every appended step, e.g. to persist or print it.
type StepSink interface {
	RecordStep(step AgentStep) error
}

// StepRecorder is the append-only, per-run step timeline.
// It never influences control flow: sink failures are only logged.
type StepRecorder struct {
	mu    sync.Mutex
	runs  map[string][]AgentStep
	sinks []StepSink
	now   func() time.Time
}

func NewStepRecorder(sinks ...StepSink) *StepRecorder {
	return &StepRecorder{
		runs:  make(map[string][]AgentStep),
		sinks: sinks,
		now:   time.Now,
	}
}

// AddSink registers an additional sink for steps appended from now on.
func (r *StepRecorder) AddSink(s StepSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// AddStep appends a step to runID's timeline and returns the stored copy.
// ID and Timestamp are assigned here; timestamps never go backwards within a run.
func (r *StepRecorder) AddStep(runID string, step AgentStep) AgentStep {
	r.mu.Lock()
	step.ID = uuid.NewString()
	step.RunID = runID
	step.Timestamp = r.now()
	if steps := r.runs[runID]; len(steps) > 0 {
		if last := steps[len(steps)-1].Timestamp; step.Timestamp.Before(last) {
			step.Timestamp = last
		}
	}
	r.runs[runID] = append(r.runs[runID], step)
	sinks := append([]StepSink(nil), r.sinks...)
	r.mu.Unlock()

	for _, s := range sinks {
		if err := s.RecordStep(step); err != nil {
			log.Printf("step sink failed for run %s: %v", runID, err)
		}
	}
	return step
}

// Complete is shorthand for a step that finished normally.
func (r *StepRecorder) Complete(runID, action, text string) AgentStep {
	return r.AddStep(runID, AgentStep{HumanAction: action, Text: text, FinishReason: FinishComplete})
}

// Fail is shorthand for a step that finished with an error.
func (r *StepRecorder) Fail(runID, action, text string) AgentStep {
	return r.AddStep(runID, AgentStep{HumanAction: action, Text: text, FinishReason: FinishError})
}

// GetSteps returns a copy of runID's timeline in insertion order.
func (r *StepRecorder) GetSteps(runID string) []AgentStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AgentStep(nil), r.runs[runID]...)
}

// ClearSteps drops runID's timeline.
func (r *StepRecorder) ClearSteps(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

// Runs lists run ids that currently hold steps.
func (r *StepRecorder) Runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}
