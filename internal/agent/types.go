package agent

import (
	"encoding/json"
	"time"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/timeframe"
)

// StepKind is the closed set of plan step types.
type StepKind string

const (
	KindPlanning         StepKind = "planning"
	KindEntityResolution StepKind = "entity-resolution"
	KindTimeframe        StepKind = "timeframe"
	KindSearch           StepKind = "search"
	KindAnalysis         StepKind = "analysis"
	KindAnswer           StepKind = "answer"
)

// AllStepKinds lists every kind a plan may contain, in canonical order.
var AllStepKinds = []StepKind{
	KindPlanning, KindEntityResolution, KindTimeframe, KindSearch, KindAnalysis, KindAnswer,
}

// PlanContext is the shared context every plan step carries.
type PlanContext struct {
	Type      string `json:"type"`
	Query     string `json:"query"`
	Timeframe string `json:"timeframe"`
}

// PlanStep is one unit of work; its position in the plan is its execution order.
type PlanStep struct {
	Type    StepKind    `json:"type"`
	Purpose string      `json:"purpose"`
	Context PlanContext `json:"context"`
}

// ExecutionPlan is produced once per run and never modified afterwards.
type ExecutionPlan struct {
	Type                string     `json:"type"`
	Query               string     `json:"query"`
	Timeframe           string     `json:"timeframe"`
	Steps               []PlanStep `json:"steps"`
	EstimatedComplexity string     `json:"estimatedComplexity"`
}

func stepKindNames() []string {
	names := make([]string, len(AllStepKinds))
	for i, k := range AllStepKinds {
		names[i] = string(k)
	}
	return names
}

var planContract = inference.MustContract[ExecutionPlan]("execution_plan",
	"Ordered plan of steps that answers the user's query from captured content.",
	inference.Enum("type", "search", "classification"),
	inference.Enum("steps[].type", stepKindNames()...),
	inference.Enum("steps[].context.type", "search", "classification"),
	inference.Enum("estimatedComplexity", "low", "medium", "high"),
)

// RunContext is shared by every worker of one run.
type RunContext struct {
	APIKey    string
	RunID     string
	Query     string
	Timeframe string
	// Inference is the service bound to APIKey for this run.
	Inference inference.Service
}

// Result is the output of one executed step. Each kind has exactly one
// concrete type; consumers switch on the concrete type, never on fields.
type Result interface {
	Kind() StepKind
	isResult()
}

type PlanTimeframe struct {
	Type      string `json:"type"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Rationale string `json:"rationale"`
}

type SearchQuery struct {
	Query           string   `json:"query"`
	Explanation     string   `json:"explanation"`
	ExpectedResults []string `json:"expectedResults"`
	Confidence      float64  `json:"confidence"`
}

// SearchPlan describes what to search and over which window.
type SearchPlan struct {
	Timeframe     PlanTimeframe `json:"timeframe"`
	ContentTypes  []string      `json:"contentTypes"`
	SearchQueries []SearchQuery `json:"searchQueries"`
	Rationale     string        `json:"rationale"`
}

type PlanningResult struct {
	Steps                []string   `json:"steps"`
	Rationale            string     `json:"rationale"`
	EstimatedTimeSeconds float64    `json:"estimatedTimeSeconds"`
	Recommendations      []string   `json:"recommendations"`
	SearchPlan           SearchPlan `json:"searchPlan"`
}

type EntityResult struct {
	ResolvedQuery string   `json:"resolvedQuery"`
	Synonyms      []string `json:"synonyms"`
	Explanation   string   `json:"explanation"`
}

type TimeframeResult struct {
	Window timeframe.Window `json:"timeframe"`
}

type SearchResult struct {
	Items                  []capture.ContentItem `json:"items"`
	Summary                string                `json:"summary"`
	NextStepRecommendation string                `json:"nextStepRecommendation"`
	Synonyms               []string              `json:"synonyms"`
	Queries                []string              `json:"queries"`
}

type AnalysisResult struct {
	Summary             string   `json:"summary"`
	RecommendedItems    []string `json:"recommendedItems"`
	Explanation         string   `json:"explanation"`
	ConversationSnippet string   `json:"conversationSnippet"`
}

type AnswerResult struct {
	Answer string `json:"answer"`
}

func (*PlanningResult) Kind() StepKind  { return KindPlanning }
func (*EntityResult) Kind() StepKind    { return KindEntityResolution }
func (*TimeframeResult) Kind() StepKind { return KindTimeframe }
func (*SearchResult) Kind() StepKind    { return KindSearch }
func (*AnalysisResult) Kind() StepKind  { return KindAnalysis }
func (*AnswerResult) Kind() StepKind    { return KindAnswer }

func (*PlanningResult) isResult()  {}
func (*EntityResult) isResult()    {}
func (*TimeframeResult) isResult() {}
func (*SearchResult) isResult()    {}
func (*AnalysisResult) isResult()  {}
func (*AnswerResult) isResult()    {}

// Input is what a worker receives: its step, the plan, the previous
// result and the run's full trail of results so far.
type Input struct {
	Step  PlanStep
	Plan  *ExecutionPlan
	Prev  Result
	Trail []Result
}

func (in Input) query(rc RunContext) string {
	if in.Plan != nil && in.Plan.Query != "" {
		return in.Plan.Query
	}
	return rc.Query
}

// latest returns prev if it is a T, else the most recent T in trail.
func latest[T Result](prev Result, trail []Result) (T, bool) {
	if v, ok := prev.(T); ok {
		return v, true
	}
	for i := len(trail) - 1; i >= 0; i-- {
		if v, ok := trail[i].(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Run is the outcome of one orchestration. Results may be partial when Err is set.
type Run struct {
	RunID      string         `json:"runId"`
	Plan       *ExecutionPlan `json:"plan"`
	Results    []Result       `json:"-"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// Answer is the user-facing text of the run: the last answer, falling
// back to the last analysis or search summary.
func (r *Run) Answer() string {
	if r == nil {
		return ""
	}
	if a, ok := latest[*AnswerResult](nil, r.Results); ok {
		return a.Answer
	}
	if a, ok := latest[*AnalysisResult](nil, r.Results); ok {
		return a.Summary
	}
	if s, ok := latest[*SearchResult](nil, r.Results); ok {
		return s.Summary
	}
	return ""
}

type taggedResult struct {
	Kind   StepKind `json:"kind"`
	Result Result   `json:"result"`
}

func (r *Run) MarshalJSON() ([]byte, error) {
	type alias Run
	tagged := make([]taggedResult, len(r.Results))
	for i, res := range r.Results {
		tagged[i] = taggedResult{Kind: res.Kind(), Result: res}
	}
	return json.Marshal(struct {
		*alias
		Results []taggedResult `json:"results"`
		Answer  string         `json:"answer"`
	}{alias: (*alias)(r), Results: tagged, Answer: r.Answer()})
}
