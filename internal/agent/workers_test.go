package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/inference/inferencetest"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/relevance"
	"github.com/rahul/agentview/internal/timeframe"
)

func TestSearchWorker_SubQueryFailureIsSkipped(t *testing.T) {
	c := &fakeCapture{
		items: map[capture.ContentType][]capture.ContentItem{
			capture.OCR: {{Type: capture.OCR, Text: "budget sheet", Timestamp: testNow}},
		},
		fail: map[capture.ContentType]error{capture.Audio: errors.New("audio index offline")},
	}
	svc := inferencetest.New().
		On(relevance.Contract.Name, `{"results":[{"index":0,"relevant":true,"reason":"budget"}]}`).
		OnText("- one budget sheet")
	d := newTestDeps(c)
	d.Pipeline.ContentTypes = []string{"ocr", "audio"}

	res, err := (&SearchWorker{Deps: d}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "budget", Inference: svc}, Input{Step: PlanStep{Type: KindSearch}})
	if err != nil {
		t.Fatalf("a failing content type must not fail the search: %v", err)
	}
	sr := res.(*SearchResult)
	if len(sr.Items) != 1 || sr.Summary != "- one budget sheet" {
		t.Fatalf("unexpected result %+v", sr)
	}
	if len(c.Queries()) != 2 {
		t.Fatalf("expected one query per content type, got %d", len(c.Queries()))
	}

	var sawError bool
	for _, s := range d.Steps.GetSteps("r") {
		if s.FinishReason == observability.FinishError && strings.Contains(s.Text, "audio index offline") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected the failing sub-query to be recorded")
	}
}

func TestSearchWorker_ShortQueryUsedLiterally(t *testing.T) {
	c := &fakeCapture{}
	svc := inferencetest.New()
	d := newTestDeps(c)

	res, err := (&SearchWorker{Deps: d}).Execute(context.Background(),
		RunContext{RunID: "r", Query: `"acme" invoice`, Inference: svc}, Input{})
	if err != nil {
		t.Fatal(err)
	}
	if q := c.Queries()[0].Q; q != "acme invoice" {
		t.Errorf("expected sanitized literal query, got %q", q)
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("no inference calls expected for an empty short search, got %d", len(svc.Calls()))
	}
	if sr := res.(*SearchResult); len(sr.Items) != 0 || sr.Summary == "" {
		t.Errorf("unexpected result %+v", sr)
	}
}

func TestSearchWorker_LongQueryExtractsKeyTerms(t *testing.T) {
	c := &fakeCapture{}
	svc := inferencetest.New().On(keyTermsContract.Name, `{"synonyms":["louis","lewis"],"explanation":"names only"}`)

	_, err := (&SearchWorker{Deps: newTestDeps(c)}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "what did louis say yesterday", Inference: svc}, Input{})
	if err != nil {
		t.Fatal(err)
	}
	if q := c.Queries()[0].Q; q != "louis OR lewis" {
		t.Errorf("unexpected query %q", q)
	}
}

func TestSearchWorker_RecordsStartBeforeKeyTerms(t *testing.T) {
	svc := inferencetest.New().Fail(keyTermsContract.Name, errors.New("model unavailable"))
	d := newTestDeps(&fakeCapture{})

	_, err := (&SearchWorker{Deps: d}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "what did louis say yesterday", Inference: svc}, Input{})
	if err == nil {
		t.Fatal("expected key term extraction failure")
	}
	steps := d.Steps.GetSteps("r")
	if len(steps) != 2 {
		t.Fatalf("expected start and error steps, got %+v", steps)
	}
	if steps[0].HumanAction != "search started" || steps[0].FinishReason != observability.FinishComplete {
		t.Errorf("unexpected first step %+v", steps[0])
	}
	if steps[1].FinishReason != observability.FinishError {
		t.Errorf("expected terminal error step, got %+v", steps[1])
	}
}

func TestSearchWorker_FollowsPlanningAndTimeframe(t *testing.T) {
	c := &fakeCapture{}
	plan := &PlanningResult{SearchPlan: SearchPlan{
		ContentTypes:  []string{"audio"},
		SearchQueries: []SearchQuery{{Query: "budget*"}, {Query: "Q3 (forecast)"}},
	}}
	start := testNow.Add(-24 * time.Hour)
	tf := &TimeframeResult{Window: timeframe.Window{Type: timeframe.Relative, Start: start, End: testNow}}
	ent := &EntityResult{Synonyms: []string{"louis"}}

	_, err := (&SearchWorker{Deps: newTestDeps(c)}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "q", Inference: inferencetest.New()},
		Input{Prev: tf, Trail: []Result{plan, ent, tf}})
	if err != nil {
		t.Fatal(err)
	}
	qs := c.Queries()
	if len(qs) != 2 {
		t.Fatalf("expected one call per planned query, got %d", len(qs))
	}
	got := map[string]bool{}
	for _, q := range qs {
		got[q.Q] = true
		if q.ContentType != capture.Audio || q.StartTime != start.Format(time.RFC3339) || q.EndTime != testNow.Format(time.RFC3339) {
			t.Errorf("unexpected query %+v", q)
		}
	}
	if !got["budget"] || !got["Q3 forecast"] {
		t.Errorf("expected sanitized planned queries, got %v", got)
	}
}

func TestSearchWorker_RelevanceFailureIsFatal(t *testing.T) {
	c := &fakeCapture{items: map[capture.ContentType][]capture.ContentItem{
		capture.OCR: {{Type: capture.OCR, Text: "x", Timestamp: testNow}},
	}}
	svc := inferencetest.New().Fail(relevance.Contract.Name, errors.New("model unavailable"))
	d := newTestDeps(c)
	_, err := (&SearchWorker{Deps: d}).Execute(context.Background(), RunContext{RunID: "r", Query: "x", Inference: svc}, Input{})
	if err == nil {
		t.Fatal("expected search to fail")
	}
	steps := d.Steps.GetSteps("r")
	if last := steps[len(steps)-1]; last.FinishReason != observability.FinishError {
		t.Errorf("expected terminal error step, got %+v", last)
	}
}

func TestPlanningWorker(t *testing.T) {
	svc := inferencetest.New().On(planningContract.Name, `{
		"steps":["search audio"],"rationale":"talk happened in a call","estimatedTimeSeconds":12,"recommendations":[],
		"searchPlan":{"timeframe":{"type":"none","startTime":"","endTime":"","rationale":"none"},
		"contentTypes":["audio"],"searchQueries":[{"query":"louis","explanation":"name","expectedResults":["call"],"confidence":0.9}],
		"rationale":"names"}}`)
	d := newTestDeps(nil)
	res, err := (&PlanningWorker{Deps: d}).Execute(context.Background(), RunContext{RunID: "r", Query: "louis", Inference: svc},
		Input{Step: PlanStep{Type: KindPlanning, Purpose: "plan search", Context: PlanContext{Type: "search"}}})
	if err != nil {
		t.Fatal(err)
	}
	p := res.(*PlanningResult)
	if len(p.SearchPlan.SearchQueries) != 1 || p.SearchPlan.ContentTypes[0] != "audio" {
		t.Errorf("unexpected plan %+v", p)
	}
	if steps := d.Steps.GetSteps("r"); len(steps) != 2 {
		t.Errorf("expected start and complete steps, got %d", len(steps))
	}
}

func TestEntityWorker_FallsBackToQuery(t *testing.T) {
	svc := inferencetest.New().On(entityContract.Name, `{"resolvedQuery":"","synonyms":[" "],"explanation":""}`)
	res, err := (&EntityWorker{Deps: newTestDeps(nil)}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "acme", Inference: svc}, Input{})
	if err != nil {
		t.Fatal(err)
	}
	e := res.(*EntityResult)
	if len(e.Synonyms) != 1 || e.Synonyms[0] != "acme" || e.ResolvedQuery != "acme" {
		t.Errorf("expected literal fallback, got %+v", e)
	}
}

func TestTimeframeWorker_IncompleteBoundsAreNone(t *testing.T) {
	svc := inferencetest.New().On(timeframeContract.Name, `{"type":"relative","startTime":"2024-05-01T10:00:00Z","endTime":"","explanation":"half"}`)
	res, err := (&TimeframeWorker{Deps: newTestDeps(nil)}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "since ten", Inference: svc}, Input{})
	if err != nil {
		t.Fatal(err)
	}
	w := res.(*TimeframeResult).Window
	if w.Type != timeframe.None || w.Bounded() {
		t.Errorf("expected none window, got %+v", w)
	}
	if n := timeframe.Normalize(w, testNow, 0); !n.Start.Equal(testNow.Add(-5*time.Minute)) || !n.End.Equal(testNow) {
		t.Errorf("expected 5 minute default, got %+v", n)
	}
}

func TestAnswerWorker_UsesSearchWhenNoAnalysis(t *testing.T) {
	var prompt string
	svc := inferencetest.New().Handle(inferencetest.TextContract, func(req inference.Request) (string, error) {
		prompt = req.Prompt
		return "ok", nil
	})
	prev := &SearchResult{Summary: "found it", Items: []capture.ContentItem{{Text: "raw line", Timestamp: testNow}}}
	_, err := (&AnswerWorker{Deps: newTestDeps(nil)}).Execute(context.Background(),
		RunContext{RunID: "r", Query: "q", Inference: svc}, Input{Prev: prev, Step: PlanStep{Purpose: "answer"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "raw line") || !strings.Contains(prompt, "found it") {
		t.Errorf("prompt should carry search content, got %q", prompt)
	}
}

func TestClampLines(t *testing.T) {
	if got := clampLines("a\nb\nc\n\n", 2); got != "a\nb" {
		t.Errorf("got %q", got)
	}
	if got := clampLines("  single  ", 10); got != "single" {
		t.Errorf("got %q", got)
	}
}

func TestConversationSnippet_SortsAscending(t *testing.T) {
	got := conversationSnippet([]capture.ContentItem{
		{Text: "second", Timestamp: testNow},
		{Text: " ", Timestamp: testNow.Add(-time.Minute)},
		{Text: "undated"},
	})
	want := "unknown time:\nundated\n\n2024-05-01T11:59:00Z:\n[no text]\n\n2024-05-01T12:00:00Z:\nsecond"
	if got != want {
		t.Errorf("unexpected snippet:\n%s", got)
	}
}
