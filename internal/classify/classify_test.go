package classify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference/inferencetest"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
	"github.com/rahul/agentview/internal/store"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Classifier, *store.Store, *observability.StepRecorder) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "classify.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	steps := observability.NewStepRecorder()
	book := prompts.Default()
	logger := observability.Discard()
	c := NewClassifier(book, steps, logger, db, NewDuplicateChecker(db, book, steps, logger, 0.8, 20))
	c.Policy = governance.NewDefaultContentPolicy("agentview")
	c.Now = func() time.Time { return testNow }
	return c, db, steps
}

func rc(svc *inferencetest.Scripted) agent.RunContext {
	return agent.RunContext{RunID: "cls", Inference: svc}
}

func TestClassify_PersistsNewItem(t *testing.T) {
	c, db, _ := setup(t)
	svc := inferencetest.New().On(classificationContract.Name,
		`{"category":"finance","isImportant":true,"confidence":0.9,"hyperInfo":"Invoice #123 from Acme Corp for $450"}`)

	out, err := c.Classify(context.Background(), rc(svc), capture.ContentItem{Text: "<b>Invoice #123</b> Acme Corp $450", AppName: "Mail"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Duplicate || out.Item.ID == 0 {
		t.Fatalf("expected a stored item, got %+v", out)
	}
	if out.Item.SourceText != "Invoice #123 Acme Corp $450" {
		t.Errorf("expected markup to be stripped, got %q", out.Item.SourceText)
	}
	items, err := db.RecentClassifiedItems(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Category != "finance" || !items[0].IsImportant {
		t.Errorf("unexpected stored items %+v", items)
	}
	if svc.CallsFor(similarityContract.Name) != 0 {
		t.Error("no similarity calls expected against an empty history")
	}
}

func TestClassify_SecondOccurrenceIsDuplicate(t *testing.T) {
	c, db, _ := setup(t)
	svc := inferencetest.New().
		On(classificationContract.Name,
			`{"category":"finance","isImportant":true,"confidence":0.9,"hyperInfo":"Invoice #123 from Acme Corp for $450"}`,
			`{"category":"finance","isImportant":true,"confidence":0.8,"hyperInfo":"Acme Corp invoice 123, 450 dollars"}`).
		On(similarityContract.Name, `{"score":0.93,"reason":"same invoice"}`)

	item := capture.ContentItem{Text: "Invoice #123 Acme Corp $450", AppName: "Mail"}
	if _, err := c.Classify(context.Background(), rc(svc), item); err != nil {
		t.Fatal(err)
	}
	out, err := c.Classify(context.Background(), rc(svc), capture.ContentItem{Text: "Acme invoice 123 is $450", AppName: "Slack"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate {
		t.Fatal("expected the second occurrence to be a duplicate")
	}
	items, _ := db.RecentClassifiedItems(context.Background(), 10)
	if len(items) != 1 {
		t.Errorf("duplicates must not be stored, found %d items", len(items))
	}
}

func TestIsDuplicate_NormalizedExactMatch(t *testing.T) {
	c, db, _ := setup(t)
	if err := db.InsertClassifiedItem(context.Background(), &store.ClassifiedItem{HyperInfo: "Invoice  #123 from ACME Corp", Timestamp: testNow}); err != nil {
		t.Fatal(err)
	}
	svc := inferencetest.New()
	dup, err := c.Checker.IsDuplicate(context.Background(), rc(svc), " invoice #123 from acme corp ")
	if err != nil {
		t.Fatal(err)
	}
	if !dup {
		t.Error("expected exact match after normalization")
	}
	if len(svc.Calls()) != 0 {
		t.Errorf("exact matches need no model calls, got %d", len(svc.Calls()))
	}
}

func TestIsDuplicate_FailingCandidateIsSkipped(t *testing.T) {
	c, db, steps := setup(t)
	for i, h := range []string{"weekly standup notes", "acme invoice reminder"} {
		if err := db.InsertClassifiedItem(context.Background(), &store.ClassifiedItem{HyperInfo: h, Timestamp: testNow.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	// Newest first: the invoice reminder fails, the standup notes score low.
	svc := inferencetest.New().
		Fail(similarityContract.Name, errors.New("timeout")).
		On(similarityContract.Name, `{"score":0.1,"reason":"unrelated"}`)

	dup, err := c.Checker.IsDuplicate(context.Background(), rc(svc), "Invoice #123 from Acme Corp")
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Error("expected no duplicate")
	}
	if n := svc.CallsFor(similarityContract.Name); n != 2 {
		t.Errorf("expected both candidates to be checked, got %d calls", n)
	}
	got := steps.GetSteps("cls")
	if len(got) != 1 || got[0].FinishReason != observability.FinishError {
		t.Errorf("expected one error step, got %+v", got)
	}
}

func TestClassify_ExcludedWindow(t *testing.T) {
	c, _, _ := setup(t)
	svc := inferencetest.New()
	_, err := c.Classify(context.Background(), rc(svc), capture.ContentItem{Text: "secret", WindowName: "AgentView settings"})
	if !errors.Is(err, ErrExcluded) {
		t.Fatalf("expected ErrExcluded, got %v", err)
	}
	if len(svc.Calls()) != 0 {
		t.Error("excluded content must not reach the model")
	}
}

func TestClassify_RequiresInference(t *testing.T) {
	c, _, _ := setup(t)
	_, err := c.Classify(context.Background(), agent.RunContext{RunID: "cls"}, capture.ContentItem{Text: "x"})
	if !errors.Is(err, agent.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
