package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/agentview/internal/observability"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(f float64) *float64 { return &f }

func TestFinancialActivities_InsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, desc := range []string{"first", "second", "third"} {
		a := &FinancialActivity{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Type:        Invoice,
			Amount:      ptr(450),
			Currency:    "USD",
			Description: desc,
			SenderName:  "Acme Corp",
			Confidence:  ptr(0.9),
			SourceText:  "Invoice #123 for $450 from Acme Corp",
			SourceType:  "ocr",
		}
		if err := s.InsertFinancialActivity(ctx, a); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if a.ID == 0 {
			t.Error("expected id to be set")
		}
	}

	got, err := s.ListFinancialActivities(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Description != "third" || got[1].Description != "second" {
		t.Errorf("expected newest first, got %s, %s", got[0].Description, got[1].Description)
	}
	if *got[0].Amount != 450 || got[0].SenderName != "Acme Corp" || !got[0].Timestamp.Equal(base.Add(2*time.Minute)) {
		t.Errorf("unexpected row %+v", got[0])
	}
}

func TestInsertFinancialActivity_RejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	valid := func() *FinancialActivity {
		return &FinancialActivity{Type: Payment, Amount: ptr(10), Currency: "EUR", Confidence: ptr(0.8)}
	}

	cases := map[string]func(a *FinancialActivity){
		"missing amount":     func(a *FinancialActivity) { a.Amount = nil },
		"nan amount":         func(a *FinancialActivity) { a.Amount = ptr(math.NaN()) },
		"missing confidence": func(a *FinancialActivity) { a.Confidence = nil },
		"inf confidence":     func(a *FinancialActivity) { a.Confidence = ptr(math.Inf(1)) },
		"unknown type":       func(a *FinancialActivity) { a.Type = "refund" },
		"missing currency":   func(a *FinancialActivity) { a.Currency = "" },
	}
	for name, mutate := range cases {
		a := valid()
		mutate(a)
		if err := s.InsertFinancialActivity(ctx, a); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: expected ErrInvalidRecord, got %v", name, err)
		}
	}

	rows, err := s.ListFinancialActivities(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("invalid records must not be persisted, got %d rows", len(rows))
	}
}

func TestSupportDocs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 9, 55, 0, 0, time.UTC)

	doc := &SupportDoc{
		Kind:      DocInstruction,
		Trigger:   "summarize the standup",
		Summary:   "standup notes",
		KeyPoints: []string{"ship v2", "fix login"},
		Topics:    []string{"release"},
		Sentiment: "positive",
		StartTime: start,
		EndTime:   start.Add(5 * time.Minute),
	}
	if err := s.InsertSupportDoc(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertSupportDoc(ctx, &SupportDoc{Trigger: "later", Summary: "b", Timestamp: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListSupportDocs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Trigger != "later" || docs[0].Kind != DocSupport {
		t.Fatalf("unexpected docs %+v", docs)
	}
	got := docs[1]
	if len(got.KeyPoints) != 2 || got.KeyPoints[1] != "fix login" || got.Sentiment != "positive" || !got.StartTime.Equal(start) {
		t.Errorf("unexpected doc %+v", got)
	}
}

func TestClassifiedItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, h := range []string{"acme invoice 123", "louis budget call"} {
		c := &ClassifiedItem{Timestamp: base.Add(time.Duration(i) * time.Second), Category: "work", IsImportant: i == 1, Confidence: 0.9, HyperInfo: h}
		if err := s.InsertClassifiedItem(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	items, err := s.RecentClassifiedItems(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].HyperInfo != "louis budget call" || !items[0].IsImportant {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestAgentSteps_StepSink(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := observability.NewStepRecorder(s)

	rec.Complete("run-1", "Starting", "planning")
	rec.Fail("run-1", "search error", "boom")
	rec.Complete("run-2", "Other", "x")

	steps, err := s.ListSteps(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0].HumanAction != "Starting" || steps[1].FinishReason != observability.FinishError {
		t.Fatalf("unexpected steps %+v", steps)
	}

	if err := s.DeleteSteps(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	steps, _ = s.ListSteps(ctx, "run-1")
	if len(steps) != 0 {
		t.Errorf("expected run-1 cleared, got %d", len(steps))
	}
	steps, _ = s.ListSteps(ctx, "run-2")
	if len(steps) != 1 {
		t.Errorf("run-2 should be untouched, got %d", len(steps))
	}
}
