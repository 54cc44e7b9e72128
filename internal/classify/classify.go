// Package classify labels captured content and keeps near-identical
// content from being stored twice, keyed by a short HyperInfo line.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
	"github.com/rahul/agentview/internal/store"
)

// ErrExcluded is returned for content the content policy rejects.
var ErrExcluded = errors.New("content excluded by policy")

// Store is the classified item history.
type Store interface {
	InsertClassifiedItem(ctx context.Context, c *store.ClassifiedItem) error
	RecentClassifiedItems(ctx context.Context, limit int) ([]store.ClassifiedItem, error)
}

// Classification is the model's label for one piece of content.
type Classification struct {
	Category    string  `json:"category"`
	IsImportant bool    `json:"isImportant"`
	Confidence  float64 `json:"confidence"`
	HyperInfo   string  `json:"hyperInfo"`
}

var classificationContract = inference.MustContract[Classification]("classification",
	"Category, importance and a hyper-specific one line description of captured content.",
	inference.Range("confidence", 0, 1),
)

// Outcome is the result of classifying one item.
type Outcome struct {
	Item      store.ClassifiedItem `json:"item"`
	Duplicate bool                 `json:"duplicate"`
}

type Classifier struct {
	Prompts *prompts.Book
	Steps   *observability.StepRecorder
	Logger  *observability.Logger
	Policy  *governance.ContentPolicy
	Store   Store
	Checker *DuplicateChecker
	Model   string
	Now     func() time.Time
}

func NewClassifier(book *prompts.Book, steps *observability.StepRecorder, logger *observability.Logger, s Store, checker *DuplicateChecker) *Classifier {
	return &Classifier{Prompts: book, Steps: steps, Logger: logger, Store: s, Checker: checker}
}

// Classify labels item and persists it unless an equivalent item was
// classified recently.
func (c *Classifier) Classify(ctx context.Context, rc agent.RunContext, item capture.ContentItem) (*Outcome, error) {
	if rc.Inference == nil {
		return nil, &agent.ConfigError{Reason: "classification needs an inference service"}
	}
	text := item.Text
	if c.Policy != nil {
		if res := c.Policy.Evaluate(governance.Request{AppName: item.AppName, WindowName: item.WindowName, Text: text}); res.Effect != governance.EffectAllow {
			return nil, fmt.Errorf("%w: %s", ErrExcluded, res.Reason)
		}
		text = c.Policy.Clean(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text", ErrExcluded)
	}

	rec := stepper{c.Steps, c.Logger}
	rec.complete(rc, "classification started", fmt.Sprintf("classifying content from %s", appLabel(item.AppName)))

	system, prompt, err := c.Prompts.Render("classify", map[string]any{"app": appLabel(item.AppName), "text": text})
	if err != nil {
		return nil, rec.fail(rc, "classification error", err)
	}
	cls, err := inference.Generate[Classification](ctx, rc.Inference,
		inference.Request{Model: c.Model, System: system, Prompt: prompt, RunID: rc.RunID}, classificationContract)
	if err != nil {
		return nil, rec.fail(rc, "classification error", err)
	}

	ts := item.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	out := &Outcome{Item: store.ClassifiedItem{
		Timestamp:   ts,
		Category:    strings.TrimSpace(cls.Category),
		IsImportant: cls.IsImportant,
		Confidence:  cls.Confidence,
		HyperInfo:   strings.TrimSpace(cls.HyperInfo),
		SourceText:  text,
		AppName:     item.AppName,
	}}

	if c.Checker != nil {
		dup, err := c.Checker.IsDuplicate(ctx, rc, out.Item.HyperInfo)
		if err != nil {
			return nil, rec.fail(rc, "classification error", err)
		}
		if dup {
			out.Duplicate = true
			rec.complete(rc, "classification complete", "duplicate of a recent item, not stored: "+out.Item.HyperInfo)
			return out, nil
		}
	}

	if err := c.Store.InsertClassifiedItem(ctx, &out.Item); err != nil {
		return nil, rec.fail(rc, "classification error", err)
	}
	rec.complete(rc, "classification complete",
		fmt.Sprintf("%s (important: %t, confidence %.2f): %s", out.Item.Category, out.Item.IsImportant, out.Item.Confidence, out.Item.HyperInfo))
	return out, nil
}

func (c *Classifier) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func appLabel(app string) string {
	if app == "" {
		return "an unknown app"
	}
	return app
}

type stepper struct {
	steps  *observability.StepRecorder
	logger *observability.Logger
}

func (s stepper) complete(rc agent.RunContext, action, text string) {
	if s.steps != nil {
		s.steps.Complete(rc.RunID, action, text)
	}
	s.logger.LogStep(rc.RunID, "classify", action, text, false)
}

func (s stepper) fail(rc agent.RunContext, action string, err error) error {
	s.failText(rc, action, err.Error())
	return err
}

func (s stepper) failText(rc agent.RunContext, action, text string) {
	if s.steps != nil {
		s.steps.Fail(rc.RunID, action, text)
	}
	s.logger.LogStep(rc.RunID, "classify", action, text, true)
}
