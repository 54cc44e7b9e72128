package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
)

const (
	DefaultThreshold = 0.8
	DefaultWindow    = 20
)

type similarity struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

var similarityContract = inference.MustContract[similarity]("similarity",
	"Likelihood from 0 to 1 that two descriptions refer to the same item.",
	inference.Range("score", 0, 1),
)

// DuplicateChecker compares a HyperInfo against recent history. It only
// reads; it never updates stored items.
type DuplicateChecker struct {
	Store     Store
	Prompts   *prompts.Book
	Steps     *observability.StepRecorder
	Logger    *observability.Logger
	Threshold float64
	Window    int
	Model     string
}

func NewDuplicateChecker(s Store, book *prompts.Book, steps *observability.StepRecorder, logger *observability.Logger, threshold float64, window int) *DuplicateChecker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &DuplicateChecker{Store: s, Prompts: book, Steps: steps, Logger: logger, Threshold: threshold, Window: window}
}

// IsDuplicate reports whether hyperInfo matches one of the recent items,
// first by normalized text and then by model similarity. A candidate whose
// similarity call fails is recorded and skipped.
func (d *DuplicateChecker) IsDuplicate(ctx context.Context, rc agent.RunContext, hyperInfo string) (bool, error) {
	key := normalize(hyperInfo)
	if key == "" {
		return false, nil
	}
	recent, err := d.Store.RecentClassifiedItems(ctx, d.Window)
	if err != nil {
		return false, fmt.Errorf("failed to load recent items: %w", err)
	}

	var candidates []string
	for _, item := range recent {
		other := normalize(item.HyperInfo)
		if other == "" {
			continue
		}
		if other == key {
			return true, nil
		}
		candidates = append(candidates, item.HyperInfo)
	}
	if len(candidates) == 0 {
		return false, nil
	}
	if rc.Inference == nil {
		return false, &agent.ConfigError{Reason: "duplicate check needs an inference service"}
	}

	rec := stepper{d.Steps, d.Logger}
	for _, cand := range candidates {
		score, err := d.score(ctx, rc, hyperInfo, cand)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			rec.failText(rc, "duplicate check error", fmt.Sprintf("similarity check against %q failed: %v", cand, err))
			continue
		}
		if score >= d.Threshold {
			return true, nil
		}
	}
	return false, nil
}

func (d *DuplicateChecker) score(ctx context.Context, rc agent.RunContext, a, b string) (float64, error) {
	system, prompt, err := d.Prompts.Render("similarity", map[string]any{"a": a, "b": b})
	if err != nil {
		return 0, err
	}
	s, err := inference.Generate[similarity](ctx, rc.Inference,
		inference.Request{Model: d.Model, System: system, Prompt: prompt, RunID: rc.RunID}, similarityContract)
	if err != nil {
		return 0, err
	}
	return s.Score, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
