// Package docs turns recently captured content into stored support
// documents, either from a trigger sentence or an explicit instruction.
package docs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/prompts"
	"github.com/rahul/agentview/internal/store"
	"github.com/rahul/agentview/internal/timeframe"
)

// ErrNoContent is returned when nothing was captured in the requested range.
var ErrNoContent = errors.New("no data found for the specified timeframe")

const (
	snippetLimit = 3000
	fetchLimit   = 100
)

// DocStore persists generated documents.
type DocStore interface {
	InsertSupportDoc(ctx context.Context, d *store.SupportDoc) error
}

type timeRange struct {
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	RawDescription string `json:"rawDescription"`
}

var timeRangeContract = inference.MustContract[timeRange]("time_range",
	"ISO8601 start and end of the captured content a request refers to.")

// Manager holds what both document flows share.
type Manager struct {
	Prompts  *prompts.Book
	Steps    *observability.StepRecorder
	Logger   *observability.Logger
	Capture  capture.Searcher
	Store    DocStore
	Notifier gateway.Notifier
	Policy   *governance.ContentPolicy
	Lookback time.Duration
	Model    string
	Now      func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// ExtractTimeRange asks the model which range text refers to. Incomplete
// answers fall back to the last few minutes ending now.
func (m *Manager) ExtractTimeRange(ctx context.Context, rc agent.RunContext, text string) (timeframe.Window, error) {
	now := m.now()
	if rc.Inference == nil {
		return timeframe.Window{}, &agent.ConfigError{Reason: "time range extraction needs an inference service"}
	}
	system, prompt, err := m.Prompts.Render("time_range", map[string]any{
		"text": text,
		"now":  now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return timeframe.Window{}, err
	}
	tr, err := inference.Generate[timeRange](ctx, rc.Inference,
		inference.Request{Model: m.Model, System: system, Prompt: prompt, RunID: rc.RunID}, timeRangeContract)
	if err != nil {
		return timeframe.Window{}, fmt.Errorf("failed to extract time range: %w", err)
	}
	w := timeframe.FromStrings(string(timeframe.Specific), tr.StartTime, tr.EndTime, tr.RawDescription)
	return timeframe.Normalize(w, now, m.Lookback), nil
}

// gather fetches audio and OCR content for w in ascending time order.
func (m *Manager) gather(ctx context.Context, w timeframe.Window) ([]capture.ContentItem, error) {
	if m.Capture == nil {
		return nil, &agent.ConfigError{Reason: "no capture client configured"}
	}
	items, err := m.Capture.Search(ctx, capture.Query{
		ContentType: capture.AudioOCR,
		StartTime:   w.StartString(),
		EndTime:     w.EndString(),
		Limit:       fetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query captured content: %w", err)
	}

	var kept []capture.ContentItem
	for _, item := range items {
		if m.Policy != nil {
			if !m.Policy.Allowed(governance.Request{AppName: item.AppName, WindowName: item.WindowName, Text: item.Text}) {
				continue
			}
			item.Text = m.Policy.Clean(item.Text)
		}
		kept = append(kept, item)
	}
	if len(kept) == 0 {
		return nil, ErrNoContent
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Timestamp.Before(kept[j].Timestamp) })
	return kept, nil
}

func snippet(items []capture.ContentItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		ts := "unknown time"
		if !item.Timestamp.IsZero() {
			ts = item.Timestamp.UTC().Format(time.RFC3339)
		}
		text := strings.TrimSpace(item.Text)
		if text == "" {
			text = "[no text]"
		}
		parts = append(parts, ts+":\n"+text)
	}
	s := []rune(strings.Join(parts, "\n\n"))
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return string(s)
}

func (m *Manager) notify(ctx context.Context, n gateway.Notification) {
	gateway.Send(ctx, m.Notifier, m.Logger, n)
}

func (m *Manager) complete(rc agent.RunContext, worker, action, text string) {
	if m.Steps != nil {
		m.Steps.Complete(rc.RunID, action, text)
	}
	m.Logger.LogStep(rc.RunID, worker, action, text, false)
}

func (m *Manager) fail(rc agent.RunContext, worker, action string, err error) error {
	if m.Steps != nil {
		m.Steps.Fail(rc.RunID, action, err.Error())
	}
	m.Logger.LogStep(rc.RunID, worker, action, err.Error(), true)
	return err
}

func (m *Manager) request(rc agent.RunContext, name string, vars map[string]any) (inference.Request, error) {
	system, prompt, err := m.Prompts.Render(name, vars)
	if err != nil {
		return inference.Request{}, err
	}
	return inference.Request{Model: m.Model, System: system, Prompt: prompt, RunID: rc.RunID}, nil
}
