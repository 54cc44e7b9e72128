package docs

import (
	"context"
	"fmt"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/store"
)

type supportDoc struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"keyPoints"`
	RecommendedActions []string `json:"recommendedActions"`
}

var supportDocContract = inference.MustContract[supportDoc]("support_doc",
	"Brief support documentation: summary, key points and recommended actions.")

// SupportDocs writes a support document about whatever was captured in the
// range a trigger sentence refers to.
type SupportDocs struct {
	*Manager
}

func (s *SupportDocs) Handle(ctx context.Context, rc agent.RunContext, trigger string) (*store.SupportDoc, error) {
	s.notify(ctx, gateway.Notification{Title: "Creating support documentation", Body: "We're gathering context now..."})
	s.complete(rc, "support-doc", "support doc started", fmt.Sprintf("trigger: %q", trigger))

	win, err := s.ExtractTimeRange(ctx, rc, trigger)
	if err != nil {
		return nil, s.fail(rc, "support-doc", "support doc error", err)
	}
	items, err := s.gather(ctx, win)
	if err != nil {
		return nil, s.fail(rc, "support-doc", "support doc error", err)
	}
	s.complete(rc, "support-doc", "context gathered",
		fmt.Sprintf("%d items between %s and %s", len(items), win.StartString(), win.EndString()))

	req, err := s.request(rc, "support_doc", map[string]any{"trigger": trigger, "content": snippet(items)})
	if err != nil {
		return nil, s.fail(rc, "support-doc", "support doc error", err)
	}
	gen, err := inference.Generate[supportDoc](ctx, rc.Inference, req, supportDocContract)
	if err != nil {
		return nil, s.fail(rc, "support-doc", "support doc error", err)
	}

	doc := &store.SupportDoc{
		Timestamp:          s.now(),
		Kind:               store.DocSupport,
		Trigger:            trigger,
		Summary:            gen.Summary,
		KeyPoints:          gen.KeyPoints,
		RecommendedActions: gen.RecommendedActions,
		StartTime:          win.Start,
		EndTime:            win.End,
	}
	if err := s.Store.InsertSupportDoc(ctx, doc); err != nil {
		return nil, s.fail(rc, "support-doc", "support doc error", err)
	}

	s.notify(ctx, gateway.Notification{
		Title:   "Support doc created",
		Body:    "Click here to view",
		Actions: []gateway.Action{{ID: "view", Label: "View doc"}},
	})
	s.complete(rc, "support-doc", "support doc complete", doc.Summary)
	return doc, nil
}
