package docs

import (
	"context"
	"fmt"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/store"
)

type instructionSummary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Topics    []string `json:"topics"`
	Sentiment string   `json:"sentiment"`
}

var instructionContract = inference.MustContract[instructionSummary]("instruction_summary",
	"Summary, key points, topics and overall sentiment of captured content.",
	inference.Enum("sentiment", "positive", "neutral", "negative"),
)

// Instructions summarizes captured content for an explicit user instruction
// and also checks the instruction itself for financial activity.
type Instructions struct {
	*Manager
	Finance *agent.FinanceWorker
}

func (in *Instructions) Handle(ctx context.Context, rc agent.RunContext, instruction string) (*store.SupportDoc, error) {
	in.notify(ctx, gateway.Notification{Title: "Processing Instruction", Body: "Gathering context and generating summary..."})
	in.complete(rc, "instruction", "instruction started", fmt.Sprintf("instruction: %q", instruction))

	win, err := in.ExtractTimeRange(ctx, rc, instruction)
	if err != nil {
		return nil, in.fail(rc, "instruction", "instruction error", err)
	}
	items, err := in.gather(ctx, win)
	if err != nil {
		return nil, in.fail(rc, "instruction", "instruction error", err)
	}

	req, err := in.request(rc, "instruction", map[string]any{"instruction": instruction, "content": snippet(items)})
	if err != nil {
		return nil, in.fail(rc, "instruction", "instruction error", err)
	}
	sum, err := inference.Generate[instructionSummary](ctx, rc.Inference, req, instructionContract)
	if err != nil {
		return nil, in.fail(rc, "instruction", "instruction error", err)
	}

	doc := &store.SupportDoc{
		Timestamp: in.now(),
		Kind:      store.DocInstruction,
		Trigger:   instruction,
		Summary:   sum.Summary,
		KeyPoints: sum.KeyPoints,
		Topics:    sum.Topics,
		Sentiment: sum.Sentiment,
		StartTime: win.Start,
		EndTime:   win.End,
	}
	if err := in.Store.InsertSupportDoc(ctx, doc); err != nil {
		return nil, in.fail(rc, "instruction", "instruction error", err)
	}

	if in.Finance != nil {
		in.Finance.Detect(ctx, rc, agent.FinanceInput{Text: instruction, Timestamp: in.now(), Source: "instruction"})
	}

	in.notify(ctx, gateway.Notification{
		Title:   "Instruction Processed",
		Body:    "Summary generated and saved",
		Actions: []gateway.Action{{ID: "view", Label: "View Summary"}},
	})
	in.complete(rc, "instruction", "instruction complete", doc.Summary)
	return doc, nil
}
