package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/timeframe"
)

type timeframeResponse struct {
	Type        string `json:"type"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Explanation string `json:"explanation"`
}

var timeframeContract = inference.MustContract[timeframeResponse]("timeframe",
	"Time window referenced by the query as ISO8601 bounds, or type none.",
	inference.Enum("type", "none", "relative", "specific"),
)

// TimeframeWorker resolves time expressions against the current time.
// Queries without a usable window yield type none with empty bounds.
type TimeframeWorker struct {
	*Deps
}

func (w *TimeframeWorker) Execute(ctx context.Context, rc RunContext, in Input) (Result, error) {
	if err := requireInference(rc); err != nil {
		return nil, err
	}
	query := in.query(rc)
	w.complete(rc, "timeframe", "timeframe parsing started",
		fmt.Sprintf("analyzing timeframe in query: %q", query))

	req, err := w.request(rc, "timeframe", map[string]any{
		"query": query,
		"now":   w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, w.fail(rc, "timeframe", "timeframe parsing error", err)
	}
	resp, err := inference.Generate[timeframeResponse](ctx, rc.Inference, req, timeframeContract)
	if err != nil {
		return nil, w.fail(rc, "timeframe", "timeframe parsing error", err)
	}

	win := timeframe.FromStrings(resp.Type, resp.StartTime, resp.EndTime, resp.Explanation)
	w.complete(rc, "timeframe", "timeframe parsing complete",
		fmt.Sprintf("parsed timeframe => %s: %s to %s", win.Type, win.StartString(), win.EndString()))
	return &TimeframeResult{Window: win}, nil
}
