package agent

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/observability"
)

// Detector feeds the live vision stream through the FinanceWorker until
// its context is cancelled.
type Detector struct {
	Stream    capture.Streamer
	Finance   *FinanceWorker
	Inference inference.Service
	APIKey    string
	Status    *observability.DetectorStatus
	Heartbeat time.Duration
}

func NewDetector(stream capture.Streamer, finance *FinanceWorker, svc inference.Service, apiKey string) *Detector {
	return &Detector{
		Stream:    stream,
		Finance:   finance,
		Inference: svc,
		APIKey:    apiKey,
		Status:    observability.NewDetectorStatus(),
		Heartbeat: 30 * time.Second,
	}
}

// Start blocks until ctx is done or the stream ends. Events are processed one
// at a time in arrival order.
func (d *Detector) Start(ctx context.Context) error {
	events, err := d.Stream.StreamVision(ctx, false)
	if err != nil {
		d.Status.Error(err)
		return err
	}
	d.Status.SetRunning(true)
	defer d.Status.SetRunning(false)

	interval := d.Heartbeat
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Financial activity detector started...")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Status.Heartbeat()
			d.Finance.Logger.LogHeartbeat()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			d.process(ctx, evt)
		}
	}
}

func (d *Detector) process(ctx context.Context, evt capture.VisionEvent) {
	text := evt.Text
	if p := d.Finance.Policy; p != nil {
		if !p.Allowed(governance.Request{AppName: evt.AppName, WindowName: evt.WindowName, Text: text}) {
			return
		}
		text = p.Clean(text)
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	done := d.Status.Begin()
	defer done()

	rc := RunContext{
		APIKey:    d.APIKey,
		RunID:     "finance-" + uuid.NewString(),
		Inference: d.Inference,
	}
	// Persisted sinks keep the timeline; the in-memory copy is per event.
	if d.Finance.Steps != nil {
		defer d.Finance.Steps.ClearSteps(rc.RunID)
	}

	if act := d.Finance.Detect(ctx, rc, FinanceInput{Text: text, Timestamp: evt.Timestamp, Source: "ocr"}); act != nil {
		d.Status.Detected()
	}
}
