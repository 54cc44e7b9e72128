package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
)

type wsEvent struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type wsVision struct {
	Text       string `json:"text"`
	AppName    string `json:"app_name"`
	WindowName string `json:"window_name"`
	Timestamp  string `json:"timestamp"`
	Image      string `json:"image"`
}

type wsTranscription struct {
	Transcription string `json:"transcription"`
	Timestamp     string `json:"timestamp"`
	Device        string `json:"device"`
	IsInput       bool   `json:"is_input"`
}

func (c *Client) eventsURL(includeImages bool) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid capture url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/events"
	u.RawQuery = url.Values{"images": {strconv.FormatBool(includeImages)}}.Encode()
	return u.String(), nil
}

// events dials the capture event feed. The connection is closed as soon as
// ctx is cancelled, which also unblocks any pending read.
func (c *Client) events(ctx context.Context, includeImages bool) (<-chan wsEvent, error) {
	endpoint, err := c.eventsURL(includeImages)
	if err != nil {
		return nil, err
	}
	conn, _, err := c.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture stream: %w", err)
	}

	out := make(chan wsEvent)
	go func() {
		defer close(out)
		defer conn.Close()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-stop:
			}
		}()

		for {
			var evt wsEvent
			if err := conn.ReadJSON(&evt); err != nil {
				if ctx.Err() == nil {
					log.Printf("capture stream ended: %v", err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// StreamVision yields OCR and UI events until ctx is cancelled.
func (c *Client) StreamVision(ctx context.Context, includeImages bool) (<-chan VisionEvent, error) {
	raw, err := c.events(ctx, includeImages)
	if err != nil {
		return nil, err
	}
	out := make(chan VisionEvent)
	go func() {
		defer close(out)
		for evt := range raw {
			if evt.Name != "ocr_result" && evt.Name != "ui_frame" {
				continue
			}
			var v wsVision
			if err := json.Unmarshal(evt.Data, &v); err != nil {
				continue
			}
			ve := VisionEvent{
				Text:       v.Text,
				AppName:    v.AppName,
				WindowName: v.WindowName,
				Timestamp:  parseTimestamp(v.Timestamp),
			}
			if includeImages {
				ve.Image = v.Image
			}
			select {
			case out <- ve:
			case <-ctx.Done():
				drain(raw)
				return
			}
		}
	}()
	return out, nil
}

// StreamTranscriptions yields audio transcription chunks until ctx is cancelled.
func (c *Client) StreamTranscriptions(ctx context.Context) (<-chan TranscriptionEvent, error) {
	raw, err := c.events(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make(chan TranscriptionEvent)
	go func() {
		defer close(out)
		for evt := range raw {
			if evt.Name != "transcription" {
				continue
			}
			var tr wsTranscription
			if err := json.Unmarshal(evt.Data, &tr); err != nil {
				continue
			}
			te := TranscriptionEvent{
				Text:      tr.Transcription,
				Timestamp: parseTimestamp(tr.Timestamp),
				Device:    tr.Device,
				IsInput:   tr.IsInput,
			}
			select {
			case out <- te:
			case <-ctx.Done():
				drain(raw)
				return
			}
		}
	}()
	return out, nil
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}
