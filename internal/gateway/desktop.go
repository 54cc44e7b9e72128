package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Desktop posts notifications to the capture service's notify endpoint.
type Desktop struct {
	URL     string
	Timeout time.Duration
	HTTP    *http.Client
}

func NewDesktop(url string) *Desktop {
	return &Desktop{
		URL:     strings.TrimRight(url, "/"),
		Timeout: 5 * time.Second,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type desktopPayload struct {
	Notification
	Timeout int64 `json:"timeout,omitempty"`
}

func (d *Desktop) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(desktopPayload{Notification: n, Timeout: d.Timeout.Milliseconds()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL+"/notify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("desktop notification failed: status code %d", resp.StatusCode)
	}
	return nil
}
