package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to the local capture service over HTTP and websockets.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Dialer  *websocket.Dialer
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Dialer:  websocket.DefaultDialer,
	}
}

type searchResponse struct {
	Data []struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
	} `json:"data"`
}

type rawContent struct {
	Text          string   `json:"text"`
	Transcription string   `json:"transcription"`
	Timestamp     string   `json:"timestamp"`
	AppName       string   `json:"app_name"`
	WindowName    string   `json:"window_name"`
	FilePath      string   `json:"file_path"`
	DeviceName    string   `json:"device_name"`
	Tags          []string `json:"tags"`
}

func (c *Client) searchURL(q Query) string {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.ContentType != "" {
		v.Set("content_type", string(q.ContentType))
	}
	if q.StartTime != "" {
		v.Set("start_time", q.StartTime)
	}
	if q.EndTime != "" {
		v.Set("end_time", q.EndTime)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.MinLength > 0 {
		v.Set("min_length", strconv.Itoa(q.MinLength))
	}
	if q.MaxLength > 0 {
		v.Set("max_length", strconv.Itoa(q.MaxLength))
	}
	if q.AppName != "" {
		v.Set("app_name", q.AppName)
	}
	if q.WindowName != "" {
		v.Set("window_name", q.WindowName)
	}
	v.Set("include_frames", strconv.FormatBool(q.IncludeFrames))
	return c.BaseURL + "/search?" + v.Encode()
}

// Search runs one query against stored capture content.
func (c *Client) Search(ctx context.Context, q Query) ([]ContentItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capture search failed: status code %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode capture response: %w", err)
	}

	items := make([]ContentItem, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		var rc rawContent
		if err := json.Unmarshal(d.Content, &rc); err != nil {
			continue
		}
		items = append(items, normalize(d.Type, rc))
	}
	return items, nil
}

func normalize(kind string, rc rawContent) ContentItem {
	item := ContentItem{
		Type:       contentTypeOf(kind),
		Text:       rc.Text,
		Timestamp:  parseTimestamp(rc.Timestamp),
		AppName:    rc.AppName,
		WindowName: rc.WindowName,
		FilePath:   rc.FilePath,
		DeviceName: rc.DeviceName,
		Tags:       rc.Tags,
	}
	if item.Text == "" {
		item.Text = rc.Transcription
	}
	return item
}

func contentTypeOf(kind string) ContentType {
	switch strings.ToLower(kind) {
	case "audio":
		return Audio
	case "ui":
		return UI
	default:
		return OCR
	}
}

func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
