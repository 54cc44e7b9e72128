package capture

import (
	"context"
	"time"
)

// ContentType selects which capture modality a query searches.
type ContentType string

const (
	OCR      ContentType = "ocr"
	Audio    ContentType = "audio"
	UI       ContentType = "ui"
	All      ContentType = "all"
	AudioOCR ContentType = "audio+ocr"
)

// Query mirrors the capture service's search parameters.
type Query struct {
	Q             string
	ContentType   ContentType
	StartTime     string
	EndTime       string
	Limit         int
	Offset        int
	MinLength     int
	MaxLength     int
	AppName       string
	WindowName    string
	IncludeFrames bool
}

// ContentItem is one captured OCR frame, audio chunk or UI snapshot.
type ContentItem struct {
	Type            ContentType `json:"type"`
	Text            string      `json:"text"`
	Timestamp       time.Time   `json:"timestamp"`
	AppName         string      `json:"appName,omitempty"`
	WindowName      string      `json:"windowName,omitempty"`
	FilePath        string      `json:"filePath,omitempty"`
	DeviceName      string      `json:"deviceName,omitempty"`
	Tags            []string    `json:"tags,omitempty"`
	RelevanceReason string      `json:"relevanceReason,omitempty"`
}

// Key identifies an item for de-duplication across overlapping queries.
func (c ContentItem) Key() string {
	return string(c.Type) + "|" + c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.Text
}

// VisionEvent is a live OCR/UI event.
type VisionEvent struct {
	Text       string    `json:"text"`
	AppName    string    `json:"appName"`
	WindowName string    `json:"windowName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Image      string    `json:"image,omitempty"`
}

// TranscriptionEvent is a live audio transcription chunk.
type TranscriptionEvent struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	IsInput   bool      `json:"isInput"`
}

// Searcher queries stored capture content.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]ContentItem, error)
}

// Streamer exposes the live, unbounded capture feeds. Channels close when
// ctx is cancelled or the feed ends.
type Streamer interface {
	StreamVision(ctx context.Context, includeImages bool) (<-chan VisionEvent, error)
	StreamTranscriptions(ctx context.Context) (<-chan TranscriptionEvent, error)
}
