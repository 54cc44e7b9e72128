package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc"

	"github.com/rahul/agentview/internal/governance"
)

const defaultWatch = "invoice"

// InboxMessage is one relayed capture event.
type InboxMessage struct {
	Text      string    `json:"text"`
	AppName   string    `json:"appName"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Device    string    `json:"device,omitempty"`
}

// handleInbox relays vision and transcription events whose text contains
// the watch keyword as server-sent events until the client goes away.
func (s *Server) handleInbox(c *gin.Context) {
	if s.opts.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no capture stream configured"})
		return
	}
	watch := strings.ToLower(strings.TrimSpace(c.DefaultQuery("watch", defaultWatch)))
	if watch == "" {
		watch = defaultWatch
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	vision, verr := s.opts.Stream.StreamVision(ctx, false)
	transcripts, terr := s.opts.Stream.StreamTranscriptions(ctx)
	if verr != nil && terr != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("capture streams unavailable: %v; %v", verr, terr)})
		return
	}
	if verr != nil {
		log.Printf("inbox: vision stream unavailable: %v", verr)
	}
	if terr != nil {
		log.Printf("inbox: transcription stream unavailable: %v", terr)
	}

	out := make(chan InboxMessage)
	var wg conc.WaitGroup
	if vision != nil {
		wg.Go(func() {
			for evt := range vision {
				if !s.admit(evt.AppName, evt.WindowName, evt.Text) || !strings.Contains(strings.ToLower(evt.Text), watch) {
					continue
				}
				msg := InboxMessage{Text: s.clean(evt.Text), AppName: evt.AppName, Timestamp: time.Now().UTC(), Type: "vision"}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		})
	}
	if transcripts != nil {
		wg.Go(func() {
			for evt := range transcripts {
				if !strings.Contains(strings.ToLower(evt.Text), watch) {
					continue
				}
				msg := InboxMessage{
					Text:      s.clean(evt.Text),
					AppName:   "Audio Transcription",
					Timestamp: evt.Timestamp,
					Type:      "transcription",
					Device:    evt.Device,
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for msg := range out {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			// Client is gone; stop the producers and drain.
			cancel()
			continue
		}
		c.Writer.Flush()
	}
}

func (s *Server) admit(app, window, text string) bool {
	if s.opts.Policy == nil {
		return true
	}
	return s.opts.Policy.Allowed(governance.Request{AppName: app, WindowName: window, Text: text})
}

func (s *Server) clean(text string) string {
	if s.opts.Policy == nil {
		return text
	}
	return s.opts.Policy.Clean(text)
}
