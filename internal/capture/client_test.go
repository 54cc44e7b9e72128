package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSearch_NormalizesContent(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"type":"OCR","content":{"text":"budget review","timestamp":"2024-05-01T10:00:00Z","app_name":"Zoom","window_name":"Louis"}},
			{"type":"Audio","content":{"transcription":"louis said hi","timestamp":"2024-05-01T10:01:00.5Z","device_name":"mic"}},
			{"type":"UI","content":{"text":"Send","timestamp":"bad","app_name":"Mail"}}
		],"pagination":{"limit":10,"offset":0,"total":3}}`))
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL).Search(context.Background(), Query{
		Q:           "louis OR louie",
		ContentType: OCR,
		StartTime:   "2024-05-01T09:00:00Z",
		Limit:       50,
		MinLength:   3,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if got["q"] != "louis OR louie" || got["content_type"] != "ocr" || got["limit"] != "50" ||
		got["min_length"] != "3" || got["include_frames"] != "false" || got["start_time"] == "" {
		t.Errorf("unexpected query params %v", got)
	}
	if _, ok := got["end_time"]; ok {
		t.Error("empty end_time should be omitted")
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Type != OCR || items[0].AppName != "Zoom" || items[0].Timestamp.Hour() != 10 {
		t.Errorf("unexpected ocr item %+v", items[0])
	}
	if items[1].Type != Audio || items[1].Text != "louis said hi" || items[1].DeviceName != "mic" {
		t.Errorf("unexpected audio item %+v", items[1])
	}
	if items[2].Type != UI || !items[2].Timestamp.IsZero() {
		t.Errorf("unexpected ui item %+v", items[2])
	}
}

func TestSearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Search(context.Background(), Query{Q: "x"}); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestContentItem_Key(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := ContentItem{Type: OCR, Text: "hi", Timestamp: ts}
	b := ContentItem{Type: OCR, Text: "hi", Timestamp: ts.In(time.FixedZone("x", 3600)), AppName: "other"}
	if a.Key() != b.Key() {
		t.Error("same instant and text should share a key")
	}
	if a.Key() == (ContentItem{Type: Audio, Text: "hi", Timestamp: ts}).Key() {
		t.Error("different types should not share a key")
	}
}

func eventServer(t *testing.T, events []string, hold chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, e := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(e)); err != nil {
				return
			}
		}
		if hold != nil {
			<-hold
		}
	}))
}

func TestStreamVision_FiltersEvents(t *testing.T) {
	srv := eventServer(t, []string{
		`{"name":"transcription","data":{"transcription":"ignored"}}`,
		`{"name":"ocr_result","data":{"text":"Invoice #1","app_name":"Mail","timestamp":"2024-05-01T10:00:00Z","image":"abc"}}`,
		`{"name":"ui_frame","data":{"text":"Pay now","app_name":"Chrome","window_name":"Stripe"}}`,
	}, nil)
	defer srv.Close()

	ch, err := NewClient(srv.URL).StreamVision(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	var got []VisionEvent
	for e := range ch {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 vision events, got %d", len(got))
	}
	if got[0].Text != "Invoice #1" || got[0].AppName != "Mail" || got[0].Image != "" {
		t.Errorf("unexpected event %+v", got[0])
	}
	if got[1].WindowName != "Stripe" {
		t.Errorf("unexpected event %+v", got[1])
	}
}

func TestStreamTranscriptions(t *testing.T) {
	srv := eventServer(t, []string{
		`{"name":"ocr_result","data":{"text":"ignored"}}`,
		`{"name":"transcription","data":{"transcription":"we paid the bill","timestamp":"2024-05-01T10:00:00Z","device":"MacBook Mic","is_input":true}}`,
	}, nil)
	defer srv.Close()

	ch, err := NewClient(srv.URL).StreamTranscriptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []TranscriptionEvent
	for e := range ch {
		got = append(got, e)
	}
	if len(got) != 1 || got[0].Text != "we paid the bill" || !got[0].IsInput || got[0].Device != "MacBook Mic" {
		t.Fatalf("unexpected transcriptions %+v", got)
	}
}

func TestStream_ClosesOnCancel(t *testing.T) {
	hold := make(chan struct{})
	srv := eventServer(t, []string{`{"name":"ocr_result","data":{"text":"first"}}`}, hold)
	defer srv.Close()
	defer close(hold)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewClient(srv.URL).StreamVision(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if e := <-ch; e.Text != "first" {
		t.Fatalf("unexpected first event %+v", e)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestStream_DialError(t *testing.T) {
	if _, err := NewClient("http://127.0.0.1:1").StreamTranscriptions(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}
