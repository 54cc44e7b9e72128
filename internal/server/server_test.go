package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/capture"
	"github.com/rahul/agentview/internal/governance"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeRunner struct {
	got agent.RunContext
	run *agent.Run
	err error
}

func (f *fakeRunner) Run(_ context.Context, rc agent.RunContext, _ string) (*agent.Run, error) {
	f.got = rc
	return f.run, f.err
}

type fakeStream struct {
	vision      []capture.VisionEvent
	transcripts []capture.TranscriptionEvent
	visionErr   error
}

func (f *fakeStream) StreamVision(context.Context, bool) (<-chan capture.VisionEvent, error) {
	if f.visionErr != nil {
		return nil, f.visionErr
	}
	ch := make(chan capture.VisionEvent, len(f.vision))
	for _, e := range f.vision {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (f *fakeStream) StreamTranscriptions(context.Context) (<-chan capture.TranscriptionEvent, error) {
	ch := make(chan capture.TranscriptionEvent, len(f.transcripts))
	for _, e := range f.transcripts {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestAsk(t *testing.T) {
	runner := &fakeRunner{run: &agent.Run{
		RunID:   "r1",
		Results: []agent.Result{&agent.AnswerResult{Answer: "Louis wants budget cuts"}},
	}}
	s := New(Options{Runner: runner, APIKey: "sk-default"})

	w := do(t, s, http.MethodPost, "/api/ask", askRequest{Query: "louis?", RunID: "r1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if runner.got.APIKey != "sk-default" || runner.got.RunID != "r1" || runner.got.Query != "louis?" {
		t.Errorf("unexpected run context %+v", runner.got)
	}
	if !strings.Contains(w.Body.String(), "Louis wants budget cuts") {
		t.Errorf("answer missing from body: %s", w.Body.String())
	}
}

func TestAsk_Errors(t *testing.T) {
	s := New(Options{Runner: &fakeRunner{err: &agent.ConfigError{Reason: "API key is required"}}})
	if w := do(t, s, http.MethodPost, "/api/ask", askRequest{Query: "q"}); w.Code != http.StatusBadRequest {
		t.Errorf("config errors should be 400, got %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/ask", askRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing query should be 400, got %d", w.Code)
	}

	partial := &agent.Run{RunID: "p", Results: []agent.Result{&agent.EntityResult{Synonyms: []string{"louis"}}}}
	s = New(Options{Runner: &fakeRunner{run: partial, err: errors.New("search failed")}})
	w := do(t, s, http.MethodPost, "/api/ask", askRequest{Query: "q", RunID: "p"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "louis") {
		t.Errorf("partial results should be returned: %s", w.Body.String())
	}
}

func TestSteps(t *testing.T) {
	db := openStore(t)
	steps := observability.NewStepRecorder(db)
	steps.Complete("live", "search progress", "searching")
	s := New(Options{Steps: steps, Store: db})

	var got struct {
		Steps []observability.AgentStep `json:"steps"`
	}
	w := do(t, s, http.MethodGet, "/api/runs/live/steps", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Steps) != 1 || got.Steps[0].HumanAction != "search progress" {
		t.Fatalf("unexpected steps %+v", got.Steps)
	}

	// Persisted steps survive clearing the live timeline.
	steps.ClearSteps("live")
	w = do(t, s, http.MethodGet, "/api/runs/live/steps", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Steps) != 1 {
		t.Fatalf("expected persisted step, got %+v", got.Steps)
	}

	if w := do(t, s, http.MethodDelete, "/api/runs/live/steps", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/api/runs/live/steps", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Steps) != 0 {
		t.Errorf("expected no steps after delete, got %+v", got.Steps)
	}
}

func TestFinanceAndDocs(t *testing.T) {
	db := openStore(t)
	amount, conf := 450.0, 0.95
	ctx := context.Background()
	if err := db.InsertFinancialActivity(ctx, &store.FinancialActivity{Type: store.Invoice, Amount: &amount, Currency: "USD", Confidence: &conf}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertSupportDoc(ctx, &store.SupportDoc{Summary: "login issue", KeyPoints: []string{"401"}}); err != nil {
		t.Fatal(err)
	}
	s := New(Options{Store: db})

	w := do(t, s, http.MethodGet, "/api/finance?limit=5", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("unexpected finance response %d %s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodGet, "/api/support-docs", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "login issue") {
		t.Errorf("unexpected docs response %d %s", w.Code, w.Body.String())
	}
}

func readEvents(t *testing.T, body *bytes.Buffer) []InboxMessage {
	t.Helper()
	var msgs []InboxMessage
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m InboxMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func TestInbox_FiltersAndMerges(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stream := &fakeStream{
		vision: []capture.VisionEvent{
			{Text: "New <b>Invoice</b> from Acme", AppName: "Mail"},
			{Text: "lunch plans", AppName: "Slack"},
			{Text: "invoice preview", AppName: "AgentView", WindowName: "AgentView"},
		},
		transcripts: []capture.TranscriptionEvent{
			{Text: "please pay the invoice today", Timestamp: ts, Device: "MacBook Microphone"},
			{Text: "see you tomorrow", Timestamp: ts},
		},
	}
	s := New(Options{Stream: stream, Policy: governance.NewDefaultContentPolicy("agentview")})

	w := do(t, s, http.MethodGet, "/api/inbox", nil)
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	msgs := readEvents(t, w.Body)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 events, got %+v", msgs)
	}
	byType := map[string]InboxMessage{}
	for _, m := range msgs {
		byType[m.Type] = m
	}
	if v := byType["vision"]; v.Text != "New Invoice from Acme" || v.AppName != "Mail" {
		t.Errorf("unexpected vision event %+v", v)
	}
	if tr := byType["transcription"]; tr.Device != "MacBook Microphone" || tr.AppName != "Audio Transcription" || !tr.Timestamp.Equal(ts) {
		t.Errorf("unexpected transcription event %+v", tr)
	}
}

func TestInbox_WatchKeywordAndPartialStreams(t *testing.T) {
	stream := &fakeStream{
		visionErr:   errors.New("vision offline"),
		transcripts: []capture.TranscriptionEvent{{Text: "the Budget is due"}, {Text: "invoice"}},
	}
	s := New(Options{Stream: stream})

	w := do(t, s, http.MethodGet, "/api/inbox?watch=budget", nil)
	msgs := readEvents(t, w.Body)
	if len(msgs) != 1 || msgs[0].Text != "the Budget is due" {
		t.Errorf("unexpected events %+v", msgs)
	}
}
