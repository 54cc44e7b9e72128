package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan         EventType = "plan"
	EventTypeStep         EventType = "step"
	EventTypeLLM          EventType = "llm"
	EventTypeCost         EventType = "cost"
	EventTypeRetrieval    EventType = "retrieval"
	EventTypeNotification EventType = "notification"
	EventTypeFinance      EventType = "finance"
	EventTypeHeartbeat    EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Worker    string    `json:"worker,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLogger writes events to out and mirrors llm events under logDir.
// An empty logDir disables the llm file.
func NewLogger(out io.Writer, logDir string) *Logger {
	if out == nil {
		out = os.Stdout
	}
	l := &Logger{
		out:     out,
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	if logDir != "" {
		l.llmLogPath = filepath.Join(logDir, "llm.jsonl")
	}
	return l
}

// Discard returns a logger that drops every event.
func Discard() *Logger {
	return NewLogger(io.Discard, "")
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": \"failed to marshal event: %v\"}", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

func (l *Logger) LogPlan(runID string, plan any) {
	l.Log(Event{Type: EventTypePlan, RunID: runID, Data: plan})
}

func (l *Logger) LogStep(runID, worker, action, text string, failed bool) {
	l.Log(Event{
		Type:   EventTypeStep,
		RunID:  runID,
		Worker: worker,
		Data: map[string]any{
			"action": action,
			"text":   text,
			"failed": failed,
		},
	})
}

func (l *Logger) LogCost(runID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:  EventTypeCost,
		RunID: runID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(runID, contract string, prompt any, response string) {
	l.Log(Event{
		Type:  EventTypeLLM,
		RunID: runID,
		Data: map[string]any{
			"contract": contract,
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogRetrieval(runID, query, contentType string, count int, err error) {
	data := map[string]any{
		"query":        query,
		"content_type": contentType,
		"count":        count,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeRetrieval, RunID: runID, Data: data})
}

func (l *Logger) LogNotification(title string, err error) {
	data := map[string]any{"title": title}
	if err != nil {
		data["error"] = err.Error()
	}
	l.Log(Event{Type: EventTypeNotification, Data: data})
}

func (l *Logger) LogFinance(runID string, activity any, persisted bool) {
	l.Log(Event{
		Type:  EventTypeFinance,
		RunID: runID,
		Data: map[string]any{
			"activity":  activity,
			"persisted": persisted,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
