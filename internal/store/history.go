package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/agentview/internal/observability"
)

// ErrInvalidRecord is returned when a record misses required values.
var ErrInvalidRecord = errors.New("invalid record")

// Fixed width so lexical order is chronological.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	DB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS financial_activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			type TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			sender_name TEXT,
			receiver_name TEXT,
			confidence REAL NOT NULL,
			source_text TEXT,
			source_type TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS support_docs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			kind TEXT NOT NULL,
			trigger_text TEXT,
			summary TEXT,
			key_points TEXT,
			recommended_actions TEXT,
			topics TEXT,
			sentiment TEXT,
			start_time TEXT,
			end_time TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS classified_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			category TEXT,
			is_important INTEGER,
			confidence REAL,
			hyper_info TEXT,
			source_text TEXT,
			app_name TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS agent_steps (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			human_action TEXT,
			text TEXT,
			finish_reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS agent_steps_run ON agent_steps (run_id, timestamp);`,
	}
	for _, q := range queries {
		if _, err = db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(tsLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func finite(f *float64) bool {
	return f != nil && !math.IsNaN(*f) && !math.IsInf(*f, 0)
}

func validateFinancial(a *FinancialActivity) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown financial type %q", ErrInvalidRecord, a.Type)
	}
	if !finite(a.Amount) {
		return fmt.Errorf("%w: amount is missing or not numeric", ErrInvalidRecord)
	}
	if !finite(a.Confidence) {
		return fmt.Errorf("%w: confidence is missing or not numeric", ErrInvalidRecord)
	}
	if a.Currency == "" {
		return fmt.Errorf("%w: currency is missing", ErrInvalidRecord)
	}
	return nil
}

// InsertFinancialActivity persists a once-only record and sets its ID.
func (s *Store) InsertFinancialActivity(ctx context.Context, a *FinancialActivity) error {
	if err := validateFinancial(a); err != nil {
		return err
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	query := `INSERT INTO financial_activities
		(timestamp, type, amount, currency, description, sender_name, receiver_name, confidence, source_text, source_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, formatTime(a.Timestamp), string(a.Type), *a.Amount, a.Currency,
		a.Description, a.SenderName, a.ReceiverName, *a.Confidence, a.SourceText, a.SourceType)
	if err != nil {
		return fmt.Errorf("failed to insert financial activity: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return nil
}

// ListFinancialActivities returns the newest activities first.
func (s *Store) ListFinancialActivities(ctx context.Context, limit int) ([]FinancialActivity, error) {
	query := `SELECT id, timestamp, type, amount, currency, description, sender_name, receiver_name, confidence, source_text, source_type
		FROM financial_activities ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinancialActivity
	for rows.Next() {
		var a FinancialActivity
		var ts, typ string
		var amount, confidence float64
		var desc, sender, receiver, srcText, srcType sql.NullString
		if err := rows.Scan(&a.ID, &ts, &typ, &amount, &a.Currency, &desc, &sender, &receiver, &confidence, &srcText, &srcType); err != nil {
			return nil, err
		}
		a.Timestamp = parseTime(ts)
		a.Type = FinancialType(typ)
		a.Amount, a.Confidence = &amount, &confidence
		a.Description, a.SenderName, a.ReceiverName = desc.String, sender.String, receiver.String
		a.SourceText, a.SourceType = srcText.String, srcType.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeList(v sql.NullString) []string {
	var out []string
	if v.Valid && v.String != "" {
		_ = json.Unmarshal([]byte(v.String), &out)
	}
	return out
}

func (s *Store) InsertSupportDoc(ctx context.Context, d *SupportDoc) error {
	if d.Kind == "" {
		d.Kind = DocSupport
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	query := `INSERT INTO support_docs
		(timestamp, kind, trigger_text, summary, key_points, recommended_actions, topics, sentiment, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, formatTime(d.Timestamp), string(d.Kind), d.Trigger, d.Summary,
		encodeList(d.KeyPoints), encodeList(d.RecommendedActions), encodeList(d.Topics), d.Sentiment,
		formatTime(d.StartTime), formatTime(d.EndTime))
	if err != nil {
		return fmt.Errorf("failed to insert support doc: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

// ListSupportDocs returns the newest docs first.
func (s *Store) ListSupportDocs(ctx context.Context, limit int) ([]SupportDoc, error) {
	query := `SELECT id, timestamp, kind, trigger_text, summary, key_points, recommended_actions, topics, sentiment, start_time, end_time
		FROM support_docs ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SupportDoc
	for rows.Next() {
		var d SupportDoc
		var ts, kind string
		var trigger, summary, keyPoints, actions, topics, sentiment, start, end sql.NullString
		if err := rows.Scan(&d.ID, &ts, &kind, &trigger, &summary, &keyPoints, &actions, &topics, &sentiment, &start, &end); err != nil {
			return nil, err
		}
		d.Timestamp = parseTime(ts)
		d.Kind = DocKind(kind)
		d.Trigger, d.Summary, d.Sentiment = trigger.String, summary.String, sentiment.String
		d.KeyPoints, d.RecommendedActions, d.Topics = decodeList(keyPoints), decodeList(actions), decodeList(topics)
		d.StartTime, d.EndTime = parseTime(start.String), parseTime(end.String)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) InsertClassifiedItem(ctx context.Context, c *ClassifiedItem) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	query := `INSERT INTO classified_items
		(timestamp, category, is_important, confidence, hyper_info, source_text, app_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.DB.ExecContext(ctx, query, formatTime(c.Timestamp), c.Category, c.IsImportant,
		c.Confidence, c.HyperInfo, c.SourceText, c.AppName)
	if err != nil {
		return fmt.Errorf("failed to insert classified item: %w", err)
	}
	c.ID, _ = res.LastInsertId()
	return nil
}

// RecentClassifiedItems returns the newest classified items first.
func (s *Store) RecentClassifiedItems(ctx context.Context, limit int) ([]ClassifiedItem, error) {
	query := `SELECT id, timestamp, category, is_important, confidence, hyper_info, source_text, app_name
		FROM classified_items ORDER BY timestamp DESC, id DESC LIMIT ?`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClassifiedItem
	for rows.Next() {
		var c ClassifiedItem
		var ts string
		var category, hyper, src, app sql.NullString
		var important sql.NullBool
		var confidence sql.NullFloat64
		if err := rows.Scan(&c.ID, &ts, &category, &important, &confidence, &hyper, &src, &app); err != nil {
			return nil, err
		}
		c.Timestamp = parseTime(ts)
		c.Category, c.HyperInfo, c.SourceText, c.AppName = category.String, hyper.String, src.String, app.String
		c.IsImportant, c.Confidence = important.Bool, confidence.Float64
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordStep persists one step; it makes Store an observability.StepSink.
func (s *Store) RecordStep(step observability.AgentStep) error {
	query := `INSERT INTO agent_steps (id, run_id, timestamp, human_action, text, finish_reason) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.DB.Exec(query, step.ID, step.RunID, formatTime(step.Timestamp), step.HumanAction, step.Text, string(step.FinishReason))
	return err
}

// ListSteps returns runID's persisted steps in insertion order.
func (s *Store) ListSteps(ctx context.Context, runID string) ([]observability.AgentStep, error) {
	query := `SELECT id, run_id, timestamp, human_action, text, finish_reason FROM agent_steps WHERE run_id = ? ORDER BY timestamp ASC, rowid ASC`
	rows, err := s.DB.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []observability.AgentStep
	for rows.Next() {
		var st observability.AgentStep
		var ts string
		var action, text, reason sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &ts, &action, &text, &reason); err != nil {
			return nil, err
		}
		st.Timestamp = parseTime(ts)
		st.HumanAction, st.Text = action.String, text.String
		st.FinishReason = observability.FinishReason(reason.String)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *Store) DeleteSteps(ctx context.Context, runID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM agent_steps WHERE run_id = ?`, runID)
	return err
}
