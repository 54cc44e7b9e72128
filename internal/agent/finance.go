package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rahul/agentview/internal/gateway"
	"github.com/rahul/agentview/internal/inference"
	"github.com/rahul/agentview/internal/store"
)

// financeKeywords gate the extraction call; checked in FinancialTypes order.
var financeKeywords = map[store.FinancialType][]string{
	store.Invoice:      {"invoice", "bill", "charge"},
	store.Payment:      {"payment", "paid", "transferred", "sent"},
	store.Receipt:      {"receipt", "received", "got paid"},
	store.Subscription: {"subscription", "monthly fee", "recurring"},
}

// financeKeywordPatterns match whole words (plurals allowed) so "sent" does
// not fire on "present" nor "bill" on "billion".
var financeKeywordPatterns = func() map[store.FinancialType][]*regexp.Regexp {
	m := make(map[store.FinancialType][]*regexp.Regexp, len(financeKeywords))
	for t, kws := range financeKeywords {
		for _, kw := range kws {
			m[t] = append(m[t], regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`(?:s|es)?\b`))
		}
	}
	return m
}()

// MatchFinanceKeyword returns the first financial type whose keywords occur in text.
func MatchFinanceKeyword(text string) (store.FinancialType, bool) {
	lower := strings.ToLower(text)
	for _, t := range store.FinancialTypes {
		for _, re := range financeKeywordPatterns[t] {
			if re.MatchString(lower) {
				return t, true
			}
		}
	}
	return "", false
}

type Party struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type financeExtraction struct {
	Type         string   `json:"type"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Description  string   `json:"description,omitempty"`
	SenderName   string   `json:"senderName,omitempty"`
	ReceiverName string   `json:"receiverName,omitempty"`
	Parties      []Party  `json:"parties,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

var financeContract = inference.MustContract[financeExtraction]("financial_activity",
	"Structured financial activity found in the text with a confidence score.",
	inference.Enum("type", "invoice", "payment", "receipt", "subscription"),
	inference.Enum("parties[].role", "sender", "receiver"),
	inference.Range("confidence", 0, 1),
)

// FinanceInput is one piece of captured text to inspect.
type FinanceInput struct {
	Text      string
	Timestamp time.Time
	Source    string
}

// FinanceWorker detects financial activity. It is best effort: skips and
// failures yield a nil activity and are never returned as errors.
type FinanceWorker struct {
	*Deps
}

func (w *FinanceWorker) threshold() float64 {
	return w.Pipeline.FinanceConfidence
}

// Detect returns the persisted activity, or nil when nothing was stored.
func (w *FinanceWorker) Detect(ctx context.Context, rc RunContext, in FinanceInput) *store.FinancialActivity {
	kind, ok := MatchFinanceKeyword(in.Text)
	if !ok {
		return nil
	}
	if err := requireInference(rc); err != nil {
		w.fail(rc, "finance", "finance detection error", err)
		return nil
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = w.now()
	}
	w.complete(rc, "finance", "finance detection started",
		fmt.Sprintf("possible %s found in %s text", kind, in.Source))

	req, err := w.request(rc, "finance", map[string]any{
		"text":      in.Text,
		"source":    in.Source,
		"timestamp": in.Timestamp.UTC().Format(time.RFC3339),
		"kind":      string(kind),
	})
	if err != nil {
		w.fail(rc, "finance", "finance detection error", err)
		return nil
	}
	ext, err := inference.Generate[financeExtraction](ctx, rc.Inference, req, financeContract)
	if err != nil {
		w.fail(rc, "finance", "finance detection error", err)
		return nil
	}

	activity := ext.activity(in)
	if ext.Confidence == nil || *ext.Confidence <= w.threshold() {
		w.complete(rc, "finance", "finance detection skipped",
			fmt.Sprintf("confidence %s is not above %.2f", formatConfidence(ext.Confidence), w.threshold()))
		w.Logger.LogFinance(rc.RunID, activity, false)
		return nil
	}

	if w.Finance == nil {
		w.fail(rc, "finance", "finance detection error", &ConfigError{Reason: "no finance store configured"})
		return nil
	}
	if err := w.Finance.InsertFinancialActivity(ctx, activity); err != nil {
		w.fail(rc, "finance", "finance detection error", err)
		w.Logger.LogFinance(rc.RunID, activity, false)
		return nil
	}
	w.Logger.LogFinance(rc.RunID, activity, true)

	gateway.Send(ctx, w.Notifier, w.Logger, gateway.Notification{
		Title: "New Financial Activity Detected",
		Body:  fmt.Sprintf("%s: %s %s", activity.Type, formatAmount(activity.Amount), activity.Currency),
	})
	w.complete(rc, "finance", "finance detection complete",
		fmt.Sprintf("stored %s of %s %s (%s)", activity.Type, formatAmount(activity.Amount), activity.Currency, activity.Description))
	return activity
}

func (e financeExtraction) activity(in FinanceInput) *store.FinancialActivity {
	a := &store.FinancialActivity{
		Timestamp:    in.Timestamp,
		Type:         store.FinancialType(e.Type),
		Amount:       e.Amount,
		Currency:     strings.ToUpper(strings.TrimSpace(e.Currency)),
		Description:  e.Description,
		SenderName:   e.SenderName,
		ReceiverName: e.ReceiverName,
		Confidence:   e.Confidence,
		SourceText:   in.Text,
		SourceType:   in.Source,
	}
	if a.Currency == "" {
		a.Currency = "USD"
	}
	for _, p := range e.Parties {
		switch {
		case p.Role == "sender" && a.SenderName == "":
			a.SenderName = p.Name
		case p.Role == "receiver" && a.ReceiverName == "":
			a.ReceiverName = p.Name
		}
	}
	return a
}

func formatAmount(f *float64) string {
	if f == nil {
		return "?"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", *f), "0"), ".")
}

func formatConfidence(f *float64) string {
	if f == nil {
		return "missing"
	}
	return fmt.Sprintf("%.2f", *f)
}
