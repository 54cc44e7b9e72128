package store

import "time"

// FinancialType is the kind of a detected financial activity.
type FinancialType string

const (
	Invoice      FinancialType = "invoice"
	Payment      FinancialType = "payment"
	Receipt      FinancialType = "receipt"
	Subscription FinancialType = "subscription"
)

// FinancialTypes lists every valid FinancialType.
var FinancialTypes = []FinancialType{Invoice, Payment, Receipt, Subscription}

func (t FinancialType) Valid() bool {
	for _, v := range FinancialTypes {
		if t == v {
			return true
		}
	}
	return false
}

// FinancialActivity is a persisted finance detection. Rows are never updated.
type FinancialActivity struct {
	ID           int64         `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Type         FinancialType `json:"type"`
	Amount       *float64      `json:"amount"`
	Currency     string        `json:"currency"`
	Description  string        `json:"description"`
	SenderName   string        `json:"senderName,omitempty"`
	ReceiverName string        `json:"receiverName,omitempty"`
	Confidence   *float64      `json:"confidence"`
	SourceText   string        `json:"sourceText"`
	SourceType   string        `json:"sourceType"`
}

// DocKind separates trigger-generated support docs from explicit instructions.
type DocKind string

const (
	DocSupport     DocKind = "support"
	DocInstruction DocKind = "instruction"
)

// SupportDoc is a generated document about recently captured content.
type SupportDoc struct {
	ID                 int64     `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Kind               DocKind   `json:"kind"`
	Trigger            string    `json:"trigger"`
	Summary            string    `json:"summary"`
	KeyPoints          []string  `json:"keyPoints"`
	RecommendedActions []string  `json:"recommendedActions,omitempty"`
	Topics             []string  `json:"topics,omitempty"`
	Sentiment          string    `json:"sentiment,omitempty"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
}

// ClassifiedItem is a classified piece of captured content keyed by its HyperInfo.
type ClassifiedItem struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Category    string    `json:"category"`
	IsImportant bool      `json:"isImportant"`
	Confidence  float64   `json:"confidence"`
	HyperInfo   string    `json:"hyperInfo"`
	SourceText  string    `json:"sourceText"`
	AppName     string    `json:"appName,omitempty"`
}
