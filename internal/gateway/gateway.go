package gateway

import (
	"context"
	"errors"
	"log"

	"github.com/rahul/agentview/internal/observability"
)

// Action is a button offered with a desktop notification.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Notification is a short user-facing alert.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Actions []Action `json:"actions,omitempty"`
}

// Notifier delivers notifications. Delivery is fire-and-forget for callers.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Messenger defines the interface for conversational gateways (Telegram, etc.)
type Messenger interface {
	// Start begins the message listening loop and blocks until ctx is done
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Asker answers a free-form user question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier only writes notifications to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("[notify] %s: %s", n.Title, n.Body)
	return nil
}

// Send delivers n and only logs a failure.
func Send(ctx context.Context, target Notifier, logger *observability.Logger, n Notification) {
	if target == nil {
		return
	}
	err := target.Notify(ctx, n)
	if err != nil {
		log.Printf("notification %q failed: %v", n.Title, err)
	}
	logger.LogNotification(n.Title, err)
}
