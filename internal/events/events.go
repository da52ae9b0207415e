package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TransactionCompleted is emitted after a transfer or deposit commits.
type TransactionCompleted struct {
	EntryID    uuid.UUID `json:"entry_id"`
	FromID     uuid.UUID `json:"from_id"`
	ToID       uuid.UUID `json:"to_id"`
	Amount     int64     `json:"amount"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers completion events to downstream systems. Delivery is
// best-effort; a failed publish never affects the posting it describes.
type Publisher interface {
	Publish(ctx context.Context, event TransactionCompleted) error
}

// LoggerPublisher is a stub implementation that writes events to the logger.
// Used when no broker is configured.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher stub.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish writes the event to the structured logger.
func (p *LoggerPublisher) Publish(_ context.Context, event TransactionCompleted) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("transaction completed",
		"entry_id", event.EntryID,
		"kind", event.Kind,
		"amount", event.Amount,
		"to", event.ToID)
	return nil
}
