package contentledger

import (
	"context"
	"log/slog"
)

// LoggingEventSink writes every ledger event to a structured logger.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink backed by logger, or slog.Default when nil.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (s *LoggingEventSink) ContentRegistered(ctx context.Context, content *ContentRegistration) error {
	s.logger.InfoContext(ctx, "Content registered",
		"content_id", content.ID,
		"creator", content.Creator.String(),
		"price", content.Price)
	return nil
}

func (s *LoggingEventSink) ContentStatusChanged(ctx context.Context, content *ContentRegistration) error {
	s.logger.InfoContext(ctx, "Content status changed",
		"content_id", content.ID,
		"is_active", content.IsActive)
	return nil
}

func (s *LoggingEventSink) PaymentRecorded(ctx context.Context, payment *PaymentRecord) error {
	s.logger.InfoContext(ctx, "Payment recorded",
		"payment_id", payment.ID,
		"content_id", payment.ContentID,
		"buyer", payment.Buyer.String(),
		"amount", payment.Amount,
		"transaction_hash", payment.TransactionHash)
	return nil
}
