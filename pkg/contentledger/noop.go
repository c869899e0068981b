package contentledger

import (
	"context"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ContentRegistered does nothing and returns nil
func (n *NoopEventSink) ContentRegistered(ctx context.Context, content *ContentRegistration) error {
	return nil
}

// ContentStatusChanged does nothing and returns nil
func (n *NoopEventSink) ContentStatusChanged(ctx context.Context, content *ContentRegistration) error {
	return nil
}

// PaymentRecorded does nothing and returns nil
func (n *NoopEventSink) PaymentRecorded(ctx context.Context, payment *PaymentRecord) error {
	return nil
}

// NoopObserver discards operation observations
type NoopObserver struct{}

// ObserveOperation does nothing
func (NoopObserver) ObserveOperation(op string, err error, started time.Time) {}
