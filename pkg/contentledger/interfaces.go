package contentledger

import (
	"context"
	"io"
	"time"
)

// Repository defines the durable journal behind the ledger.
//
// Only primary data is persisted: content registrations and payment records.
// Sales counters, the purchase index and stats are rebuilt by replay, so
// implementations may ignore TotalSales and TotalRevenue on write.
type Repository interface {
	// CreateContent stores a new registration. It returns ErrAlreadyExists on id collision.
	CreateContent(ctx context.Context, content *ContentRegistration) error

	// UpdateContentStatus sets is_active for an existing registration.
	UpdateContentStatus(ctx context.Context, id string, isActive bool) error

	// AppendPayment stores a new payment record. It returns ErrDuplicateTransaction
	// when the transaction hash was already stored and ErrAlreadyExists on id collision.
	AppendPayment(ctx context.Context, payment *PaymentRecord) error

	// ListContents returns every registration ordered by CreatedAt ascending.
	ListContents(ctx context.Context) ([]*ContentRegistration, error)

	// ListPayments returns every payment ordered by Timestamp ascending.
	ListPayments(ctx context.Context) ([]*PaymentRecord, error)
}

// BlobStore defines the interface for snapshot storage backends
type BlobStore interface {
	// Upload stores the reader's bytes under objectKey, replacing any previous value
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download returns the bytes stored under objectKey or ErrBlobNotFound
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes objectKey; deleting a missing key is not an error
	Delete(ctx context.Context, objectKey string) error

	// List returns every key with the given prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
}

// EventSink defines the interface for event handling.
// Events fire after a change is committed and the writer lock is released, so
// a slow sink delays only its own caller and concurrent writes may be
// delivered out of commit order. Errors never roll the change back.
type EventSink interface {
	// ContentRegistered is fired when content is registered
	ContentRegistered(ctx context.Context, content *ContentRegistration) error

	// ContentStatusChanged is fired when content is activated or deactivated
	ContentStatusChanged(ctx context.Context, content *ContentRegistration) error

	// PaymentRecorded is fired when a payment is appended to the ledger
	PaymentRecorded(ctx context.Context, payment *PaymentRecord) error
}

// Observer receives the outcome and latency of every service operation.
type Observer interface {
	ObserveOperation(op string, err error, started time.Time)
}

// Clock supplies the wall component of logical timestamps.
// The service makes the values strictly increasing on its own.
type Clock interface {
	Now() uint64
}

// SystemClock reads nanoseconds since the Unix epoch.
type SystemClock struct{}

// Now returns the current time in Unix nanoseconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().UnixNano())
}
