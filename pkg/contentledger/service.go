package contentledger

import "context"

// Service defines the main interface for the content ledger
type Service interface {
	// Content registry operations
	RegisterContent(ctx context.Context, req RegisterContentRequest) (*ContentRegistration, error)
	GetContent(ctx context.Context, id string) (*ContentRegistration, error)
	GetContentByCreator(ctx context.Context, creator Identity) ([]*ContentRegistration, error)
	UpdateContentStatus(ctx context.Context, req UpdateContentStatusRequest) (*ContentRegistration, error)

	// Payment ledger operations
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentRecord, error)
	GetPaymentsByBuyer(ctx context.Context, buyer Identity) ([]*PaymentRecord, error)
	GetPaymentsForContent(ctx context.Context, contentID string) ([]*PaymentRecord, error)
	HasPurchasedContent(ctx context.Context, buyer Identity, contentID string) (bool, error)

	// Aggregates
	GetStats(ctx context.Context) (Stats, error)

	// Verify recomputes every derived view from the primary stores. On any
	// mismatch it returns ErrLedgerCorrupted and the service stops accepting writes.
	Verify(ctx context.Context) error

	// Snapshot returns the primary stores in creation order.
	Snapshot(ctx context.Context) ([]*ContentRegistration, []*PaymentRecord, error)
}
