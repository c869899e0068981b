package contentledger

// RegisterContentRequest contains parameters for registering content.
//
// ID is optional. When empty a fresh UUID is allocated; a caller-chosen ID
// that is already taken fails with ErrAlreadyExists.
type RegisterContentRequest struct {
	Creator     Identity
	ID          string
	Title       string
	Description string
	ContentHash string
	Price       int64
}

// UpdateContentStatusRequest contains parameters for activating or deactivating content.
// Caller must be the content's creator.
type UpdateContentStatusRequest struct {
	ContentID string
	IsActive  bool
	Caller    Identity
}

// RecordPaymentRequest contains parameters for recording a purchase.
//
// Buyer is taken as given. Boundary layers are expected to set it to the
// authenticated caller rather than trusting a client-supplied value.
type RecordPaymentRequest struct {
	ContentID       string
	TransactionHash string
	Amount          int64
	Buyer           Identity
	ID              string // optional payment id
}
