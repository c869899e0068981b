package contentledger

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrInvalidArgument indicates malformed input such as an empty title or a negative price
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the referenced content or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an id collision with an existing record
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates the caller may not perform the operation
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInactiveContent indicates a payment against deactivated content
	ErrInactiveContent = errors.New("content is not active")

	// ErrAmountMismatch indicates the paid amount differs from the listed price
	ErrAmountMismatch = errors.New("amount does not match content price")

	// ErrDuplicateTransaction indicates a transaction hash that was already recorded
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrLedgerCorrupted indicates derived state disagrees with the primary stores.
	// Once returned, the service refuses every further mutation.
	ErrLedgerCorrupted = errors.New("ledger state corrupted")

	// ErrBlobNotFound indicates a snapshot object is missing from its blob store
	ErrBlobNotFound = errors.New("blob not found")
)

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID string
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// PaymentError represents an error related to payment operations
type PaymentError struct {
	ContentID       string
	TransactionHash string
	Op              string
	Err             error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment operation %s failed for content %s (tx %s): %v", e.Op, e.ContentID, e.TransactionHash, e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// ErrorKind returns a stable, lowercase name for the error category of err.
// It returns "ok" for nil and "internal" for errors outside the ledger's vocabulary.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInactiveContent):
		return "inactive_content"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrDuplicateTransaction):
		return "duplicate_transaction"
	case errors.Is(err, ErrLedgerCorrupted):
		return "ledger_corrupted"
	default:
		return "internal"
	}
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
