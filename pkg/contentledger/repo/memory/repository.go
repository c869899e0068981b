package memory

import (
	"cmp"
	"context"
	"sync"

	"github.com/tendant/content-ledger/pkg/contentledger"
	"golang.org/x/exp/slices"
)

// Repository implements contentledger.Repository using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	contents map[string]*contentledger.ContentRegistration
	payments map[string]*contentledger.PaymentRecord
	txHashes map[string]string // transaction_hash -> payment id
}

// New creates a new in-memory repository
func New() contentledger.Repository {
	return &Repository{
		contents: make(map[string]*contentledger.ContentRegistration),
		payments: make(map[string]*contentledger.PaymentRecord),
		txHashes: make(map[string]string),
	}
}

func (r *Repository) CreateContent(ctx context.Context, content *contentledger.ContentRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[content.ID]; exists {
		return contentledger.ErrAlreadyExists
	}

	// Create a copy to avoid external modifications
	contentCopy := *content
	contentCopy.TotalSales = 0
	contentCopy.TotalRevenue = 0
	r.contents[content.ID] = &contentCopy

	return nil
}

func (r *Repository) UpdateContentStatus(ctx context.Context, id string, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	content, exists := r.contents[id]
	if !exists {
		return contentledger.ErrNotFound
	}
	content.IsActive = isActive

	return nil
}

func (r *Repository) AppendPayment(ctx context.Context, payment *contentledger.PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[payment.ContentID]; !exists {
		return contentledger.ErrNotFound
	}
	if _, used := r.txHashes[payment.TransactionHash]; used {
		return contentledger.ErrDuplicateTransaction
	}
	if _, exists := r.payments[payment.ID]; exists {
		return contentledger.ErrAlreadyExists
	}

	paymentCopy := *payment
	r.payments[payment.ID] = &paymentCopy
	r.txHashes[payment.TransactionHash] = payment.ID

	return nil
}

func (r *Repository) ListContents(ctx context.Context) ([]*contentledger.ContentRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*contentledger.ContentRegistration, 0, len(r.contents))
	for _, content := range r.contents {
		contentCopy := *content
		result = append(result, &contentCopy)
	}

	// Sort by created_at ascending
	slices.SortFunc(result, func(a, b *contentledger.ContentRegistration) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})

	return result, nil
}

func (r *Repository) ListPayments(ctx context.Context) ([]*contentledger.PaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*contentledger.PaymentRecord, 0, len(r.payments))
	for _, payment := range r.payments {
		paymentCopy := *payment
		result = append(result, &paymentCopy)
	}

	// Sort by timestamp ascending
	slices.SortFunc(result, func(a, b *contentledger.PaymentRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	return result, nil
}
