package contentledger

import "strings"

// Identity is an opaque, externally authenticated principal. The ledger only
// compares identities for equality; it never authenticates them.
type Identity string

// IsAnonymous reports whether the identity carries no principal at all.
func (i Identity) IsAnonymous() bool {
	return strings.TrimSpace(string(i)) == ""
}

func (i Identity) String() string {
	return string(i)
}

// ContentRegistration asserts that a creator owns a content item and sells it at Price.
//
// TotalSales and TotalRevenue are derived from the payment ledger and always
// equal the count and sum of PaymentRecords referencing ID.
type ContentRegistration struct {
	ID           string   `json:"id"`
	Creator      Identity `json:"creator"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	ContentHash  string   `json:"content_hash"`
	Price        int64    `json:"price"`
	CreatedAt    uint64   `json:"created_at"`
	IsActive     bool     `json:"is_active"`
	TotalSales   uint64   `json:"total_sales"`
	TotalRevenue int64    `json:"total_revenue"`
}

// PaymentRecord is an immutable proof that Buyer paid Amount for ContentID.
type PaymentRecord struct {
	ID              string   `json:"id"`
	ContentID       string   `json:"content_id"`
	Buyer           Identity `json:"buyer"`
	Creator         Identity `json:"creator"`
	Amount          int64    `json:"amount"`
	TransactionHash string   `json:"transaction_hash"`
	Timestamp       uint64   `json:"timestamp"`
}

// Stats contains the global counters maintained alongside every mutation.
type Stats struct {
	ContentCount uint64 `json:"content_count"`
	TotalRevenue int64  `json:"total_revenue"`
	PaymentCount uint64 `json:"payment_count"`
}

func (c *ContentRegistration) clone() *ContentRegistration {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (p *PaymentRecord) clone() *PaymentRecord {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
