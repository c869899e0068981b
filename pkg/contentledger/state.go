package contentledger

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"
)

type purchaseKey struct {
	buyer     Identity
	contentID string
}

// ledgerState holds the primary stores and the views derived from them.
// It is not safe for concurrent use; the service guards it.
type ledgerState struct {
	// primary stores
	contents     map[string]*ContentRegistration
	contentOrder []string
	payments     map[string]*PaymentRecord
	paymentOrder []string

	// lookups over primary data
	byCreator map[Identity][]string
	byBuyer   map[Identity][]string
	byContent map[string][]string
	txHashes  map[string]string // transaction_hash -> payment id

	// materialized views
	purchases map[purchaseKey]struct{}
	stats     Stats
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		contents:  make(map[string]*ContentRegistration),
		payments:  make(map[string]*PaymentRecord),
		byCreator: make(map[Identity][]string),
		byBuyer:   make(map[Identity][]string),
		byContent: make(map[string][]string),
		txHashes:  make(map[string]string),
		purchases: make(map[purchaseKey]struct{}),
	}
}

// applyContent inserts a validated registration with zeroed counters.
func (s *ledgerState) applyContent(content *ContentRegistration) {
	c := content.clone()
	c.TotalSales = 0
	c.TotalRevenue = 0
	s.contents[c.ID] = c
	s.contentOrder = append(s.contentOrder, c.ID)
	s.byCreator[c.Creator] = append(s.byCreator[c.Creator], c.ID)
	s.stats.ContentCount++
}

func (s *ledgerState) applyStatus(id string, isActive bool) {
	s.contents[id].IsActive = isActive
}

// applyPayment appends a validated payment and updates every view it touches.
func (s *ledgerState) applyPayment(payment *PaymentRecord) {
	p := payment.clone()
	content := s.contents[p.ContentID]
	content.TotalSales++
	content.TotalRevenue += p.Amount

	s.payments[p.ID] = p
	s.paymentOrder = append(s.paymentOrder, p.ID)
	s.byBuyer[p.Buyer] = append(s.byBuyer[p.Buyer], p.ID)
	s.byContent[p.ContentID] = append(s.byContent[p.ContentID], p.ID)
	s.txHashes[p.TransactionHash] = p.ID
	s.purchases[purchaseKey{buyer: p.Buyer, contentID: p.ContentID}] = struct{}{}

	s.stats.TotalRevenue += p.Amount
	s.stats.PaymentCount++
}

func (s *ledgerState) hasPurchased(buyer Identity, contentID string) bool {
	_, ok := s.purchases[purchaseKey{buyer: buyer, contentID: contentID}]
	return ok
}

func (s *ledgerState) contentsFor(ids []string) []*ContentRegistration {
	result := make([]*ContentRegistration, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.contents[id].clone())
	}
	return result
}

func (s *ledgerState) paymentsFor(ids []string) []*PaymentRecord {
	result := make([]*PaymentRecord, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.payments[id].clone())
	}
	return result
}

// primaryContents returns registrations in creation order.
func (s *ledgerState) primaryContents() []*ContentRegistration {
	return s.contentsFor(s.contentOrder)
}

// primaryPayments returns payments in creation order.
func (s *ledgerState) primaryPayments() []*PaymentRecord {
	return s.paymentsFor(s.paymentOrder)
}

// replayState rebuilds a ledger from its primary stores: contents first, then
// payments, each in creation order. Counters on the input contents are ignored.
func replayState(contents []*ContentRegistration, payments []*PaymentRecord) (*ledgerState, error) {
	contents = slices.Clone(contents)
	payments = slices.Clone(payments)
	slices.SortStableFunc(contents, func(a, b *ContentRegistration) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	slices.SortStableFunc(payments, func(a, b *PaymentRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	s := newLedgerState()
	for _, c := range contents {
		if _, exists := s.contents[c.ID]; exists {
			return nil, fmt.Errorf("%w: content %s registered twice", ErrLedgerCorrupted, c.ID)
		}
		s.applyContent(c)
	}
	for _, p := range payments {
		content, exists := s.contents[p.ContentID]
		if !exists {
			return nil, fmt.Errorf("%w: payment %s references unknown content %s", ErrLedgerCorrupted, p.ID, p.ContentID)
		}
		// Prices never change, so every payment must match its content exactly.
		if p.Amount != content.Price {
			return nil, fmt.Errorf("%w: payment %s amount %d, content %s price %d", ErrLedgerCorrupted, p.ID, p.Amount, content.ID, content.Price)
		}
		if p.Creator != content.Creator {
			return nil, fmt.Errorf("%w: payment %s credits %s, content %s belongs to %s", ErrLedgerCorrupted, p.ID, p.Creator, content.ID, content.Creator)
		}
		if p.Timestamp <= content.CreatedAt {
			return nil, fmt.Errorf("%w: payment %s at %d precedes content %s created at %d", ErrLedgerCorrupted, p.ID, p.Timestamp, content.ID, content.CreatedAt)
		}
		if _, exists := s.payments[p.ID]; exists {
			return nil, fmt.Errorf("%w: payment %s recorded twice", ErrLedgerCorrupted, p.ID)
		}
		if _, exists := s.txHashes[p.TransactionHash]; exists {
			return nil, fmt.Errorf("%w: transaction %s recorded twice", ErrLedgerCorrupted, p.TransactionHash)
		}
		s.applyPayment(p)
	}
	return s, nil
}

// ReplayStats checks that contents and payments form a consistent journal and
// returns the stats a service rebuilt from them would report. It fails with
// ErrLedgerCorrupted on the first inconsistency.
func ReplayStats(contents []*ContentRegistration, payments []*PaymentRecord) (Stats, error) {
	s, err := replayState(contents, payments)
	if err != nil {
		return Stats{}, err
	}
	return s.stats, nil
}

// diff lists every way the derived views of s disagree with those of want.
// Primary data is assumed identical; only counters, index and stats are compared.
func (s *ledgerState) diff(want *ledgerState) []string {
	var problems []string

	for _, id := range want.contentOrder {
		expected := want.contents[id]
		got, ok := s.contents[id]
		if !ok {
			problems = append(problems, fmt.Sprintf("content %s missing", id))
			continue
		}
		if got.TotalSales != expected.TotalSales {
			problems = append(problems, fmt.Sprintf("content %s total_sales=%d, ledger has %d", id, got.TotalSales, expected.TotalSales))
		}
		if got.TotalRevenue != expected.TotalRevenue {
			problems = append(problems, fmt.Sprintf("content %s total_revenue=%d, ledger sums to %d", id, got.TotalRevenue, expected.TotalRevenue))
		}
	}
	if len(s.contents) != len(want.contents) {
		problems = append(problems, fmt.Sprintf("registry holds %d contents, expected %d", len(s.contents), len(want.contents)))
	}

	for key := range want.purchases {
		if _, ok := s.purchases[key]; !ok {
			problems = append(problems, fmt.Sprintf("purchase index missing (%s, %s)", key.buyer, key.contentID))
		}
	}
	for key := range s.purchases {
		if _, ok := want.purchases[key]; !ok {
			problems = append(problems, fmt.Sprintf("purchase index has unbacked entry (%s, %s)", key.buyer, key.contentID))
		}
	}

	if s.stats != want.stats {
		problems = append(problems, fmt.Sprintf("stats %+v, recomputed %+v", s.stats, want.stats))
	}
	return problems
}
