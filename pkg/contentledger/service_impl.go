package contentledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface.
//
// writeMu serializes mutating calls so each one runs to completion before the
// next begins. mu guards state and is write-locked only while an already
// validated and persisted change is applied, so readers never wait on
// validation or I/O and never observe a partial update.
type service struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   *ledgerState

	// guarded by writeMu
	lastTick uint64
	haltErr  error

	repository Repository
	eventSink  EventSink
	observer   Observer
	clock      Clock
	logger     *slog.Logger
	newID      func() string
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithObserver sets the operation observer, typically a metrics recorder
func WithObserver(observer Observer) Option {
	return func(s *service) {
		s.observer = observer
	}
}

// WithClock overrides the source of logical timestamps
func WithClock(clock Clock) Option {
	return func(s *service) {
		s.clock = clock
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithIDGenerator overrides how content and payment ids are allocated
func WithIDGenerator(gen func() string) Option {
	return func(s *service) {
		s.newID = gen
	}
}

// New creates a new service instance with the given options and rebuilds the
// ledger by replaying the repository's contents and payments.
func New(ctx context.Context, options ...Option) (Service, error) {
	s := &service{
		eventSink: NewNoopEventSink(),
		observer:  NoopObserver{},
		clock:     SystemClock{},
		newID:     func() string { return uuid.New().String() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	contents, err := s.repository.ListContents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contents: %w", err)
	}
	payments, err := s.repository.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	state, err := replayState(contents, payments)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild ledger: %w", err)
	}
	s.state = state

	for _, c := range contents {
		s.lastTick = max(s.lastTick, c.CreatedAt)
	}
	for _, p := range payments {
		s.lastTick = max(s.lastTick, p.Timestamp)
	}

	if len(contents) > 0 || len(payments) > 0 {
		s.logger.Info("Ledger rebuilt from repository",
			"contents", len(contents),
			"payments", len(payments))
	}

	return s, nil
}

func (s *service) observe(op string, started time.Time, errp *error) {
	s.observer.ObserveOperation(op, *errp, started)
}

// tick returns a strictly increasing logical timestamp. Callers hold writeMu.
func (s *service) tick() uint64 {
	t := s.clock.Now()
	if t <= s.lastTick {
		t = s.lastTick + 1
	}
	s.lastTick = t
	return t
}

// halt refuses every later mutation. Callers hold writeMu.
func (s *service) halt(reason string) error {
	if s.haltErr == nil {
		s.haltErr = fmt.Errorf("%w: %s", ErrLedgerCorrupted, reason)
		s.logger.Error("Ledger halted, refusing further writes", "reason", reason)
	}
	return s.haltErr
}

// Content registry operations

func (s *service) RegisterContent(ctx context.Context, req RegisterContentRequest) (_ *ContentRegistration, err error) {
	defer s.observe("register_content", time.Now(), &err)

	if req.Creator.IsAnonymous() {
		return nil, &ContentError{ContentID: req.ID, Op: "register", Err: fmt.Errorf("%w: anonymous callers cannot register content", ErrUnauthorized)}
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, &ContentError{ContentID: req.ID, Op: "register", Err: invalidArgument("title is required")}
	}
	if req.Price < 0 {
		return nil, &ContentError{ContentID: req.ID, Op: "register", Err: invalidArgument("price must not be negative, got %d", req.Price)}
	}

	content, err := s.commitContent(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.eventSink.ContentRegistered(ctx, content.clone()); err != nil {
		s.logger.Warn("Event sink failed", "event", "content_registered", "content_id", content.ID, "err", err)
	}
	return content, nil
}

func (s *service) commitContent(ctx context.Context, req RegisterContentRequest) (*ContentRegistration, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.haltErr != nil {
		return nil, &ContentError{ContentID: req.ID, Op: "register", Err: s.haltErr}
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}
	if _, exists := s.state.contents[id]; exists {
		return nil, &ContentError{ContentID: id, Op: "register", Err: ErrAlreadyExists}
	}

	content := &ContentRegistration{
		ID:          id,
		Creator:     req.Creator,
		Title:       req.Title,
		Description: req.Description,
		ContentHash: req.ContentHash,
		Price:       req.Price,
		CreatedAt:   s.tick(),
		IsActive:    true,
	}

	if err := s.repository.CreateContent(ctx, content); err != nil {
		return nil, &ContentError{ContentID: id, Op: "register", Err: err}
	}

	s.mu.Lock()
	s.state.applyContent(content)
	s.mu.Unlock()

	return content, nil
}

func (s *service) GetContent(ctx context.Context, id string) (_ *ContentRegistration, err error) {
	defer s.observe("get_content", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	content, exists := s.state.contents[id]
	if !exists {
		return nil, &ContentError{ContentID: id, Op: "get", Err: ErrNotFound}
	}
	return content.clone(), nil
}

func (s *service) GetContentByCreator(ctx context.Context, creator Identity) (_ []*ContentRegistration, err error) {
	defer s.observe("get_content_by_creator", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.contentsFor(s.state.byCreator[creator]), nil
}

func (s *service) UpdateContentStatus(ctx context.Context, req UpdateContentStatusRequest) (_ *ContentRegistration, err error) {
	defer s.observe("update_content_status", time.Now(), &err)

	content, changed, err := s.commitStatus(ctx, req)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := s.eventSink.ContentStatusChanged(ctx, content.clone()); err != nil {
			s.logger.Warn("Event sink failed", "event", "content_status_changed", "content_id", req.ContentID, "err", err)
		}
	}
	return content, nil
}

// commitStatus reports whether the status actually changed.
func (s *service) commitStatus(ctx context.Context, req UpdateContentStatusRequest) (*ContentRegistration, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.haltErr != nil {
		return nil, false, &ContentError{ContentID: req.ContentID, Op: "update_status", Err: s.haltErr}
	}

	content, exists := s.state.contents[req.ContentID]
	if !exists {
		return nil, false, &ContentError{ContentID: req.ContentID, Op: "update_status", Err: ErrNotFound}
	}
	if content.Creator != req.Caller {
		return nil, false, &ContentError{ContentID: req.ContentID, Op: "update_status", Err: fmt.Errorf("%w: only the creator can update content status", ErrUnauthorized)}
	}
	if content.IsActive == req.IsActive {
		return content.clone(), false, nil
	}

	if err := s.repository.UpdateContentStatus(ctx, req.ContentID, req.IsActive); err != nil {
		return nil, false, &ContentError{ContentID: req.ContentID, Op: "update_status", Err: err}
	}

	s.mu.Lock()
	s.state.applyStatus(req.ContentID, req.IsActive)
	updated := content.clone()
	s.mu.Unlock()

	return updated, true, nil
}

// Payment ledger operations

func (s *service) RecordPayment(ctx context.Context, req RecordPaymentRequest) (_ *PaymentRecord, err error) {
	defer s.observe("record_payment", time.Now(), &err)

	fail := func(err error) (*PaymentRecord, error) {
		return nil, &PaymentError{ContentID: req.ContentID, TransactionHash: req.TransactionHash, Op: "record", Err: err}
	}

	if req.Buyer.IsAnonymous() {
		return fail(fmt.Errorf("%w: anonymous callers cannot make payments", ErrUnauthorized))
	}
	if strings.TrimSpace(req.TransactionHash) == "" {
		return fail(invalidArgument("transaction hash is required"))
	}
	if req.Amount < 0 {
		return fail(invalidArgument("amount must not be negative, got %d", req.Amount))
	}

	payment, err := s.commitPayment(ctx, req)
	if err != nil {
		return fail(err)
	}

	if err := s.eventSink.PaymentRecorded(ctx, payment.clone()); err != nil {
		s.logger.Warn("Event sink failed", "event", "payment_recorded", "payment_id", payment.ID, "err", err)
	}
	return payment, nil
}

// commitPayment returns bare ledger errors; RecordPayment wraps them.
func (s *service) commitPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentRecord, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.haltErr != nil {
		return nil, s.haltErr
	}

	content, exists := s.state.contents[req.ContentID]
	if !exists {
		return nil, ErrNotFound
	}
	if !content.IsActive {
		return nil, ErrInactiveContent
	}
	if req.Amount != content.Price {
		return nil, fmt.Errorf("%w: paid %d, price is %d", ErrAmountMismatch, req.Amount, content.Price)
	}
	if _, used := s.state.txHashes[req.TransactionHash]; used {
		return nil, ErrDuplicateTransaction
	}

	if recorded := uint64(len(s.state.byContent[content.ID])); recorded != content.TotalSales {
		return nil, s.halt(fmt.Sprintf("content %s total_sales=%d but ledger holds %d payments", content.ID, content.TotalSales, recorded))
	}
	if content.TotalRevenue > math.MaxInt64-req.Amount || s.state.stats.TotalRevenue > math.MaxInt64-req.Amount {
		return nil, invalidArgument("amount %d would overflow revenue totals", req.Amount)
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}
	if _, exists := s.state.payments[id]; exists {
		return nil, ErrAlreadyExists
	}

	payment := &PaymentRecord{
		ID:              id,
		ContentID:       content.ID,
		Buyer:           req.Buyer,
		Creator:         content.Creator,
		Amount:          req.Amount,
		TransactionHash: req.TransactionHash,
		Timestamp:       s.tick(),
	}

	if err := s.repository.AppendPayment(ctx, payment); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state.applyPayment(payment)
	s.mu.Unlock()

	return payment, nil
}

func (s *service) GetPaymentsByBuyer(ctx context.Context, buyer Identity) (_ []*PaymentRecord, err error) {
	defer s.observe("get_payments_by_buyer", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.paymentsFor(s.state.byBuyer[buyer]), nil
}

func (s *service) GetPaymentsForContent(ctx context.Context, contentID string) (_ []*PaymentRecord, err error) {
	defer s.observe("get_payments_for_content", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.paymentsFor(s.state.byContent[contentID]), nil
}

func (s *service) HasPurchasedContent(ctx context.Context, buyer Identity, contentID string) (_ bool, err error) {
	defer s.observe("has_purchased_content", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.hasPurchased(buyer, contentID), nil
}

// Aggregates

func (s *service) GetStats(ctx context.Context) (_ Stats, err error) {
	defer s.observe("get_stats", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.stats, nil
}

func (s *service) Verify(ctx context.Context) (err error) {
	defer s.observe("verify", time.Now(), &err)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.haltErr != nil {
		return s.haltErr
	}

	want, err := replayState(s.state.primaryContents(), s.state.primaryPayments())
	if err != nil {
		return s.halt(err.Error())
	}

	problems := s.state.diff(want)
	if len(problems) == 0 {
		return nil
	}
	for _, p := range problems {
		s.logger.Error("Derived state mismatch", "problem", p)
	}
	return s.halt(fmt.Sprintf("%d derived-state mismatches, first: %s", len(problems), problems[0]))
}

func (s *service) Snapshot(ctx context.Context) (_ []*ContentRegistration, _ []*PaymentRecord, err error) {
	defer s.observe("snapshot", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.primaryContents(), s.state.primaryPayments(), nil
}
