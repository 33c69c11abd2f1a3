package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockPaymentStore is an in-memory ports.PaymentStore. WithTx restores the
// previous state when fn fails so tests can observe rollbacks.
type MockPaymentStore struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
	events   []domain.PaymentEvent

	CreatePaymentFn    func(ctx context.Context, payment *domain.Payment) error
	FindByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	UpdatePaymentFn    func(ctx context.Context, payment *domain.Payment) error
	FindStalePendingFn func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)
	AppendApprovedFn   func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error)
	AppendRejectedFn   func(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error)
	WithTxFn           func(ctx context.Context, fn func(ports.PaymentStore) error) error
}

func NewMockPaymentStore() *MockPaymentStore {
	return &MockPaymentStore{
		payments: make(map[uuid.UUID]*domain.Payment),
	}
}

// Seed stores a payment directly, bypassing any hooks.
func (m *MockPaymentStore) Seed(p *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p.Clone()
}

// Events returns every ledger entry appended so far for paymentID.
func (m *MockPaymentStore) Events(paymentID uuid.UUID) []domain.PaymentEvent {
	events, _ := m.HistoryFor(context.Background(), paymentID)
	return events
}

func (m *MockPaymentStore) Payments() ports.PaymentRepository { return m }
func (m *MockPaymentStore) Ledger() ports.PaymentLedger       { return m }

func (m *MockPaymentStore) WithTx(ctx context.Context, fn func(ports.PaymentStore) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}

	m.mu.RLock()
	saved := make(map[uuid.UUID]*domain.Payment, len(m.payments))
	for id, p := range m.payments {
		saved[id] = p.Clone()
	}
	savedEvents := append([]domain.PaymentEvent(nil), m.events...)
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.payments = saved
		m.events = savedEvents
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockPaymentStore) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	if m.CreatePaymentFn != nil {
		return m.CreatePaymentFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment.Clone()
	return nil
}

func (m *MockPaymentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.payments[id]; ok {
		return p.Clone(), nil
	}
	return nil, domain.NewPaymentNotFoundError(id.String())
}

func (m *MockPaymentStore) UpdatePayment(ctx context.Context, payment *domain.Payment) error {
	if m.UpdatePaymentFn != nil {
		return m.UpdatePaymentFn(ctx, payment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; !ok {
		return domain.NewPaymentNotFoundError(payment.ID.String())
	}
	m.payments[payment.ID] = payment.Clone()
	return nil
}

func (m *MockPaymentStore) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	if m.FindStalePendingFn != nil {
		return m.FindStalePendingFn(ctx, olderThan, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().Add(-olderThan)
	var stale []*domain.Payment
	for _, p := range m.payments {
		if p.Status == domain.StatusPending && p.CreatedAt.Before(cutoff) {
			stale = append(stale, p.Clone())
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (m *MockPaymentStore) AppendCreated(ctx context.Context, payment *domain.Payment) (*domain.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(payment, domain.PaymentEventCreated), nil
}

func (m *MockPaymentStore) AppendApproved(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
	if m.AppendApprovedFn != nil {
		return m.AppendApprovedFn(ctx, paymentID)
	}
	return m.appendFromStored(paymentID, domain.PaymentEventApproved)
}

func (m *MockPaymentStore) AppendRejected(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentEvent, error) {
	if m.AppendRejectedFn != nil {
		return m.AppendRejectedFn(ctx, paymentID)
	}
	return m.appendFromStored(paymentID, domain.PaymentEventRejected)
}

func (m *MockPaymentStore) appendFromStored(paymentID uuid.UUID, typ domain.PaymentEventType) (*domain.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(paymentID.String())
	}
	return m.appendLocked(p, typ), nil
}

func (m *MockPaymentStore) appendLocked(p *domain.Payment, typ domain.PaymentEventType) *domain.PaymentEvent {
	ev := domain.PaymentEvent{
		ID:         uuid.New(),
		PaymentID:  p.ID,
		Type:       typ,
		PayerID:    p.PayerID,
		PayeeID:    p.PayeeID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		Sequence:   int64(len(m.events) + 1),
		OccurredAt: time.Now().UTC(),
	}
	m.events = append(m.events, ev)
	return &ev
}

func (m *MockPaymentStore) HistoryFor(ctx context.Context, paymentID uuid.UUID) ([]domain.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PaymentEvent
	for _, ev := range m.events {
		if ev.PaymentID == paymentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockPaymentStore) HistoryForParticipant(ctx context.Context, participantID uuid.UUID) ([]domain.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PaymentEvent
	for _, ev := range m.events {
		if ev.PayerID == participantID || ev.PayeeID == participantID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// MockMerchantStore is an in-memory ports.MerchantStore.
type MockMerchantStore struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
	events    []domain.MerchantEvent

	AppendFn func(ctx context.Context, event *domain.MerchantEvent) error
}

func NewMockMerchantStore() *MockMerchantStore {
	return &MockMerchantStore{
		merchants: make(map[uuid.UUID]*domain.Merchant),
	}
}

func (m *MockMerchantStore) Merchants() ports.MerchantRepository { return m }
func (m *MockMerchantStore) Ledger() ports.MerchantLedger         { return m }

func (m *MockMerchantStore) WithTx(ctx context.Context, fn func(ports.MerchantStore) error) error {
	m.mu.RLock()
	saved := make(map[uuid.UUID]*domain.Merchant, len(m.merchants))
	for id, mer := range m.merchants {
		c := *mer
		saved[id] = &c
	}
	savedEvents := append([]domain.MerchantEvent(nil), m.events...)
	m.mu.RUnlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.merchants = saved
		m.events = savedEvents
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockMerchantStore) CreateMerchant(ctx context.Context, merchant *domain.Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.merchants {
		if existing.Email == merchant.Email {
			return domain.NewDuplicateMerchantError(merchant.Email)
		}
	}
	c := *merchant
	m.merchants[merchant.ID] = &c
	return nil
}

func (m *MockMerchantStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mer, ok := m.merchants[id]
	if !ok {
		return nil, domain.NewMerchantNotFoundError(id.String())
	}
	c := *mer
	return &c, nil
}

func (m *MockMerchantStore) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	return m.FindByID(ctx, id)
}

func (m *MockMerchantStore) UpdateMerchant(ctx context.Context, merchant *domain.Merchant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.merchants[merchant.ID]; !ok {
		return domain.NewMerchantNotFoundError(merchant.ID.String())
	}
	c := *merchant
	m.merchants[merchant.ID] = &c
	return nil
}

func (m *MockMerchantStore) Append(ctx context.Context, event *domain.MerchantEvent) error {
	if m.AppendFn != nil {
		return m.AppendFn(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Sequence = int64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func (m *MockMerchantStore) HistoryFor(ctx context.Context, merchantID uuid.UUID) ([]domain.MerchantEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.MerchantEvent
	for _, ev := range m.events {
		if ev.MerchantID == merchantID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockMerchantStore) HasReference(ctx context.Context, merchantID uuid.UUID, eventType domain.MerchantEventType, reference string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.events {
		if ev.MerchantID == merchantID && ev.Type == eventType && ev.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

// MockBalanceCollaborator records every request it receives.
type MockBalanceCollaborator struct {
	mu       sync.Mutex
	calls    map[string]int
	requests []domain.BalanceRequest

	DebitFn  func(ctx context.Context, req domain.BalanceRequest) error
	CreditFn func(ctx context.Context, req domain.BalanceRequest) error
}

func (m *MockBalanceCollaborator) record(method string, req domain.BalanceRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
	m.requests = append(m.requests, req)
}

func (m *MockBalanceCollaborator) GetCalls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockBalanceCollaborator) Requests() []domain.BalanceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BalanceRequest(nil), m.requests...)
}

func (m *MockBalanceCollaborator) Debit(ctx context.Context, req domain.BalanceRequest) error {
	m.record("Debit", req)
	if m.DebitFn != nil {
		return m.DebitFn(ctx, req)
	}
	return nil
}

func (m *MockBalanceCollaborator) Credit(ctx context.Context, req domain.BalanceRequest) error {
	m.record("Credit", req)
	if m.CreditFn != nil {
		return m.CreditFn(ctx, req)
	}
	return nil
}

// MockEventPublisher is a testify mock for ports.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}
