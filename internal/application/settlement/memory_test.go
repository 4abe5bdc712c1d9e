package settlement

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/debtsettle/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// In-memory store and transaction scope
// =============================================================================

// memStore keeps aggregates as clones so that a rolled back transaction
// leaves no trace. Execute is serialized, which stands in for row locking.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	customers   map[uuid.UUID]*settlement.Customer
	debts       map[uuid.UUID]*settlement.Debt
	instruments map[uuid.UUID]*settlement.SettlementInstrument
	payments    map[uuid.UUID]*settlement.Payment

	failures map[string]error
	loaded   map[string]func(id uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		customers:   make(map[uuid.UUID]*settlement.Customer),
		debts:       make(map[uuid.UUID]*settlement.Debt),
		instruments: make(map[uuid.UUID]*settlement.SettlementInstrument),
		payments:    make(map[uuid.UUID]*settlement.Payment),
		failures:    make(map[string]error),
		loaded:      make(map[string]func(uuid.UUID)),
	}
}

// failOn makes the named repository operation fail, e.g. "debt.SaveWithLock"
func (s *memStore) failOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// onLoad runs fn once, after the next read of the named aggregate kind
// ("debt" or "payment"). fn runs outside the store lock and commits a
// competing change between the caller's read and its write.
func (s *memStore) onLoad(kind string, fn func(id uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded[kind] = fn
}

func (s *memStore) afterLoad(kind string, ids ...uuid.UUID) {
	s.mu.Lock()
	fn := s.loaded[kind]
	delete(s.loaded, kind)
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(id)
	}
}

// commit applies change to the stored aggregate as another transaction would
func (s *memStore) commit(change func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	change()
}

func (s *memStore) clearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]error)
}

func (s *memStore) fail(op string) error {
	return s.failures[op]
}

type memSnapshot struct {
	customers   map[uuid.UUID]*settlement.Customer
	debts       map[uuid.UUID]*settlement.Debt
	instruments map[uuid.UUID]*settlement.SettlementInstrument
	payments    map[uuid.UUID]*settlement.Payment
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		customers:   make(map[uuid.UUID]*settlement.Customer, len(s.customers)),
		debts:       make(map[uuid.UUID]*settlement.Debt, len(s.debts)),
		instruments: make(map[uuid.UUID]*settlement.SettlementInstrument, len(s.instruments)),
		payments:    make(map[uuid.UUID]*settlement.Payment, len(s.payments)),
	}
	for k, v := range s.customers {
		snap.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.debts {
		snap.debts[k] = cloneDebt(v)
	}
	for k, v := range s.instruments {
		snap.instruments[k] = cloneInstrument(v)
	}
	for k, v := range s.payments {
		snap.payments[k] = clonePayment(v)
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = snap.customers
	s.debts = snap.debts
	s.instruments = snap.instruments
	s.payments = snap.payments
}

// Execute implements TransactionScope
func (s *memStore) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) CustomerRepo() settlement.CustomerRepository     { return memCustomerRepo{s} }
func (s *memStore) DebtRepo() settlement.DebtRepository             { return memDebtRepo{s} }
func (s *memStore) InstrumentRepo() settlement.InstrumentRepository { return memInstrumentRepo{s} }
func (s *memStore) PaymentRepo() settlement.PaymentRepository       { return memPaymentRepo{s} }

func (s *memStore) debt(id uuid.UUID) *settlement.Debt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.debts[id]; ok {
		return cloneDebt(d)
	}
	return nil
}

func (s *memStore) instrument(id uuid.UUID) *settlement.SettlementInstrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.instruments[id]; ok {
		return cloneInstrument(i)
	}
	return nil
}

func (s *memStore) payment(id uuid.UUID) *settlement.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return clonePayment(p)
	}
	return nil
}

func (s *memStore) instrumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instruments)
}

var _ TransactionScope = (*memStore)(nil)
var _ TransactionalRepositories = (*memStore)(nil)

func cloneCustomer(c *settlement.Customer) *settlement.Customer {
	cp := *c
	return &cp
}

func cloneDebt(d *settlement.Debt) *settlement.Debt {
	cp := *d
	if d.CurrentAmount != nil {
		amount := *d.CurrentAmount
		cp.CurrentAmount = &amount
	}
	if d.InstrumentID != nil {
		id := *d.InstrumentID
		cp.InstrumentID = &id
	}
	cp.ClearDomainEvents()
	return &cp
}

func cloneInstrument(i *settlement.SettlementInstrument) *settlement.SettlementInstrument {
	cp := *i
	cp.DebtIDs = append([]uuid.UUID(nil), i.DebtIDs...)
	if i.CanceledAt != nil {
		at := *i.CanceledAt
		cp.CanceledAt = &at
	}
	if i.PaidAt != nil {
		at := *i.PaidAt
		cp.PaidAt = &at
	}
	cp.ClearDomainEvents()
	return &cp
}

func clonePayment(p *settlement.Payment) *settlement.Payment {
	cp := *p
	if p.InstrumentID != nil {
		id := *p.InstrumentID
		cp.InstrumentID = &id
	}
	if p.ProcessedAt != nil {
		at := *p.ProcessedAt
		cp.ProcessedAt = &at
	}
	cp.ClearDomainEvents()
	return &cp
}

func paginate[T any](items []T, filter shared.Filter) []T {
	start := filter.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := len(items)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	return items[start:end]
}

type memCustomerRepo struct{ s *memStore }

func (r memCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("customer.FindByID"); err != nil {
		return nil, err
	}
	if c, ok := r.s.customers[id]; ok {
		return cloneCustomer(c), nil
	}
	return nil, nil
}

func (r memCustomerRepo) FindByTaxpayerID(_ context.Context, taxpayerID valueobject.TaxpayerID) (*settlement.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.customers {
		if c.TaxpayerID.Equals(taxpayerID) {
			return cloneCustomer(c), nil
		}
	}
	return nil, nil
}

func (r memCustomerRepo) Save(_ context.Context, c *settlement.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.customers[c.ID] = cloneCustomer(c)
	return nil
}

func (r memCustomerRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.customers, id)
	return nil
}

type memDebtRepo struct{ s *memStore }

func (r memDebtRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.debts[id]; ok {
		return cloneDebt(d), nil
	}
	return nil, nil
}

func (r memDebtRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*settlement.Debt, error) {
	r.s.mu.Lock()
	if err := r.s.fail("debt.FindByIDs"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	out := make([]*settlement.Debt, 0, len(ids))
	found := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.s.debts[id]; ok {
			out = append(out, cloneDebt(d))
			found = append(found, id)
		}
	}
	r.s.mu.Unlock()
	r.s.afterLoad("debt", found...)
	return out, nil
}

func (r memDebtRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.Debt
	for _, d := range r.s.debts {
		if d.CustomerID == customerID {
			out = append(out, cloneDebt(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return paginate(out, filter), nil
}

func (r memDebtRepo) FindByInstrument(_ context.Context, instrumentID uuid.UUID) ([]*settlement.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.Debt
	for _, d := range r.s.debts {
		if d.InstrumentID != nil && *d.InstrumentID == instrumentID {
			out = append(out, cloneDebt(d))
		}
	}
	return out, nil
}

func (r memDebtRepo) FindByStatuses(_ context.Context, statuses []settlement.DebtStatus, afterID uuid.UUID, limit int) ([]*settlement.Debt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[settlement.DebtStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	var out []*settlement.Debt
	for _, d := range r.s.debts {
		if wanted[d.Status] && bytes.Compare(d.ID[:], afterID[:]) > 0 {
			out = append(out, cloneDebt(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memDebtRepo) Save(_ context.Context, d *settlement.Debt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.debts[d.ID] = cloneDebt(d)
	return nil
}

func (r memDebtRepo) SaveWithLock(_ context.Context, d *settlement.Debt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("debt.SaveWithLock"); err != nil {
		return err
	}
	stored, ok := r.s.debts[d.ID]
	if !ok || stored.Version != d.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.debts[d.ID] = cloneDebt(d)
	return nil
}

func (r memDebtRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.debts, id)
	return nil
}

type memInstrumentRepo struct{ s *memStore }

func (r memInstrumentRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.SettlementInstrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.instruments[id]; ok {
		return cloneInstrument(i), nil
	}
	return nil, nil
}

func (r memInstrumentRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.SettlementInstrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.SettlementInstrument
	for _, i := range r.s.instruments {
		if i.CustomerID == customerID {
			out = append(out, cloneInstrument(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return paginate(out, filter), nil
}

func (r memInstrumentRepo) FindOpenByDebtIDs(_ context.Context, debtIDs []uuid.UUID) ([]*settlement.SettlementInstrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(debtIDs))
	for _, id := range debtIDs {
		wanted[id] = true
	}
	var out []*settlement.SettlementInstrument
	for _, i := range r.s.instruments {
		if !i.Status.IsOpen() {
			continue
		}
		for _, id := range i.DebtIDs {
			if wanted[id] {
				out = append(out, cloneInstrument(i))
				break
			}
		}
	}
	return out, nil
}

func (r memInstrumentRepo) FindDueActive(_ context.Context, before time.Time, limit int) ([]*settlement.SettlementInstrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.SettlementInstrument
	for _, i := range r.s.instruments {
		if i.Status == settlement.InstrumentStatusActive && i.DueDate.Before(before) {
			out = append(out, cloneInstrument(i))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memInstrumentRepo) ExistsByIdentifierLine(_ context.Context, line string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.instruments {
		if i.IdentifierLine == line {
			return true, nil
		}
	}
	return false, nil
}

func (r memInstrumentRepo) Save(_ context.Context, i *settlement.SettlementInstrument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("instrument.Save"); err != nil {
		return err
	}
	r.s.instruments[i.ID] = cloneInstrument(i)
	return nil
}

func (r memInstrumentRepo) SaveWithLock(_ context.Context, i *settlement.SettlementInstrument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("instrument.SaveWithLock"); err != nil {
		return err
	}
	stored, ok := r.s.instruments[i.ID]
	if !ok || stored.Version != i.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.instruments[i.ID] = cloneInstrument(i)
	return nil
}

func (r memInstrumentRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.instruments, id)
	return nil
}

type memPaymentRepo struct{ s *memStore }

func (r memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*settlement.Payment, error) {
	r.s.mu.Lock()
	p, ok := r.s.payments[id]
	if ok {
		p = clonePayment(p)
	}
	r.s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	r.s.afterLoad("payment", id)
	return p, nil
}

func (r memPaymentRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, filter shared.Filter) ([]*settlement.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*settlement.Payment
	for _, p := range r.s.payments {
		if p.CustomerID == customerID {
			out = append(out, clonePayment(p))
		}
	}
	return paginate(out, filter), nil
}

func (r memPaymentRepo) Save(_ context.Context, p *settlement.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (r memPaymentRepo) SaveWithLock(_ context.Context, p *settlement.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payment.SaveWithLock"); err != nil {
		return err
	}
	stored, ok := r.s.payments[p.ID]
	if !ok || stored.Version != p.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (r memPaymentRepo) DeleteByID(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.payments, id)
	return nil
}

// =============================================================================
// Port doubles
// =============================================================================

// MockCache is a testify mock of Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

// MockAuditSink is a testify mock of settlement.AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Append(ctx context.Context, record settlement.AuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockIdentifierGenerator is a testify mock of settlement.IdentifierGenerator
type MockIdentifierGenerator struct {
	mock.Mock
}

func (m *MockIdentifierGenerator) Generate(req settlement.IdentifierRequest) (settlement.InstrumentIdentifier, error) {
	args := m.Called(req)
	return args.Get(0).(settlement.InstrumentIdentifier), args.Error(1)
}

// mapCache is a working in-process Cache for read-through tests
type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	gets    int
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) SetWithTTL(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *mapCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// =============================================================================
// Fixtures
// =============================================================================

var testNow = time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type fixture struct {
	store    *memStore
	customer *settlement.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	customer, err := settlement.NewCustomer(valueobject.MustParseTaxpayerID("11144477735"), "Maria Souza", "maria@example.com", "", testNow)
	require.NoError(t, err)
	require.NoError(t, store.CustomerRepo().Save(context.Background(), customer))
	return &fixture{store: store, customer: customer}
}

// addDebt stores a debt for the fixture customer due dueDaysAgo days before testNow
func (f *fixture) addDebt(t *testing.T, amount string, dueDaysAgo int) *settlement.Debt {
	t.Helper()
	return f.addDebtFor(t, f.customer.ID, amount, dueDaysAgo)
}

func (f *fixture) addDebtFor(t *testing.T, customerID uuid.UUID, amount string, dueDaysAgo int) *settlement.Debt {
	t.Helper()
	d, err := settlement.NewDebt(customerID, settlement.DebtKindLoan, "personal loan", valueobject.NewBRL(amount),
		testNow.AddDate(0, 0, -dueDaysAgo), decimal.NewFromFloat(1.99), testNow)
	require.NoError(t, err)
	require.NoError(t, f.store.DebtRepo().Save(context.Background(), d))
	return d
}

func newTestGenerator(t *testing.T) *settlement.BankSlipGenerator {
	t.Helper()
	g, err := settlement.NewBankSlipGenerator([]string{"001", "033", "104", "237", "341", "399"}, "1234", "12345678")
	require.NoError(t, err)
	return g
}

func (f *fixture) negotiationService(t *testing.T, audit settlement.AuditSink, cache Cache) *NegotiationService {
	t.Helper()
	svc := NewNegotiationService(f.store, newTestGenerator(t), audit, cache, DefaultConfig(), nil)
	svc.SetClock(fixedClock(testNow))
	return svc
}

func (f *fixture) cancellationService(audit settlement.AuditSink, cache Cache, now time.Time) *CancellationService {
	svc := NewCancellationService(f.store, audit, cache, nil)
	svc.SetClock(fixedClock(now))
	return svc
}

// negotiate creates an instrument over debts without audit or cache
func (f *fixture) negotiate(t *testing.T, count int, debts ...*settlement.Debt) *InstrumentDTO {
	t.Helper()
	ids := make([]uuid.UUID, len(debts))
	for i, d := range debts {
		ids[i] = d.ID
	}
	dto, err := f.negotiationService(t, nil, nil).Negotiate(context.Background(), NegotiateCommand{
		CustomerID:       f.customer.ID,
		DebtIDs:          ids,
		InstallmentCount: count,
	})
	require.NoError(t, err)
	return dto
}

func mustBRL(amount string) valueobject.Money {
	return valueobject.NewBRL(amount)
}

func mustCPF(raw string) valueobject.TaxpayerID {
	return valueobject.MustParseTaxpayerID(raw)
}
