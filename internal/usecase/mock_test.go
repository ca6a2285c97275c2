//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func ptr[T any](v T) *T { return &v }

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// =============================
// In-memory store shared by the repositories
// =============================

type memStore struct {
	mu       sync.Mutex
	subs     map[string]model.Subscription
	tariffs  map[string]model.Tariff
	accounts map[string]model.Account
	events   []model.AccountStatusEvent
}

func newMemStore() *memStore {
	return &memStore{
		subs:     map[string]model.Subscription{},
		tariffs:  map[string]model.Tariff{},
		accounts: map[string]model.Account{},
	}
}

type memSnapshot struct {
	subs     map[string]model.Subscription
	tariffs  map[string]model.Tariff
	accounts map[string]model.Account
	events   []model.AccountStatusEvent
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		subs:     make(map[string]model.Subscription, len(s.subs)),
		tariffs:  make(map[string]model.Tariff, len(s.tariffs)),
		accounts: make(map[string]model.Account, len(s.accounts)),
		events:   append([]model.AccountStatusEvent(nil), s.events...),
	}
	for k, v := range s.subs {
		snap.subs[k] = v
	}
	for k, v := range s.tariffs {
		snap.tariffs[k] = v
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs, s.tariffs, s.accounts, s.events = snap.subs, snap.tariffs, snap.accounts, snap.events
}

func (s *memStore) eventsFor(accountID string) []model.AccountStatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AccountStatusEvent
	for _, e := range s.events {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) account(id string) model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

// ---- MockTxManager ----

// MockTxManager serializes transactions, standing in for row locks, and
// restores the store when fn fails.
type MockTxManager struct {
	store *memStore
	txMu  sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.Calls++
	snap := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ---- Subscription repository ----

type memSubscriptionRepo struct{ s *memStore }

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func (r *memSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.subs {
		if v.Name == sub.Name {
			return domain.ErrAlreadyExists
		}
	}
	r.s.subs[sub.ID] = *sub
	return nil
}

func (r *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r *memSubscriptionRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.subs {
		if v.Name == name {
			cp := v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memSubscriptionRepo) Update(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subs[sub.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.subs[sub.ID] = *sub
	return nil
}

func (r *memSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subs[id]; !ok {
		return domain.ErrNotFound
	}
	for _, t := range r.s.tariffs {
		if t.SubscriptionID == id {
			return domain.Invalid("subscription is referenced")
		}
	}
	delete(r.s.subs, id)
	return nil
}

func (r *memSubscriptionRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.Subscription
	for _, v := range r.s.subs {
		if filter == "" || strings.Contains(strings.ToLower(v.Name), strings.ToLower(filter)) {
			cp := v
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, page), nil
}

// ---- Tariff repository ----

type memTariffRepo struct{ s *memStore }

var _ repository.TariffRepository = (*memTariffRepo)(nil)

func (r *memTariffRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tariffs[t.ID] = *t
	return nil
}

func (r *memTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.tariffs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r *memTariffRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *memTariffRepo) FindCurrentBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.Tariff
	for _, v := range r.s.tariffs {
		if v.SubscriptionID != subscriptionID {
			continue
		}
		if best == nil || v.CreatedAt.After(best.CreatedAt) {
			cp := v
			best = &cp
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (r *memTariffRepo) Update(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tariffs[t.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.tariffs[t.ID] = *t
	return nil
}

func (r *memTariffRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tariffs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.tariffs, id)
	return nil
}

func (r *memTariffRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Tariff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.Tariff
	for _, v := range r.s.tariffs {
		if filter == "" || v.SubscriptionID == filter {
			cp := v
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, page), nil
}

// ---- Account repository ----

type memAccountRepo struct {
	s *memStore

	// optional error hooks
	UpdateFunc func(a *model.Account) error
}

var _ repository.AccountRepository = (*memAccountRepo)(nil)

func (r *memAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (r *memAccountRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Account
	for _, v := range r.s.accounts {
		if v.UserID == userID {
			cp := v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAccountRepo) ExistsByTariff(ctx context.Context, tx repository.Tx, tariffID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.accounts {
		if v.TariffID != nil && *v.TariffID == tariffID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccountRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.Account
	for _, v := range r.s.accounts {
		if filter == "" || string(v.Status) == filter {
			cp := v
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), nil
}

func (r *memAccountRepo) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if r.UpdateFunc != nil {
		if err := r.UpdateFunc(a); err != nil {
			return err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.accounts[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != a.Version {
		return domain.ErrVersionConflict
	}
	a.Version++
	r.s.accounts[a.ID] = *a
	return nil
}

func (r *memAccountRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.accounts, id)
	kept := r.s.events[:0]
	for _, e := range r.s.events {
		if e.AccountID != id {
			kept = append(kept, e)
		}
	}
	r.s.events = kept
	return nil
}

func (r *memAccountRepo) ListAwaitingPayment(ctx context.Context, tx repository.Tx, modifiedBefore time.Time, limit int) ([]*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Account
	for _, v := range r.s.accounts {
		if v.Status == model.AccountStatusPending && v.TariffID != nil && v.ModifiedAt.Before(modifiedBefore) {
			cp := v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt.Before(out[j].ModifiedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAccountRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.AccountStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[model.AccountStatus]int{}
	for _, v := range r.s.accounts {
		out[v.Status]++
	}
	return out, nil
}

// ---- Account status repository ----

type memStatusRepo struct {
	s *memStore

	AppendErr error
}

var _ repository.AccountStatusRepository = (*memStatusRepo)(nil)

func (r *memStatusRepo) Append(ctx context.Context, tx repository.Tx, e *model.AccountStatusEvent) error {
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r *memStatusRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.AccountStatusEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.AccountStatusEvent
	for _, e := range r.s.events {
		if e.AccountID == accountID {
			cp := e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func paginate[T any](all []T, page model.Page) []T {
	off, lim := page.Offset(), page.Limit()
	if off >= len(all) {
		return nil
	}
	end := off + lim
	if end > len(all) {
		end = len(all)
	}
	return all[off:end]
}

// ---- MockLocker ----

type MockLocker struct {
	mu      sync.Mutex
	held    map[string]string
	Locks   int
	Unlocks int

	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var _ repository.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held == nil {
		m.held = map[string]string{}
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrBusy
	}
	m.Locks++
	tok := key + "-token"
	m.held[key] = tok
	return tok, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
		m.Unlocks++
	}
	return nil
}

// ---- MockBilling ----

type MockBilling struct {
	CreateInvoiceFunc       func(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error)
	GetInvoiceByAccountFunc func(ctx context.Context, accountID string) (*model.Invoice, error)
	CreateRefundFunc        func(ctx context.Context, invoiceID string) (*model.Invoice, error)

	Requests []model.InvoiceRequest
	Refunds  []string
}

var _ adapter.BillingClient = (*MockBilling)(nil)

func (m *MockBilling) CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error) {
	m.Requests = append(m.Requests, req)
	if m.CreateInvoiceFunc != nil {
		return m.CreateInvoiceFunc(ctx, req)
	}
	return &model.Invoice{ID: "inv-1", UserID: req.UserID, ServiceID: req.ServiceID, Amount: req.Amount, Currency: req.Currency, Status: model.PaymentStatusOpen}, nil
}

func (m *MockBilling) GetInvoiceByAccount(ctx context.Context, accountID string) (*model.Invoice, error) {
	if m.GetInvoiceByAccountFunc != nil {
		return m.GetInvoiceByAccountFunc(ctx, accountID)
	}
	return &model.Invoice{ID: "inv-1", ServiceID: accountID, Status: model.PaymentStatusOpen}, nil
}

func (m *MockBilling) CreateRefund(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	m.Refunds = append(m.Refunds, invoiceID)
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, invoiceID)
	}
	return &model.Invoice{ID: invoiceID, Status: model.PaymentStatusRefunded}, nil
}

// ---- recordingHooks ----

type recordingHooks struct {
	mu      sync.Mutex
	created []model.Account
	updated [][2]model.Account
	deleted []model.Account

	BeforeDeleteErr error
}

func (h *recordingHooks) AfterCreate(ctx context.Context, a *model.Account) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, *a)
	return nil
}

func (h *recordingHooks) AfterUpdate(ctx context.Context, before, after *model.Account) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, [2]model.Account{*before, *after})
	return nil
}

func (h *recordingHooks) BeforeDelete(ctx context.Context, a *model.Account) error {
	return h.BeforeDeleteErr
}

func (h *recordingHooks) AfterDelete(ctx context.Context, a *model.Account) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, *a)
	return nil
}

// =============================
// Fixture
// =============================

const thirtyDays int64 = 2_592_000

type fixture struct {
	store    *memStore
	subs     *memSubscriptionRepo
	tariffs  *memTariffRepo
	accounts *memAccountRepo
	statuses *memStatusRepo
	tm       *MockTxManager
}

func newFixture() *fixture {
	s := newMemStore()
	return &fixture{
		store:    s,
		subs:     &memSubscriptionRepo{s: s},
		tariffs:  &memTariffRepo{s: s},
		accounts: &memAccountRepo{s: s},
		statuses: &memStatusRepo{s: s},
		tm:       NewMockTxManager(s),
	}
}

func (f *fixture) seedSubscription(id, name string) model.Subscription {
	sub := model.Subscription{ID: id, Name: name, CreatedAt: time.Now()}
	f.store.subs[id] = sub
	return sub
}

func (f *fixture) seedTariff(id, subscriptionID string, duration int64) model.Tariff {
	t := model.Tariff{ID: id, SubscriptionID: subscriptionID, CreatedAt: time.Now(), Amount: 19900, Currency: "RUB", Duration: duration}
	f.store.tariffs[id] = t
	return t
}

func (f *fixture) seedAccount(a model.Account) model.Account {
	if a.Version == 0 {
		a.Version = 1
	}
	f.store.accounts[a.ID] = a
	return a
}
