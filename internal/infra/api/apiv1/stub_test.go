//go:build !integration

package apiv1_test

import (
	"context"
	"time"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
)

// Stub managers. Each method delegates to an optional func field; unset
// fields fall back to a not-found answer.

type stubSubs struct {
	create func(name string) (*model.Subscription, error)
	get    func(id string) (*model.Subscription, error)
	search func(page model.Page, filter string) ([]*model.Subscription, error)
	update func(name string, existing *model.Subscription) (*model.Subscription, error)
}

func (s *stubSubs) Create(_ context.Context, name string) (*model.Subscription, error) {
	if s.create == nil {
		return nil, domain.ErrOperationFailed
	}
	return s.create(name)
}

func (s *stubSubs) Get(_ context.Context, id string) (*model.Subscription, error) {
	if s.get == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s.get(id)
}

func (s *stubSubs) GetByName(context.Context, string) (*model.Subscription, error) {
	return nil, domain.ErrSubscriptionNotFound
}

func (s *stubSubs) Update(_ context.Context, name string, existing *model.Subscription) (*model.Subscription, error) {
	if s.update == nil {
		cp := *existing
		cp.Name = name
		return &cp, nil
	}
	return s.update(name, existing)
}

func (s *stubSubs) Delete(_ context.Context, existing *model.Subscription) (*model.Subscription, error) {
	return existing, nil
}

func (s *stubSubs) Search(_ context.Context, page model.Page, filter string) ([]*model.Subscription, error) {
	if s.search == nil {
		return nil, nil
	}
	return s.search(page, filter)
}

type stubTariffs struct {
	create func(in model.TariffCreate) (*model.Tariff, error)
	get    func(id string) (*model.Tariff, error)
	bySub  func(subscriptionID string, at time.Time) (*model.Tariff, error)
}

func (s *stubTariffs) Create(_ context.Context, in model.TariffCreate) (*model.Tariff, error) {
	if s.create == nil {
		return nil, domain.ErrOperationFailed
	}
	return s.create(in)
}

func (s *stubTariffs) Get(_ context.Context, id string) (*model.Tariff, error) {
	if s.get == nil {
		return nil, domain.ErrTariffNotFound
	}
	return s.get(id)
}

func (s *stubTariffs) GetBySubscription(_ context.Context, subscriptionID string, at time.Time) (*model.Tariff, error) {
	if s.bySub == nil {
		return nil, domain.ErrTariffNotFound
	}
	return s.bySub(subscriptionID, at)
}

func (s *stubTariffs) Update(_ context.Context, patch model.TariffPatch, existing *model.Tariff) (*model.Tariff, error) {
	t := patch.Apply(*existing)
	return &t, nil
}

func (s *stubTariffs) Delete(_ context.Context, existing *model.Tariff) (*model.Tariff, error) {
	return existing, nil
}

func (s *stubTariffs) Search(context.Context, model.Page, string) ([]*model.Tariff, error) {
	return nil, nil
}

type stubAccounts struct {
	accounts map[string]*model.Account
	apply    func(ev model.PaymentEvent) (*model.Account, bool, error)
	update   func(patch model.AccountPatch, existing *model.Account) (*model.Account, error)

	lastEvent  *model.PaymentEvent
	lastSearch *model.Page
}

func newStubAccounts(accs ...*model.Account) *stubAccounts {
	s := &stubAccounts{accounts: map[string]*model.Account{}}
	for _, a := range accs {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *stubAccounts) Create(_ context.Context, in model.AccountCreate) (*model.Account, error) {
	a, err := model.NewAccount("00000000-0000-0000-0000-0000000000aa", in, time.Now())
	if err != nil {
		return nil, err
	}
	s.accounts[a.ID] = a
	return a, nil
}

func (s *stubAccounts) Get(_ context.Context, id string) (*model.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *stubAccounts) GetByUserID(_ context.Context, userID string) ([]*model.Account, error) {
	var out []*model.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubAccounts) Search(_ context.Context, page model.Page, filter string) ([]*model.Account, error) {
	s.lastSearch = &page
	if filter != "" {
		if _, err := model.ParseAccountStatus(filter); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (s *stubAccounts) History(_ context.Context, accountID string) ([]*model.AccountStatusEvent, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return []*model.AccountStatusEvent{model.NewAccountStatusEvent("ev-1", a, a.CreatedAt)}, nil
}

func (s *stubAccounts) Update(_ context.Context, patch model.AccountPatch, existing *model.Account) (*model.Account, error) {
	if s.update != nil {
		return s.update(patch, existing)
	}
	a, err := patch.Apply(*existing)
	if err != nil {
		return nil, err
	}
	a.Version++
	return &a, nil
}

func (s *stubAccounts) Delete(_ context.Context, existing *model.Account) (*model.Account, error) {
	delete(s.accounts, existing.ID)
	return existing, nil
}

func (s *stubAccounts) ApplyPayment(_ context.Context, ev model.PaymentEvent) (*model.Account, bool, error) {
	s.lastEvent = &ev
	if s.apply == nil {
		return nil, false, domain.ErrAccountNotFound
	}
	return s.apply(ev)
}

type stubPayments struct {
	create func(accountID, tariffID string) (*model.Invoice, *model.Account, error)
	get    func(accountID string) (*model.Invoice, error)
	refund func(accountID, invoiceID string) (*model.Invoice, error)
}

func (s *stubPayments) CreateInvoice(_ context.Context, accountID, tariffID string) (*model.Invoice, *model.Account, error) {
	if s.create == nil {
		return nil, nil, domain.ErrAccountNotFound
	}
	return s.create(accountID, tariffID)
}

func (s *stubPayments) GetInvoice(_ context.Context, accountID string) (*model.Invoice, error) {
	if s.get == nil {
		return nil, domain.ErrNotFound
	}
	return s.get(accountID)
}

func (s *stubPayments) CreateRefund(_ context.Context, accountID, invoiceID string) (*model.Invoice, error) {
	if s.refund == nil {
		return nil, domain.ErrNotFound
	}
	return s.refund(accountID, invoiceID)
}
