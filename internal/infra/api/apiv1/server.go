package apiv1

import (
	"errors"
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog"

	"subscription-api/internal/config"
	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	ucport "subscription-api/internal/domain/ports/usecase"
	"subscription-api/internal/infra/api"
	"subscription-api/internal/infra/logging"
	"subscription-api/internal/infra/metrics"
)

var _ ServerInterface = (*Server)(nil)

// Server implements the v1 HTTP surface on top of the use case managers.
type Server struct {
	subs     ucport.SubscriptionManager
	tariffs  ucport.TariffManager
	accounts ucport.AccountManager
	payments ucport.PaymentManager

	superuser string
	billing   string
	log       *zerolog.Logger
}

func NewServer(
	subs ucport.SubscriptionManager,
	tariffs ucport.TariffManager,
	accounts ucport.AccountManager,
	payments ucport.PaymentManager,
	auth config.AuthConfig,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{
		subs:      subs,
		tariffs:   tariffs,
		accounts:  accounts,
		payments:  payments,
		superuser: auth.SuperuserPermission,
		billing:   auth.BillingPermission,
		log:       &l,
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, s.log, err)
}

func searchPage(p SearchParams) (model.Page, string) {
	var page model.Page
	if p.PageNumber != nil {
		page.Number = *p.PageNumber
	}
	if p.PageSize != nil {
		page.Size = *p.PageSize
	}
	filter := ""
	if p.Filter != nil {
		filter = *p.Filter
	}
	return page.Normalize(), filter
}

// ---- billing webhook ----

func (s *Server) ApplyPayment(w http.ResponseWriter, r *http.Request, params ApplyPaymentParams) {
	if _, ok := api.Authorize(w, r, s.billing, s.superuser); !ok {
		return
	}
	status, err := model.ParsePaymentStatus(params.PaymentStatus)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ev := model.PaymentEvent{
		AccountID:     params.AccountId.String(),
		TariffID:      params.TariffId.String(),
		PaymentStatus: status,
	}
	if params.InvoiceId != nil {
		ev.InvoiceID = *params.InvoiceId
	}

	_, changed, err := s.accounts.ApplyPayment(r.Context(), ev)
	if code := webhookCode(err); code != "" {
		metrics.IncPaymentEvent(status, "rejected")
		writeJSON(w, http.StatusBadRequest, ErrorModel{Detail: code})
		return
	}
	if err != nil {
		metrics.IncPaymentEvent(status, "error")
		s.fail(w, r, err)
		return
	}
	if changed {
		metrics.IncPaymentEvent(status, "applied")
	} else {
		metrics.IncPaymentEvent(status, "ignored")
	}
	logging.With(r.Context(), s.log).Info().
		Str("account_id", ev.AccountID).
		Str("payment_status", string(ev.PaymentStatus)).
		Bool("changed", changed).
		Msg("payment webhook applied")
	w.WriteHeader(http.StatusOK)
}

func webhookCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return ErrorCodeAccountNotExists
	case errors.Is(err, domain.ErrTariffNotFound):
		return ErrorCodeTariffNotExists
	case errors.Is(err, domain.ErrTariffMismatch):
		return ErrorCodeTariffMismatch
	}
	return ""
}

// ---- subscriptions ----

func (s *Server) GetSubscription(w http.ResponseWriter, r *http.Request, params GetSubscriptionParams) {
	sub, err := s.subs.Get(r.Context(), params.SubscriptionId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) SearchSubscriptions(w http.ResponseWriter, r *http.Request, params SearchParams) {
	page, filter := searchPage(params)
	subs, err := s.subs.Search(r.Context(), page, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(subs, toSubscription))
}

func (s *Server) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body SubscriptionCreate
	if !decodeBody(w, r, &body) {
		return
	}
	sub, err := s.subs.Create(r.Context(), body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscription(sub))
}

func (s *Server) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body SubscriptionUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	existing, err := s.subs.Get(r.Context(), body.Id.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.subs.Update(r.Context(), body.Name, existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

func (s *Server) DeleteSubscription(w http.ResponseWriter, r *http.Request, subscriptionId openapi_types.UUID) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	existing, err := s.subs.Get(r.Context(), subscriptionId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.subs.Delete(r.Context(), existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscription(sub))
}

// ---- tariffs ----

func (s *Server) GetTariff(w http.ResponseWriter, r *http.Request, params GetTariffParams) {
	t, err := s.tariffs.Get(r.Context(), params.TariffId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariff(t))
}

func (s *Server) GetTariffBySubscription(w http.ResponseWriter, r *http.Request, params GetTariffBySubscriptionParams) {
	at := time.Now()
	if params.Date != nil {
		at = *params.Date
	}
	t, err := s.tariffs.GetBySubscription(r.Context(), params.SubscriptionId.String(), at)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariff(t))
}

func (s *Server) SearchTariffs(w http.ResponseWriter, r *http.Request, params SearchParams) {
	page, filter := searchPage(params)
	ts, err := s.tariffs.Search(r.Context(), page, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(ts, toTariff))
}

func (s *Server) CreateTariff(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body TariffCreate
	if !decodeBody(w, r, &body) {
		return
	}
	t, err := s.tariffs.Create(r.Context(), model.TariffCreate{
		SubscriptionID: body.SubscriptionId.String(),
		ExpiresAt:      body.ExpiresAt,
		Amount:         body.Amount,
		Currency:       body.Currency,
		Duration:       body.Duration,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTariff(t))
}

func (s *Server) UpdateTariff(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body TariffUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	existing, err := s.tariffs.Get(r.Context(), body.Id.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.tariffs.Update(r.Context(), model.TariffPatch{
		SubscriptionID: uuidPtr(body.SubscriptionId),
		ExpiresAt:      body.ExpiresAt,
		Amount:         body.Amount,
		Currency:       body.Currency,
		Duration:       body.Duration,
	}, existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariff(t))
}

func (s *Server) DeleteTariff(w http.ResponseWriter, r *http.Request, params DeleteTariffParams) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	existing, err := s.tariffs.Get(r.Context(), params.TariffId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.tariffs.Delete(r.Context(), existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTariff(t))
}

// ---- accounts ----

func (s *Server) GetMyAccounts(w http.ResponseWriter, r *http.Request) {
	p, ok := api.Authorize(w, r)
	if !ok {
		return
	}
	s.writeUserAccounts(w, r, p.UserID)
}

func (s *Server) GetUserAccounts(w http.ResponseWriter, r *http.Request, params GetUserAccountsParams) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	s.writeUserAccounts(w, r, params.UserId.String())
}

func (s *Server) writeUserAccounts(w http.ResponseWriter, r *http.Request, userID string) {
	accs, err := s.accounts.GetByUserID(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(accs, toAccount))
}

func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request, params GetAccountParams) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	acc, err := s.accounts.Get(r.Context(), params.SubscriptionAccountId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

func (s *Server) SearchAccounts(w http.ResponseWriter, r *http.Request, params SearchParams) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	page, filter := searchPage(params)
	accs, err := s.accounts.Search(r.Context(), page, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(accs, toAccount))
}

func (s *Server) GetAccountStatuses(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	events, err := s.accounts.History(r.Context(), accountId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(events, toStatusEvent))
}

func (s *Server) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body AccountCreate
	if !decodeBody(w, r, &body) {
		return
	}
	in := model.AccountCreate{
		UserID:         body.UserId.String(),
		SubscriptionID: body.SubscriptionId.String(),
		TariffID:       uuidPtr(body.TariffId),
		ExpiresAt:      body.ExpiresAt,
	}
	if body.Status != nil {
		st, err := model.ParseAccountStatus(*body.Status)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		in.Status = st
	}
	acc, err := s.accounts.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccount(acc))
}

func (s *Server) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	var body AccountUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	existing, err := s.accounts.Get(r.Context(), body.Id.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Version != nil && *body.Version != existing.Version {
		s.fail(w, r, domain.ErrVersionConflict)
		return
	}
	patch := model.AccountPatch{
		UserID:         uuidPtr(body.UserId),
		SubscriptionID: uuidPtr(body.SubscriptionId),
		TariffID:       uuidPtr(body.TariffId),
		ExpiresAt:      body.ExpiresAt,
	}
	if body.Status != nil {
		st, err := model.ParseAccountStatus(*body.Status)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		patch.Status = &st
	}
	acc, err := s.accounts.Update(r.Context(), patch, existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

func (s *Server) DeleteAccount(w http.ResponseWriter, r *http.Request, params DeleteAccountParams) {
	if _, ok := api.Authorize(w, r, s.superuser); !ok {
		return
	}
	existing, err := s.accounts.Get(r.Context(), params.SubscriptionAccountId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	acc, err := s.accounts.Delete(r.Context(), existing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccount(acc))
}

// ---- payments ----

// authorizeOwner lets through the account owner and superusers.
func (s *Server) authorizeOwner(w http.ResponseWriter, r *http.Request, p *model.Principal, accountID string) bool {
	if p.Has(s.superuser) {
		return true
	}
	acc, err := s.accounts.Get(r.Context(), accountID)
	if err != nil {
		s.fail(w, r, err)
		return false
	}
	if acc.UserID != p.UserID {
		api.WriteDetail(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func (s *Server) GetAccountInvoice(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID) {
	p, ok := api.Authorize(w, r)
	if !ok || !s.authorizeOwner(w, r, p, accountId.String()) {
		return
	}
	inv, err := s.payments.GetInvoice(r.Context(), accountId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoice(inv))
}

func (s *Server) CreateAccountInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := api.Authorize(w, r)
	if !ok {
		return
	}
	var body InvoiceCreate
	if !decodeBody(w, r, &body) {
		return
	}
	if !s.authorizeOwner(w, r, p, body.AccountId.String()) {
		return
	}
	inv, _, err := s.payments.CreateInvoice(r.Context(), body.AccountId.String(), body.TariffId.String())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoice(inv))
}

func (s *Server) CreateAccountRefund(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID, invoiceId string) {
	p, ok := api.Authorize(w, r)
	if !ok || !s.authorizeOwner(w, r, p, accountId.String()) {
		return
	}
	inv, err := s.payments.CreateRefund(r.Context(), accountId.String(), invoiceId)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoice(inv))
}
