package apiv1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// SearchParams are the pagination and filter query parameters of */search.
type SearchParams struct {
	PageNumber *int    `form:"page_number,omitempty" json:"page_number,omitempty"`
	PageSize   *int    `form:"page_size,omitempty" json:"page_size,omitempty"`
	Filter     *string `form:"filter,omitempty" json:"filter,omitempty"`
}

type ApplyPaymentParams struct {
	AccountId     openapi_types.UUID `form:"account_id" json:"account_id"`
	TariffId      openapi_types.UUID `form:"tariff_id" json:"tariff_id"`
	PaymentStatus string             `form:"payment_status" json:"payment_status"`
	InvoiceId     *string            `form:"invoice_id,omitempty" json:"invoice_id,omitempty"`
}

type GetSubscriptionParams struct {
	SubscriptionId openapi_types.UUID `form:"subscription_id" json:"subscription_id"`
}

type GetTariffParams struct {
	TariffId openapi_types.UUID `form:"tariff_id" json:"tariff_id"`
}

type GetTariffBySubscriptionParams struct {
	SubscriptionId openapi_types.UUID `form:"subscription_id" json:"subscription_id"`
	Date           *time.Time         `form:"date,omitempty" json:"date,omitempty"`
}

type DeleteTariffParams struct {
	TariffId openapi_types.UUID `form:"tariff_id" json:"tariff_id"`
}

type GetUserAccountsParams struct {
	UserId openapi_types.UUID `form:"user_id" json:"user_id"`
}

type GetAccountParams struct {
	SubscriptionAccountId openapi_types.UUID `form:"subscription_account_id" json:"subscription_account_id"`
}

type DeleteAccountParams struct {
	SubscriptionAccountId openapi_types.UUID `form:"subscription_account_id" json:"subscription_account_id"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /api/v1/internal/hooks/billing/payment)
	ApplyPayment(w http.ResponseWriter, r *http.Request, params ApplyPaymentParams)

	// (GET /api/v1/subscriptions)
	GetSubscription(w http.ResponseWriter, r *http.Request, params GetSubscriptionParams)
	// (GET /api/v1/subscriptions/search)
	SearchSubscriptions(w http.ResponseWriter, r *http.Request, params SearchParams)
	// (POST /api/v1/subscriptions)
	CreateSubscription(w http.ResponseWriter, r *http.Request)
	// (PATCH /api/v1/subscriptions)
	UpdateSubscription(w http.ResponseWriter, r *http.Request)
	// (DELETE /api/v1/subscriptions/{subscription_id})
	DeleteSubscription(w http.ResponseWriter, r *http.Request, subscriptionId openapi_types.UUID)

	// (GET /api/v1/tariffs)
	GetTariff(w http.ResponseWriter, r *http.Request, params GetTariffParams)
	// (GET /api/v1/tariffs/subscription)
	GetTariffBySubscription(w http.ResponseWriter, r *http.Request, params GetTariffBySubscriptionParams)
	// (GET /api/v1/tariffs/search)
	SearchTariffs(w http.ResponseWriter, r *http.Request, params SearchParams)
	// (POST /api/v1/tariffs)
	CreateTariff(w http.ResponseWriter, r *http.Request)
	// (PUT /api/v1/tariffs)
	UpdateTariff(w http.ResponseWriter, r *http.Request)
	// (DELETE /api/v1/tariffs)
	DeleteTariff(w http.ResponseWriter, r *http.Request, params DeleteTariffParams)

	// (GET /api/v1/accounts/users/me)
	GetMyAccounts(w http.ResponseWriter, r *http.Request)
	// (GET /api/v1/accounts/users)
	GetUserAccounts(w http.ResponseWriter, r *http.Request, params GetUserAccountsParams)
	// (GET /api/v1/accounts)
	GetAccount(w http.ResponseWriter, r *http.Request, params GetAccountParams)
	// (GET /api/v1/accounts/search)
	SearchAccounts(w http.ResponseWriter, r *http.Request, params SearchParams)
	// (GET /api/v1/accounts/{account_id}/statuses)
	GetAccountStatuses(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID)
	// (POST /api/v1/accounts)
	CreateAccount(w http.ResponseWriter, r *http.Request)
	// (PATCH /api/v1/accounts)
	UpdateAccount(w http.ResponseWriter, r *http.Request)
	// (DELETE /api/v1/accounts)
	DeleteAccount(w http.ResponseWriter, r *http.Request, params DeleteAccountParams)

	// (GET /api/v1/accounts/{account_id}/invoice)
	GetAccountInvoice(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID)
	// (POST /api/v1/accounts/invoice)
	CreateAccountInvoice(w http.ResponseWriter, r *http.Request)
	// (POST /api/v1/accounts/{account_id}/refund/{invoice_id})
	CreateAccountRefund(w http.ResponseWriter, r *http.Request, accountId openapi_types.UUID, invoiceId string)
}

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError is returned when a parameter fails to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

func (siw *ServerInterfaceWrapper) bindQuery(w http.ResponseWriter, r *http.Request, name string, required bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, required, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) bindPath(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) bindSearch(w http.ResponseWriter, r *http.Request) (SearchParams, bool) {
	var p SearchParams
	ok := siw.bindQuery(w, r, "page_number", false, &p.PageNumber) &&
		siw.bindQuery(w, r, "page_size", false, &p.PageSize) &&
		siw.bindQuery(w, r, "filter", false, &p.Filter)
	return p, ok
}

func (siw *ServerInterfaceWrapper) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	var p ApplyPaymentParams
	if siw.bindQuery(w, r, "account_id", true, &p.AccountId) &&
		siw.bindQuery(w, r, "tariff_id", true, &p.TariffId) &&
		siw.bindQuery(w, r, "payment_status", true, &p.PaymentStatus) &&
		siw.bindQuery(w, r, "invoice_id", false, &p.InvoiceId) {
		siw.Handler.ApplyPayment(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetSubscription(w http.ResponseWriter, r *http.Request) {
	var p GetSubscriptionParams
	if siw.bindQuery(w, r, "subscription_id", true, &p.SubscriptionId) {
		siw.Handler.GetSubscription(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) SearchSubscriptions(w http.ResponseWriter, r *http.Request) {
	if p, ok := siw.bindSearch(w, r); ok {
		siw.Handler.SearchSubscriptions(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	if siw.bindPath(w, r, "subscription_id", &id) {
		siw.Handler.DeleteSubscription(w, r, id)
	}
}

func (siw *ServerInterfaceWrapper) GetTariff(w http.ResponseWriter, r *http.Request) {
	var p GetTariffParams
	if siw.bindQuery(w, r, "tariff_id", true, &p.TariffId) {
		siw.Handler.GetTariff(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetTariffBySubscription(w http.ResponseWriter, r *http.Request) {
	var p GetTariffBySubscriptionParams
	if siw.bindQuery(w, r, "subscription_id", true, &p.SubscriptionId) &&
		siw.bindQuery(w, r, "date", false, &p.Date) {
		siw.Handler.GetTariffBySubscription(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) SearchTariffs(w http.ResponseWriter, r *http.Request) {
	if p, ok := siw.bindSearch(w, r); ok {
		siw.Handler.SearchTariffs(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	var p DeleteTariffParams
	if siw.bindQuery(w, r, "tariff_id", true, &p.TariffId) {
		siw.Handler.DeleteTariff(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetUserAccounts(w http.ResponseWriter, r *http.Request) {
	var p GetUserAccountsParams
	if siw.bindQuery(w, r, "user_id", true, &p.UserId) {
		siw.Handler.GetUserAccounts(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetAccount(w http.ResponseWriter, r *http.Request) {
	var p GetAccountParams
	if siw.bindQuery(w, r, "subscription_account_id", true, &p.SubscriptionAccountId) {
		siw.Handler.GetAccount(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) SearchAccounts(w http.ResponseWriter, r *http.Request) {
	if p, ok := siw.bindSearch(w, r); ok {
		siw.Handler.SearchAccounts(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetAccountStatuses(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	if siw.bindPath(w, r, "account_id", &id) {
		siw.Handler.GetAccountStatuses(w, r, id)
	}
}

func (siw *ServerInterfaceWrapper) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var p DeleteAccountParams
	if siw.bindQuery(w, r, "subscription_account_id", true, &p.SubscriptionAccountId) {
		siw.Handler.DeleteAccount(w, r, p)
	}
}

func (siw *ServerInterfaceWrapper) GetAccountInvoice(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	if siw.bindPath(w, r, "account_id", &id) {
		siw.Handler.GetAccountInvoice(w, r, id)
	}
}

func (siw *ServerInterfaceWrapper) CreateAccountRefund(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	var invoiceID string
	if siw.bindPath(w, r, "account_id", &id) && siw.bindPath(w, r, "invoice_id", &invoiceID) {
		siw.Handler.CreateAccountRefund(w, r, id, invoiceID)
	}
}

// RegisterAPIV1 mounts every /api/v1 route on r.
func RegisterAPIV1(r chi.Router, si ServerInterface) {
	w := &ServerInterfaceWrapper{
		Handler: si,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusBadRequest, ErrorModel{Detail: err.Error()})
		},
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/internal/hooks/billing/payment", w.ApplyPayment)

		r.Get("/subscriptions", w.GetSubscription)
		r.Get("/subscriptions/search", w.SearchSubscriptions)
		r.Post("/subscriptions", si.CreateSubscription)
		r.Patch("/subscriptions", si.UpdateSubscription)
		r.Delete("/subscriptions/{subscription_id}", w.DeleteSubscription)

		r.Get("/tariffs", w.GetTariff)
		r.Get("/tariffs/subscription", w.GetTariffBySubscription)
		r.Get("/tariffs/search", w.SearchTariffs)
		r.Post("/tariffs", si.CreateTariff)
		r.Put("/tariffs", si.UpdateTariff)
		r.Delete("/tariffs", w.DeleteTariff)

		r.Get("/accounts/users/me", si.GetMyAccounts)
		r.Get("/accounts/users", w.GetUserAccounts)
		r.Get("/accounts", w.GetAccount)
		r.Get("/accounts/search", w.SearchAccounts)
		r.Get("/accounts/{account_id}/statuses", w.GetAccountStatuses)
		r.Post("/accounts", si.CreateAccount)
		r.Patch("/accounts", si.UpdateAccount)
		r.Delete("/accounts", w.DeleteAccount)

		r.Get("/accounts/{account_id}/invoice", w.GetAccountInvoice)
		r.Post("/accounts/invoice", si.CreateAccountInvoice)
		r.Post("/accounts/{account_id}/refund/{invoice_id}", w.CreateAccountRefund)
	})
}
