package metrics

import (
	"context"

	"subscription-api/internal/domain/model"
	"subscription-api/internal/usecase"
)

// AccountHooks counts account lifecycle events.
type AccountHooks struct {
	usecase.NopHooks[model.Account]
}

var _ usecase.Hooks[model.Account] = AccountHooks{}

func (AccountHooks) AfterCreate(_ context.Context, a *model.Account) error {
	IncAccountCreated(a.Status)
	return nil
}

func (AccountHooks) AfterUpdate(_ context.Context, before, after *model.Account) error {
	if before.Status != after.Status {
		IncAccountTransition(before.Status, after.Status)
	}
	return nil
}

func (AccountHooks) AfterDelete(context.Context, *model.Account) error {
	IncAccountDeleted()
	return nil
}
