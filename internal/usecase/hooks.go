package usecase

import (
	"context"
	"errors"
)

// Hooks observes the lifecycle of an entity managed by a use case.
// BeforeDelete may veto a delete by returning an error. Errors from the
// After* callbacks are logged by the caller because the write is already committed.
type Hooks[T any] interface {
	AfterCreate(ctx context.Context, created *T) error
	AfterUpdate(ctx context.Context, before, after *T) error
	BeforeDelete(ctx context.Context, target *T) error
	AfterDelete(ctx context.Context, deleted *T) error
}

// NopHooks is embeddable by observers interested in a subset of callbacks.
type NopHooks[T any] struct{}

func (NopHooks[T]) AfterCreate(context.Context, *T) error     { return nil }
func (NopHooks[T]) AfterUpdate(context.Context, *T, *T) error { return nil }
func (NopHooks[T]) BeforeDelete(context.Context, *T) error    { return nil }
func (NopHooks[T]) AfterDelete(context.Context, *T) error     { return nil }

// HookList fans a callback out to every registered observer.
type HookList[T any] []Hooks[T]

var _ Hooks[struct{}] = HookList[struct{}]{}

func (l HookList[T]) AfterCreate(ctx context.Context, created *T) error {
	var errs []error
	for _, h := range l {
		errs = append(errs, h.AfterCreate(ctx, created))
	}
	return errors.Join(errs...)
}

func (l HookList[T]) AfterUpdate(ctx context.Context, before, after *T) error {
	var errs []error
	for _, h := range l {
		errs = append(errs, h.AfterUpdate(ctx, before, after))
	}
	return errors.Join(errs...)
}

// BeforeDelete stops at the first observer that vetoes.
func (l HookList[T]) BeforeDelete(ctx context.Context, target *T) error {
	for _, h := range l {
		if err := h.BeforeDelete(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

func (l HookList[T]) AfterDelete(ctx context.Context, deleted *T) error {
	var errs []error
	for _, h := range l {
		errs = append(errs, h.AfterDelete(ctx, deleted))
	}
	return errors.Join(errs...)
}
