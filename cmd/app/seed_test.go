package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
)

type fakeSubs struct {
	byName  map[string]*model.Subscription
	lookErr error
}

func (f *fakeSubs) GetByName(_ context.Context, name string) (*model.Subscription, error) {
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	if s, ok := f.byName[name]; ok {
		return s, nil
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (f *fakeSubs) Create(_ context.Context, name string) (*model.Subscription, error) {
	s := &model.Subscription{ID: "sub-" + name, Name: name}
	f.byName[name] = s
	return s, nil
}

type fakeTariffs struct{ created []model.TariffCreate }

func (f *fakeTariffs) Create(_ context.Context, in model.TariffCreate) (*model.Tariff, error) {
	f.created = append(f.created, in)
	return &model.Tariff{ID: "t", SubscriptionID: in.SubscriptionID, Amount: in.Amount, Currency: in.Currency, Duration: in.Duration}, nil
}

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("should create missing subscriptions with their tariffs", func(t *testing.T) {
		subs := &fakeSubs{byName: map[string]*model.Subscription{
			"premium": {ID: "existing", Name: "premium"},
		}}
		tariffs := &fakeTariffs{}
		var out bytes.Buffer

		require.NoError(t, seedCatalog(ctx, &out, subs, tariffs, &logger))

		require.Len(t, tariffs.created, 2)
		for _, tc := range tariffs.created {
			assert.Equal(t, "sub-basic", tc.SubscriptionID)
			assert.Equal(t, "RUB", tc.Currency)
		}
		assert.Equal(t, 30*day, tariffs.created[1].Duration)
		assert.Contains(t, out.String(), "exists: premium (id=existing)")
		assert.Contains(t, out.String(), "seeded: basic (id=sub-basic)")
	})

	t.Run("should be a no-op the second time", func(t *testing.T) {
		subs := &fakeSubs{byName: map[string]*model.Subscription{}}
		tariffs := &fakeTariffs{}
		require.NoError(t, seedCatalog(ctx, &bytes.Buffer{}, subs, tariffs, &logger))
		n := len(tariffs.created)

		require.NoError(t, seedCatalog(ctx, &bytes.Buffer{}, subs, tariffs, &logger))
		assert.Len(t, tariffs.created, n)
	})

	t.Run("should stop on lookup failures", func(t *testing.T) {
		subs := &fakeSubs{lookErr: errors.New("db down")}
		err := seedCatalog(ctx, &bytes.Buffer{}, subs, &fakeTariffs{}, &logger)
		require.Error(t, err)
	})
}
