package usecase

import ports "subscription-api/internal/domain/ports/usecase"

var (
	_ ports.SubscriptionManager = (*SubscriptionUseCase)(nil)
	_ ports.TariffManager       = (*TariffUseCase)(nil)
	_ ports.AccountManager      = (*AccountUseCase)(nil)
	_ ports.PaymentManager      = (*PaymentUseCase)(nil)
)
