package discount

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// PremiumUserStrategy даёт фиксированную долю скидки пользователям
// премиального тарифа независимо от суммы заказа.
type PremiumUserStrategy struct {
	rate decimal.Decimal
}

// NewPremiumUserStrategy создаёт стратегию с заданной ставкой.
func NewPremiumUserStrategy(rate decimal.Decimal) *PremiumUserStrategy {
	return &PremiumUserStrategy{rate: rate}
}

// Evaluate возвращает ставку для премиального пользователя, иначе ноль.
func (s *PremiumUserStrategy) Evaluate(user domain.User, _ decimal.Decimal) decimal.Decimal {
	if user.IsPremium() {
		return s.rate
	}
	return decimal.Zero
}

var _ Strategy = (*PremiumUserStrategy)(nil)
