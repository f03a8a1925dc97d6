package discount

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderPriceStrategy даёт фиксированную долю скидки за крупный заказ:
// сумма заказа строго больше порога — действует ставка, иначе ноль.
type OrderPriceStrategy struct {
	minimumOrderPrice decimal.Decimal
	rate              decimal.Decimal
}

// NewOrderPriceStrategy создаёт стратегию с заданными порогом и ставкой.
func NewOrderPriceStrategy(minimumOrderPrice, rate decimal.Decimal) *OrderPriceStrategy {
	return &OrderPriceStrategy{
		minimumOrderPrice: minimumOrderPrice,
		rate:              rate,
	}
}

// Evaluate возвращает ставку, если сумма заказа превышает порог.
func (s *OrderPriceStrategy) Evaluate(_ domain.User, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(s.minimumOrderPrice) {
		return s.rate
	}
	return decimal.Zero
}

var _ Strategy = (*OrderPriceStrategy)(nil)
