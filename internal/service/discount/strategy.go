// Package discount содержит скидочные стратегии и реестр, который
// сводит их вклады в одну суммарную долю скидки для заказа.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Strategy вычисляет вклад одной скидочной программы.
// Реализация обязана быть чистой функцией от пользователя и суммы заказа:
// никакого разделяемого состояния, результат не зависит от порядка вызовов.
type Strategy interface {
	// Evaluate возвращает долю скидки в диапазоне [0, 1] для пары
	// (пользователь, сумма заказа до скидок).
	Evaluate(user domain.User, subtotal decimal.Decimal) decimal.Decimal
}

// StrategyFunc адаптирует обычную функцию под Strategy.
type StrategyFunc func(user domain.User, subtotal decimal.Decimal) decimal.Decimal

// Evaluate вызывает f.
func (f StrategyFunc) Evaluate(user domain.User, subtotal decimal.Decimal) decimal.Decimal {
	return f(user, subtotal)
}
