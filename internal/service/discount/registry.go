package discount

import (
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Defaults для скидочных программ; переопределяются конфигурацией.
const (
	DefaultMinimumOrderPrice = "500.00"
	DefaultOrderPriceRate    = "0.05"
	DefaultPremiumUserRate   = "0.10"
)

// Registry хранит набор независимых скидочных стратегий.
// Итоговая доля — арифметическая сумма вкладов, поэтому порядок
// стратегий в наборе ни на что не влияет.
type Registry struct {
	strategies []Strategy
	logger     *log.Entry
}

// NewRegistry создаёт реестр поверх переданных стратегий.
func NewRegistry(logger *log.Entry, strategies ...Strategy) *Registry {
	if logger == nil {
		logger = log.WithField("component", "discount-registry")
	}
	return &Registry{
		strategies: strategies,
		logger:     logger,
	}
}

// NewDefaultRegistry собирает реестр со встроенными стратегиями и значениями по умолчанию.
func NewDefaultRegistry(logger *log.Entry) *Registry {
	return NewRegistry(logger,
		NewOrderPriceStrategy(decimal.RequireFromString(DefaultMinimumOrderPrice), decimal.RequireFromString(DefaultOrderPriceRate)),
		NewPremiumUserStrategy(decimal.RequireFromString(DefaultPremiumUserRate)),
	)
}

// CombinedFraction возвращает суммарную долю скидки для пары (пользователь, сумма заказа).
// Сумма намеренно не ограничивается сверху: политика поведения при
// совокупной доле больше единицы не определена, поэтому такие случаи
// только логируются, а не «чинятся» молча.
func (r *Registry) CombinedFraction(user domain.User, subtotal decimal.Decimal) decimal.Decimal {
	combined := decimal.Zero
	for _, strategy := range r.strategies {
		combined = combined.Add(strategy.Evaluate(user, subtotal))
	}

	if combined.GreaterThan(decimal.NewFromInt(1)) {
		r.logger.WithFields(log.Fields{
			"user_id":  user.ID,
			"subtotal": subtotal.String(),
			"fraction": combined.String(),
		}).Warn("combined discount fraction exceeds 1.0")
	}

	return combined
}

// Size возвращает число зарегистрированных стратегий.
func (r *Registry) Size() int {
	return len(r.strategies)
}
