package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ProductFilter — эфемерный набор критериев выборки каталога.
// Каждый критерий опционален; присутствующие условия соединяются через AND.
type ProductFilter struct {
	// Name — подстрока названия, регистр не учитывается.
	Name string
	// MinPrice и MaxPrice — включительные границы цены; nil означает отсутствие границы.
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// OnlyAvailable оставляет только товары с положительным остатком.
	OnlyAvailable bool
	// IncludeDeleted открывает мягко удалённые товары; доступно только
	// привилегированному наблюдателю, для остальных фильтр обязан скрывать их.
	IncludeDeleted bool
}

// Matches проверяет товар против всех заданных критериев.
// Пустой фильтр пропускает всё, кроме мягко удалённых записей.
func (f ProductFilter) Matches(p Product) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.OnlyAvailable && !p.Available() {
		return false
	}
	if !f.IncludeDeleted && p.Deleted {
		return false
	}
	return true
}
