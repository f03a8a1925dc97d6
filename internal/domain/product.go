package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога.
type Product struct {
	// ID — числовой идентификатор товара.
	ID int64
	// Name — название товара, по нему работает поиск каталога.
	Name string
	// Description — произвольное описание.
	Description string
	// Price — цена за единицу, точная десятичная величина с двумя знаками.
	Price decimal.Decimal
	// Quantity — складской остаток; после любой зафиксированной операции не бывает отрицательным.
	Quantity int
	// Deleted — флаг мягкого удаления: запись остаётся в хранилище,
	// но скрыта из непривилегированных выборок.
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available сообщает, есть ли товар в наличии.
func (p Product) Available() bool {
	return p.Quantity > 0
}

// ValidateInvariants проверяет базовые инварианты товара и возвращает список замечаний.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrProductPriceNegative)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrProductQuantityNegative)
	}

	return errs
}
