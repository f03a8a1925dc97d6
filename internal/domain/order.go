package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem представляет одну позицию заказа.
// Позиция принадлежит только своему заказу и отдельно не существует.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — ссылка на товар каталога.
	ProductID int64
	// ProductName — название товара на момент заказа.
	ProductName string
	// Quantity — количество купленных единиц.
	Quantity int
	// UnitPrice — снимок цены за единицу на момент оформления;
	// последующие изменения цены товара на заказ не влияют.
	UnitPrice decimal.Decimal
	// Discount — денежная величина скидки по этой позиции.
	Discount decimal.Decimal
	// TotalPrice — итог позиции после вычета скидки.
	TotalPrice decimal.Decimal
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Subtotal возвращает «сырую» стоимость позиции до скидки.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует позиции и итоговую стоимость оформленного заказа.
// Заказ создаётся только в результате успешного оформления и после
// сохранения не изменяется.
type Order struct {
	ID         string
	UserID     int64
	Items      []OrderItem
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// ValidateInvariants проверяет согласованность заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == 0 {
		errs = append(errs, ErrOrderUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrOrderItemsRequired)
	}
	if o.TotalPrice.IsNegative() {
		errs = append(errs, ErrOrderTotalNegative)
	}

	// Сверяем итог заказа с суммой позиций, арифметика точная, без округления.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQuantityInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if item.Discount.IsNegative() {
			errs = append(errs, ErrItemDiscountInvalid)
		}
		if !item.Subtotal().Sub(item.Discount).Equal(item.TotalPrice) {
			errs = append(errs, ErrItemTotalMismatch)
		}
		calc = calc.Add(item.TotalPrice)
	}
	if !calc.Equal(o.TotalPrice) {
		errs = append(errs, ErrOrderTotalMismatch)
	}

	return errs
}
