package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceNegative = errors.New("product price must be non-negative")
	// Ошибка отрицательного складского остатка.
	ErrProductQuantityNegative = errors.New("product quantity must be non-negative")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// Ошибка отсутствующего владельца заказа.
	ErrOrderUserRequired = errors.New("order user is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrOrderItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной итоговой стоимости заказа.
	ErrOrderTotalNegative = errors.New("order total must be non-negative")
	// Ошибка несоответствия итога заказа и сумм позиций.
	ErrOrderTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrItemQuantityInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка отрицательной цены позиции.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// Ошибка отрицательной скидки позиции.
	ErrItemDiscountInvalid = errors.New("item discount must be non-negative")
	// Ошибка несоответствия итога позиции цене, количеству и скидке.
	ErrItemTotalMismatch = errors.New("item total does not match unit price and discount")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientStock сигнализирует о нехватке остатка под запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductConflict сигнализирует о конфликте при сохранении товара.
	ErrProductConflict = errors.New("product conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError уточняет ErrInsufficientStock: называет товар,
// из-за которого отклонён весь заказ.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (id=%d): requested %d, available %d",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}
