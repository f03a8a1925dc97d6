// Package inventory содержит guard — единственную точку, которой
// разрешено уменьшать складской остаток товара.
package inventory

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Guard контролирует списание складских остатков.
// Все списания идут через Reduce; остаток никогда не уходит в минус.
type Guard struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewGuard создаёт guard поверх репозитория каталога.
func NewGuard(products domain.ProductRepository, logger *log.Entry) *Guard {
	if logger == nil {
		logger = log.WithField("component", "inventory-guard")
	}
	return &Guard{
		products: products,
		logger:   logger,
	}
}

// CheckAvailability сообщает, хватает ли остатка под запрошенное количество.
func (g *Guard) CheckAvailability(product domain.Product, quantity int) bool {
	return quantity > 0 && product.Quantity >= quantity
}

// Reduce списывает quantity единиц товара. Остаток перепроверяется в момент
// самого списания: даже после более ранней валидации другой заказ мог успеть
// израсходовать остаток. При нехватке возвращается InsufficientStockError,
// а остаток остаётся нетронутым.
func (g *Guard) Reduce(ctx context.Context, productID int64, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, domain.ErrItemQuantityInvalid
	}

	product, err := g.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		if domain.IsInsufficientStock(err) {
			g.logger.WithFields(log.Fields{
				"product_id": productID,
				"quantity":   quantity,
			}).Warn("stock reduce rejected at commit time")
		}
		return domain.Product{}, err
	}

	g.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"quantity":   quantity,
		"remaining":  product.Quantity,
	}).Debug("stock reduced")

	return product, nil
}

// Restore возвращает quantity единиц на остаток. Используется как компенсация,
// когда заказ сорвался после части уже применённых списаний.
func (g *Guard) Restore(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return domain.ErrItemQuantityInvalid
	}

	if _, err := g.products.IncrementStock(ctx, productID, quantity); err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"quantity":   quantity,
		}).Error("stock restore failed")
		return err
	}

	return nil
}
