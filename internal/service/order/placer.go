// Package order реализует workflow оформления заказа: валидация остатков,
// расчёт скидок, списание со склада и сохранение агрегата.
package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/discount"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

const (
	rejectReasonInvalidRequest    = "invalid_request"
	rejectReasonProductNotFound   = "product_not_found"
	rejectReasonInsufficientStock = "insufficient_stock"
	rejectReasonStorage           = "storage_error"
)

// ItemRequest — запрошенная позиция: товар и количество.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// preparedItem — промежуточное состояние позиции между валидацией и фиксацией.
type preparedItem struct {
	product  domain.Product
	quantity int
	subtotal decimal.Decimal
}

// Placer оркестрирует оформление заказа от запроса до сохранённого агрегата.
type Placer struct {
	products  domain.ProductRepository
	orders    domain.OrderRepository
	guard     *inventory.Guard
	discounts *discount.Registry
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
}

// Option настраивает Placer.
type Option func(*Placer)

// WithOutbox включает постановку события order.placed в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(p *Placer) {
		p.outbox = outbox
	}
}

// WithMetrics включает метрики оформления.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(p *Placer) {
		p.metrics = m
	}
}

// NewPlacer создаёт рабочий экземпляр движка оформления.
func NewPlacer(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	guard *inventory.Guard,
	discounts *discount.Registry,
	logger *log.Entry,
	options ...Option,
) *Placer {
	if logger == nil {
		logger = log.WithField("component", "order-placer")
	}
	p := &Placer{
		products:  products,
		orders:    orders,
		guard:     guard,
		discounts: discounts,
		logger:    logger,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Place оформляет заказ пользователя на запрошенные позиции.
//
// Последовательность: сначала все позиции резолвятся и проверяются на остаток
// (двухфазно: validate-all, затем commit-all), считается сумма заказа и единая
// суммарная доля скидки, скидка раскладывается по позициям пропорционально их
// «сырой» стоимости. Только после этого выполняются списания со склада и
// сохранение агрегата. Любая ошибка до списаний оставляет склад и хранилище
// нетронутыми; ошибка в середине списаний компенсируется возвратом уже
// списанных остатков, частичных заказов не бывает.
func (p *Placer) Place(ctx context.Context, user domain.User, requested []ItemRequest) (domain.Order, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.RecordPlacementStarted()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordPlacementFinished(time.Since(start))
		}
	}()

	logger := p.logger.WithFields(log.Fields{
		"user_id": user.ID,
		"items":   len(requested),
	})
	logger.Info("starting order placement")

	if err := validateRequest(requested); err != nil {
		p.reject(rejectReasonInvalidRequest)
		return domain.Order{}, err
	}

	// Фаза 1: резолвим товары и проверяем остатки, ничего не меняя.
	prepared, subtotal, err := p.prepare(ctx, requested, logger)
	if err != nil {
		return domain.Order{}, err
	}

	fraction := p.discounts.CombinedFraction(user, subtotal)

	order := p.buildOrder(user, prepared, fraction)
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		logger.WithField("violations", errs).Error("built order violates invariants")
		p.reject(rejectReasonInvalidRequest)
		return domain.Order{}, errs[0]
	}

	// Фаза 2: списываем остатки в порядке запроса и сохраняем агрегат.
	if err := p.commit(ctx, &order, prepared, logger); err != nil {
		return domain.Order{}, err
	}

	p.enqueuePlacedEvent(order, logger)

	if p.metrics != nil {
		total, _ := order.TotalPrice.Float64()
		frac, _ := fraction.Float64()
		p.metrics.RecordPlacementCompleted(total, frac)
	}

	logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"total_price": order.TotalPrice.String(),
		"discount":    fraction.String(),
	}).Info("order placed successfully")

	return order, nil
}

func validateRequest(requested []ItemRequest) error {
	if len(requested) == 0 {
		return domain.ErrOrderItemsRequired
	}
	for _, item := range requested {
		if item.Quantity < 1 {
			return domain.ErrItemQuantityInvalid
		}
	}
	return nil
}

func (p *Placer) prepare(ctx context.Context, requested []ItemRequest, logger *log.Entry) ([]preparedItem, decimal.Decimal, error) {
	prepared := make([]preparedItem, 0, len(requested))
	subtotal := decimal.Zero

	for _, item := range requested {
		product, err := p.products.FindByID(ctx, item.ProductID)
		if err != nil {
			logger.WithError(err).WithField("product_id", item.ProductID).Warn("product lookup failed")
			if domain.IsInsufficientStock(err) {
				p.reject(rejectReasonInsufficientStock)
			} else {
				p.reject(rejectReasonProductNotFound)
			}
			return nil, decimal.Zero, err
		}

		if !p.guard.CheckAvailability(product, item.Quantity) {
			logger.WithFields(log.Fields{
				"product_id": product.ID,
				"requested":  item.Quantity,
				"available":  product.Quantity,
			}).Warn("order rejected: insufficient stock")
			p.reject(rejectReasonInsufficientStock)
			return nil, decimal.Zero, &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   item.Quantity,
				Available:   product.Quantity,
			}
		}

		itemSubtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(itemSubtotal)
		prepared = append(prepared, preparedItem{
			product:  product,
			quantity: item.Quantity,
			subtotal: itemSubtotal,
		})
	}

	return prepared, subtotal, nil
}

// buildOrder собирает агрегат заказа. Скидка применяется к каждой позиции
// независимо: её денежная величина — доля от «сырой» стоимости самой позиции,
// итог заказа — точная сумма итогов позиций.
func (p *Placer) buildOrder(user domain.User, prepared []preparedItem, fraction decimal.Decimal) domain.Order {
	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(prepared))
	total := decimal.Zero

	for _, item := range prepared {
		itemDiscount := item.subtotal.Mul(fraction).Round(2)
		itemTotal := item.subtotal.Sub(itemDiscount)

		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   item.product.ID,
			ProductName: item.product.Name,
			Quantity:    item.quantity,
			UnitPrice:   item.product.Price,
			Discount:    itemDiscount,
			TotalPrice:  itemTotal,
			CreatedAt:   now,
		})
		total = total.Add(itemTotal)
	}

	return domain.Order{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Items:      items,
		TotalPrice: total,
		CreatedAt:  now,
	}
}

func (p *Placer) commit(ctx context.Context, order *domain.Order, prepared []preparedItem, logger *log.Entry) error {
	// Списания идут в порядке запроса; guard перепроверяет остаток в момент
	// каждого списания, поэтому конкурентное оформление того же товара не
	// уводит остаток в минус, а проигравший заказ отклоняется целиком.
	reduced := make([]preparedItem, 0, len(prepared))
	for _, item := range prepared {
		if _, err := p.guard.Reduce(ctx, item.product.ID, item.quantity); err != nil {
			p.rollbackReduced(ctx, reduced, logger)
			if domain.IsInsufficientStock(err) {
				p.reject(rejectReasonInsufficientStock)
			} else {
				p.reject(rejectReasonStorage)
			}
			return err
		}
		reduced = append(reduced, item)
	}

	saved, err := p.orders.Create(ctx, *order)
	if err != nil {
		logger.WithError(err).Error("order persist failed, rolling back stock")
		p.rollbackReduced(ctx, reduced, logger)
		p.reject(rejectReasonStorage)
		return err
	}
	*order = saved

	return nil
}

// rollbackReduced возвращает на склад уже списанные позиции сорвавшегося заказа.
// Компенсация обязана дойти до конца, даже когда срыв вызван отменой контекста
// вызывающего (обрыв клиента посреди списаний), поэтому работает на контексте
// без отмены: иначе уже выполненные списания останутся на складе навсегда.
func (p *Placer) rollbackReduced(ctx context.Context, reduced []preparedItem, logger *log.Entry) {
	ctx = context.WithoutCancel(ctx)
	for _, item := range reduced {
		if err := p.guard.Restore(ctx, item.product.ID, item.quantity); err != nil {
			logger.WithError(err).WithField("product_id", item.product.ID).
				Error("stock compensation failed, manual reconciliation required")
		}
	}
}

func (p *Placer) enqueuePlacedEvent(order domain.Order, logger *log.Entry) {
	if p.outbox == nil {
		return
	}

	event := kafka.NewOrderPlacedEvent(order.ID, order.UserID, order.TotalPrice.String(), len(order.Items))
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WithError(err).Warn("failed to marshal order.placed event")
		return
	}

	if _, err := p.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     string(kafka.EventTypeOrderPlaced),
		Payload:       payload,
	}); err != nil {
		logger.WithError(err).Warn("failed to enqueue order.placed event")
	}
}

func (p *Placer) reject(reason string) {
	if p.metrics != nil {
		p.metrics.RecordPlacementRejected(reason)
	}
}
