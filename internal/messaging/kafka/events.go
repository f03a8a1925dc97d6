package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События заказов
	EventTypeOrderPlaced EventType = "order.placed"

	// События каталога
	EventTypeProductCreated EventType = "product.created"
	EventTypeProductUpdated EventType = "product.updated"
	EventTypeProductDeleted EventType = "product.deleted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Типы агрегатов в outbox-сообщениях; по ним события маршрутизируются по топикам.
const (
	AggregateTypeOrder   = "order"
	AggregateTypeProduct = "product"
)

// OrderPlacedEvent — полезная нагрузка события об оформленном заказе.
type OrderPlacedEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	UserID     int64                  `json:"user_id"`
	TotalPrice string                 `json:"total_price"`
	ItemCount  int                    `json:"item_count"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderPlacedEvent создаёт событие об оформленном заказе.
func NewOrderPlacedEvent(orderID string, userID int64, totalPrice string, itemCount int) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		EventType:  EventTypeOrderPlaced,
		OrderID:    orderID,
		UserID:     userID,
		TotalPrice: totalPrice,
		ItemCount:  itemCount,
		Timestamp:  time.Now().UTC(),
	}
}

// ProductEvent — полезная нагрузка события об изменении каталога.
// Для product.deleted заполняется только идентификатор.
type ProductEvent struct {
	EventType EventType `json:"event_type"`
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name,omitempty"`
	Price     string    `json:"price,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProductEvent создаёт событие об изменении товара каталога.
func NewProductEvent(eventType EventType, productID int64, name, price string, quantity int) *ProductEvent {
	return &ProductEvent{
		EventType: eventType,
		ProductID: productID,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		Timestamp: time.Now().UTC(),
	}
}
