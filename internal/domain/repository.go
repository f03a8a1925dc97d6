package domain

import (
	"context"
	"time"
)

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// FindByID возвращает товар по идентификатору или ErrProductNotFound, если его нет.
	// Мягко удалённые записи возвращаются наравне с остальными: видимость
	// решает вызывающая сторона через ProductFilter.
	FindByID(ctx context.Context, id int64) (Product, error)
	// FindAllMatching возвращает товары, удовлетворяющие фильтру.
	FindAllMatching(ctx context.Context, filter ProductFilter) ([]Product, error)
	// Create сохраняет набор новых товаров и возвращает их с присвоенными ID.
	Create(ctx context.Context, products []Product) ([]Product, error)
	// Update перезаписывает атрибуты товара, не трогая флаг удаления:
	// им распоряжается только SoftDelete.
	Update(ctx context.Context, product Product) (Product, error)
	// SoftDelete помечает товар удалённым, физически запись не исчезает.
	SoftDelete(ctx context.Context, id int64) error
	// DecrementStock атомарно уменьшает остаток на qty. Возвращает
	// InsufficientStockError, если остатка не хватает в момент списания:
	// остаток никогда не уходит в минус.
	DecrementStock(ctx context.Context, id int64, qty int) (Product, error)
	// IncrementStock атомарно возвращает qty единиц на остаток (компенсация).
	IncrementStock(ctx context.Context, id int64, qty int) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе со всеми позициями как единое целое:
	// либо записывается весь агрегат, либо ничего.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми,
	// с опциональным ограничением на количество.
	ListByUser(ctx context.Context, userID int64, limit int) ([]Order, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
