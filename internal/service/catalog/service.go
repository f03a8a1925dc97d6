// Package catalog реализует use-cases каталога: выборки с ролевой
// видимостью и управление товарами (создание, правка, мягкое удаление).
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	cacheKeyListRestricted = "catalog:list:restricted"
	cacheKeyListPrivileged = "catalog:list:privileged"

	defaultCacheTTL = 30 * time.Second
)

// Cache описывает методы кэширования выборок каталога.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SearchCriteria — входные критерии поиска по каталогу.
// Видимость мягко удалённых записей здесь не задаётся: она выводится из
// роли наблюдателя, переданной явным параметром use-case.
type SearchCriteria struct {
	Name          string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	OnlyAvailable bool
}

// NewProduct — атрибуты создаваемого товара.
type NewProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
}

// ProductPatch — частичное обновление товара; nil-поле остаётся без изменений.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
}

// Service реализует операции каталога поверх репозитория товаров.
type Service struct {
	products domain.ProductRepository
	cache    Cache
	outbox   domain.OutboxRepository
	cacheTTL time.Duration
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает постановку событий product.* в transactional outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// NewService создаёт сервис каталога. Кеш опционален: nil отключает кэширование.
func NewService(products domain.ProductRepository, cache Cache, logger *log.Entry, options ...Option) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	s := &Service{
		products: products,
		cache:    cache,
		cacheTTL: defaultCacheTTL,
		logger:   logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// List возвращает каталог целиком с учётом видимости наблюдателя.
// Выборка без критериев кэшируется на короткий срок по ключу видимости.
func (s *Service) List(ctx context.Context, privilegedViewer bool) ([]domain.Product, error) {
	key := cacheKeyListRestricted
	if privilegedViewer {
		key = cacheKeyListPrivileged
	}

	if s.cache != nil {
		var cached []domain.Product
		if ok, err := s.cache.Get(key, &cached); err != nil {
			s.logger.WithError(err).Warn("catalog cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	products, err := s.products.FindAllMatching(ctx, domain.ProductFilter{
		IncludeDeleted: privilegedViewer,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(key, products, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("catalog cache write failed")
		}
	}

	return products, nil
}

// Search возвращает товары по критериям с учётом видимости наблюдателя.
func (s *Service) Search(ctx context.Context, criteria SearchCriteria, privilegedViewer bool) ([]domain.Product, error) {
	products, err := s.products.FindAllMatching(ctx, domain.ProductFilter{
		Name:           criteria.Name,
		MinPrice:       criteria.MinPrice,
		MaxPrice:       criteria.MaxPrice,
		OnlyAvailable:  criteria.OnlyAvailable,
		IncludeDeleted: privilegedViewer,
	})
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// FindByID возвращает товар по идентификатору.
func (s *Service) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

// CreateProducts добавляет набор товаров в каталог.
func (s *Service) CreateProducts(ctx context.Context, items []NewProduct) ([]domain.Product, error) {
	if len(items) == 0 {
		return nil, domain.ErrProductNameRequired
	}

	now := time.Now().UTC()
	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		product := domain.Product{
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Quantity:    item.Quantity,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if errs := product.ValidateInvariants(); len(errs) > 0 {
			return nil, errs[0]
		}
		products = append(products, product)
	}

	created, err := s.products.Create(ctx, products)
	if err != nil {
		return nil, fmt.Errorf("create products: %w", err)
	}

	s.invalidateListings()
	for _, product := range created {
		s.enqueueProductEvent(kafka.EventTypeProductCreated, product)
	}
	s.logger.WithField("count", len(created)).Info("products created")
	return created, nil
}

// UpdateProduct применяет частичное обновление к товару.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Quantity != nil {
		product.Quantity = *patch.Quantity
	}
	product.UpdatedAt = time.Now().UTC()

	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errs[0]
	}

	updated, err := s.products.Update(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	s.invalidateListings()
	s.enqueueProductEvent(kafka.EventTypeProductUpdated, updated)
	return updated, nil
}

// DeleteProduct мягко удаляет товар: запись остаётся в хранилище и видна
// только привилегированным наблюдателям.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.invalidateListings()
	s.enqueueProductEvent(kafka.EventTypeProductDeleted, domain.Product{ID: id})
	s.logger.WithField("product_id", id).Info("product soft-deleted")
	return nil
}

// enqueueProductEvent ставит событие каталога в outbox. Сбой постановки не
// срывает саму операцию: каталог уже изменён, теряется только уведомление.
func (s *Service) enqueueProductEvent(eventType kafka.EventType, product domain.Product) {
	if s.outbox == nil {
		return
	}

	name, price, quantity := product.Name, product.Price.StringFixed(2), product.Quantity
	if eventType == kafka.EventTypeProductDeleted {
		name, price, quantity = "", "", 0
	}

	payload, err := json.Marshal(kafka.NewProductEvent(eventType, product.ID, name, price, quantity))
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal catalog event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeProduct,
		AggregateID:   strconv.FormatInt(product.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Warn("failed to enqueue catalog event")
	}
}

func (s *Service) invalidateListings() {
	if s.cache == nil {
		return
	}
	for _, key := range []string{cacheKeyListRestricted, cacheKeyListPrivileged} {
		if err := s.cache.Invalidate(key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("catalog cache invalidate failed")
		}
	}
}
