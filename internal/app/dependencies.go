package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/migrations"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// Dependencies содержит все внешние зависимости приложения.
// PostgreSQL, Redis и Kafka опциональны: без DSN работает
// in-memory хранилище, без адресов — без кеша и событий.
type Dependencies struct {
	Products    domain.ProductRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	Cache    catalog.Cache
	Producer *kafka.Producer
	Store    *postgres.Store

	redisCache *cache.Cache
	logger     *log.Entry
}

// NewDependencies создаёт и инициализирует зависимости по конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{logger: logger}

	if cfg.StorageDSN != "" {
		store, err := postgres.Open(ctx, cfg.StorageDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.Up(store.DB()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		deps.Store = store
		deps.Products = postgres.NewProductRepository(store)
		deps.Orders = postgres.NewOrderRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		logger.Info("using postgres storage")
	} else {
		deps.Products = memory.NewProductRepository()
		deps.Orders = memory.NewOrderRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		redisCache, err := cache.New(ctx, cache.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxRetries:  cfg.Redis.MaxRetries,
			DialTimeout: cfg.Redis.DialTimeout,
			Timeout:     cfg.Redis.Timeout,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to connect to redis, continuing without catalog cache")
		} else {
			deps.redisCache = redisCache
			deps.Cache = redisCache
			logger.WithField("addr", cfg.Redis.Addr).Info("redis catalog cache initialized")
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without events")
		} else {
			deps.Producer = producer
			logger.WithField("brokers", cfg.Kafka.Brokers).Info("kafka producer initialized")
		}
	}

	return deps, nil
}

// Close останавливает подключения в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.Producer != nil {
		if err := d.Producer.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.redisCache != nil {
		if err := d.redisCache.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close redis connection")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close postgres connection")
		}
	}
}
