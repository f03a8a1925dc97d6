// Package app собирает витрину из составных частей: хранилище, кеш,
// скидки, inventory guard, оформление заказов, HTTP API и воркеры.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/api"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/discount"
	svcidempotency "github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	svcoutbox "github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Run запускает витрину и блокируется до отмены ctx или фатальной ошибки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	discounts := buildDiscountRegistry(cfg.Discounts, logger)
	guard := inventory.NewGuard(deps.Products, logger.WithField("component", "inventory-guard"))
	orderMetrics := metrics.NewOrderMetrics()

	placer := order.NewPlacer(
		deps.Products,
		deps.Orders,
		guard,
		discounts,
		logger.WithField("component", "order-placer"),
		order.WithOutbox(deps.Outbox),
		order.WithMetrics(orderMetrics),
	)

	catalogSvc := catalog.NewService(deps.Products, deps.Cache, logger.WithField("component", "catalog"),
		catalog.WithOutbox(deps.Outbox),
	)

	healthHandler := health.NewHandler(version.String())
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", health.NewCheckFunc("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return deps.Store.Ping(checkCtx)
		}))
	}

	router := api.NewRouter(api.RouterOptions{
		Products:    api.NewProductsHandler(catalogSvc, logger.WithField("component", "products-handler")),
		Orders:      api.NewOrdersHandler(placer, deps.Orders, logger.WithField("component", "orders-handler")),
		Health:      healthHandler,
		Idempotency: api.IdempotencyMiddleware(deps.Idempotency, cfg.Idempotency.TTL, logger.WithField("component", "idempotency-middleware")),
	})

	// Фоновые воркеры живут до отмены ctx.
	if deps.Producer != nil {
		publisher := kafka.NewOutboxPublisher(deps.Producer, kafka.TopicOrderEvents)
		dlqPublisher := kafka.NewDLQPublisher(deps.Producer)

		worker := svcoutbox.NewWorker(deps.Outbox, publisher,
			svcoutbox.WithLogger(logger.WithField("component", "outbox-worker")),
			svcoutbox.WithDLQPublisher(dlqPublisher),
			svcoutbox.WithPollInterval(cfg.Outbox.PollInterval),
			svcoutbox.WithBatchSize(cfg.Outbox.BatchSize),
			svcoutbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
		)
		go worker.Run(ctx)
	} else {
		logger.Info("kafka is not configured, outbox worker is disabled")
	}

	cleanup := svcidempotency.NewCleanupWorker(deps.Idempotency,
		svcidempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		svcidempotency.WithInterval(cfg.Idempotency.CleanupInterval),
	)
	go cleanup.Run(ctx)

	metricsSrv := startMetricsServer(ctx, cfg.HTTPServer.MetricsAddr, logger)
	defer shutdownHTTP(metricsSrv, logger)

	apiSrv := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPServer.Addr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildDiscountRegistry собирает реестр скидок из конфигурации;
// некорректные значения заменяются значениями по умолчанию.
func buildDiscountRegistry(cfg Discounts, logger *log.Entry) *discount.Registry {
	minimum := parseDecimalOrDefault(cfg.MinimumOrderPrice, discount.DefaultMinimumOrderPrice, "minimum_order_price", logger)
	orderRate := parseDecimalOrDefault(cfg.OrderPriceRate, discount.DefaultOrderPriceRate, "order_price_rate", logger)
	premiumRate := parseDecimalOrDefault(cfg.PremiumUserRate, discount.DefaultPremiumUserRate, "premium_user_rate", logger)

	return discount.NewRegistry(
		logger.WithField("component", "discount-registry"),
		discount.NewOrderPriceStrategy(minimum, orderRate),
		discount.NewPremiumUserStrategy(premiumRate),
	)
}

func parseDecimalOrDefault(raw, fallback, name string, logger *log.Entry) decimal.Decimal {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		logger.WithError(err).WithField("setting", name).Warn("invalid discount setting, using default")
		return decimal.RequireFromString(fallback)
	}
	return value
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/livez", health.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
