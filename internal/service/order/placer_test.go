package order

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/discount"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	placer   *Placer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()

	placer := NewPlacer(
		products,
		orders,
		inventory.NewGuard(products, nil),
		discount.NewDefaultRegistry(nil),
		nil,
		WithOutbox(outbox),
	)

	return &fixture{
		products: products,
		orders:   orders,
		outbox:   outbox,
		placer:   placer,
	}
}

func (f *fixture) seed(t *testing.T, name, price string, quantity int) domain.Product {
	t.Helper()

	created, err := f.products.Create(context.Background(), []domain.Product{
		{Name: name, Price: money(price), Quantity: quantity},
	})
	require.NoError(t, err)
	return created[0]
}

func (f *fixture) stockOf(t *testing.T, id int64) int {
	t.Helper()

	product, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return product.Quantity
}

func TestPlacer_Place_RegularUserNoDiscount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Apple", "100.00", 10)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	placed, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	require.True(t, placed.TotalPrice.Equal(money("200.00")),
		"expected total 200.00, got %s", placed.TotalPrice)
	require.Len(t, placed.Items, 1)
	require.True(t, placed.Items[0].Discount.IsZero())
	require.Equal(t, 8, f.stockOf(t, product.ID))

	saved, err := f.orders.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	require.Empty(t, saved.ValidateInvariants())
}

func TestPlacer_Place_PremiumLargeOrderCombinedDiscount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Laptop", "500.00", 5)
	user := domain.User{ID: 2, Role: domain.RolePremium}

	// Сумма 1000.00: 0.05 за крупный заказ + 0.10 премиальному = 0.15.
	placed, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	require.True(t, placed.TotalPrice.Equal(money("850.00")),
		"expected total 850.00, got %s", placed.TotalPrice)
	require.True(t, placed.Items[0].Discount.Equal(money("150.00")))
	require.Equal(t, 3, f.stockOf(t, product.ID))
}

func TestPlacer_Place_InsufficientStockRejectsWholeOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Apple", "100.00", 10)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	_, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 12},
	})
	require.True(t, domain.IsInsufficientStock(err), "expected insufficient stock, got %v", err)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, product.ID, stockErr.ProductID)
	require.Equal(t, 12, stockErr.Requested)
	require.Equal(t, 10, stockErr.Available)

	require.Equal(t, 10, f.stockOf(t, product.ID))

	orders, err := f.orders.ListByUser(context.Background(), user.ID, 0)
	require.NoError(t, err)
	require.Empty(t, orders, "no order must be persisted on rejection")
}

func TestPlacer_Place_MultiItemRejectionLeavesAllStockUntouched(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	apple := f.seed(t, "Apple", "100.00", 10)
	pear := f.seed(t, "Pear", "50.00", 1)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	_, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: apple.ID, Quantity: 2},
		{ProductID: pear.ID, Quantity: 3},
	})
	require.True(t, domain.IsInsufficientStock(err))

	require.Equal(t, 10, f.stockOf(t, apple.ID), "valid item must not be reduced")
	require.Equal(t, 1, f.stockOf(t, pear.ID))
}

func TestPlacer_Place_PerItemDiscountProportionality(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	laptop := f.seed(t, "Laptop", "600.00", 5)
	mouse := f.seed(t, "Mouse", "40.00", 5)
	user := domain.User{ID: 3, Role: domain.RoleUser}

	// Сумма 640.00 > 500.00: доля 0.05 раскладывается по позициям
	// пропорционально их «сырой» стоимости.
	placed, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: laptop.ID, Quantity: 1},
		{ProductID: mouse.ID, Quantity: 1},
	})
	require.NoError(t, err)

	require.True(t, placed.Items[0].Discount.Equal(money("30.00")),
		"laptop discount: got %s", placed.Items[0].Discount)
	require.True(t, placed.Items[1].Discount.Equal(money("2.00")),
		"mouse discount: got %s", placed.Items[1].Discount)
	require.True(t, placed.TotalPrice.Equal(money("608.00")),
		"expected total 608.00, got %s", placed.TotalPrice)
}

func TestPlacer_Place_ProductNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	_, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: 404, Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPlacer_Place_InvalidRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Apple", "100.00", 10)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	_, err := f.placer.Place(context.Background(), user, nil)
	require.ErrorIs(t, err, domain.ErrOrderItemsRequired)

	_, err = f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 0},
	})
	require.ErrorIs(t, err, domain.ErrItemQuantityInvalid)

	require.Equal(t, 10, f.stockOf(t, product.ID))
}

func TestPlacer_Place_SoftDeletedProductStillOrderable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Apple", "100.00", 10)
	require.NoError(t, f.products.SoftDelete(context.Background(), product.ID))

	user := domain.User{ID: 1, Role: domain.RoleUser}
	placed, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.True(t, placed.TotalPrice.Equal(money("100.00")))
}

func TestPlacer_Place_EnqueuesPlacedEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	product := f.seed(t, "Apple", "100.00", 10)
	user := domain.User{ID: 1, Role: domain.RoleUser}

	placed, err := f.placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	pending, err := f.outbox.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, placed.ID, pending[0].AggregateID)
	require.Equal(t, "order.placed", pending[0].EventType)
}

// ctxAwareProductRepository уважает отмену контекста при движении остатков,
// как это делают postgres-репозитории, и дёргает хук после каждого списания.
type ctxAwareProductRepository struct {
	domain.ProductRepository
	afterDecrement func()
}

func (r *ctxAwareProductRepository) DecrementStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	product, err := r.ProductRepository.DecrementStock(ctx, id, qty)
	if err == nil && r.afterDecrement != nil {
		r.afterDecrement()
	}
	return product, err
}

func (r *ctxAwareProductRepository) IncrementStock(ctx context.Context, id int64, qty int) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	return r.ProductRepository.IncrementStock(ctx, id, qty)
}

func TestPlacer_Place_CancelledMidCommitRestoresStock(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Клиент обрывает соединение после списания первой позиции: вторая
	// падает по отмене контекста, но компенсация обязана вернуть первую.
	products := &ctxAwareProductRepository{
		ProductRepository: memory.NewProductRepository(),
		afterDecrement:    cancel,
	}
	placer := NewPlacer(
		products,
		memory.NewOrderRepository(),
		inventory.NewGuard(products, nil),
		discount.NewDefaultRegistry(nil),
		nil,
	)

	created, err := products.Create(context.Background(), []domain.Product{
		{Name: "Apple", Price: money("100.00"), Quantity: 10},
		{Name: "Pear", Price: money("50.00"), Quantity: 5},
	})
	require.NoError(t, err)

	user := domain.User{ID: 1, Role: domain.RoleUser}
	_, err = placer.Place(ctx, user, []ItemRequest{
		{ProductID: created[0].ID, Quantity: 3},
		{ProductID: created[1].ID, Quantity: 2},
	})
	require.ErrorIs(t, err, context.Canceled)

	apple, err := products.FindByID(context.Background(), created[0].ID)
	require.NoError(t, err)
	require.Equal(t, 10, apple.Quantity, "rejected order must leave stock at pre-call quantity")

	pear, err := products.FindByID(context.Background(), created[1].ID)
	require.NoError(t, err)
	require.Equal(t, 5, pear.Quantity)
}

// failingOrderRepository всегда отказывает при сохранении заказа.
type failingOrderRepository struct {
	domain.OrderRepository
}

var errStorageDown = errors.New("storage down")

func (r *failingOrderRepository) Create(context.Context, domain.Order) (domain.Order, error) {
	return domain.Order{}, errStorageDown
}

func TestPlacer_Place_PersistFailureRestoresStock(t *testing.T) {
	t.Parallel()

	products := memory.NewProductRepository()
	placer := NewPlacer(
		products,
		&failingOrderRepository{OrderRepository: memory.NewOrderRepository()},
		inventory.NewGuard(products, nil),
		discount.NewDefaultRegistry(nil),
		nil,
	)

	created, err := products.Create(context.Background(), []domain.Product{
		{Name: "Apple", Price: money("100.00"), Quantity: 10},
	})
	require.NoError(t, err)
	product := created[0]

	user := domain.User{ID: 1, Role: domain.RoleUser}
	_, err = placer.Place(context.Background(), user, []ItemRequest{
		{ProductID: product.ID, Quantity: 3},
	})
	require.ErrorIs(t, err, errStorageDown)

	current, err := products.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 10, current.Quantity, "stock must be compensated after persist failure")
}
