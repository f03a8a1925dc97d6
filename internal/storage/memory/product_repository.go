package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[int64]domain.Product
	nextID int64
}

// NewProductRepository возвращает in-memory каталог для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items:  make(map[int64]domain.Product),
		nextID: 1,
	}
}

// FindByID возвращает товар или ErrProductNotFound, если его нет.
// Мягко удалённые записи возвращаются: видимость решает фильтр выборок.
func (r *productRepositoryInMemory) FindByID(_ context.Context, id int64) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// FindAllMatching возвращает товары, удовлетворяющие фильтру, в порядке ID.
func (r *productRepositoryInMemory) FindAllMatching(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		if filter.Matches(product) {
			result = append(result, product)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Create сохраняет новые товары, присваивая им последовательные ID.
func (r *productRepositoryInMemory) Create(_ context.Context, products []domain.Product) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := make([]domain.Product, 0, len(products))
	for _, product := range products {
		product.ID = r.nextID
		r.nextID++
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		r.items[product.ID] = product
		created = append(created, product)
	}
	return created, nil
}

// Update перезаписывает атрибуты товара, сохраняя флаг удаления:
// им распоряжается только SoftDelete.
func (r *productRepositoryInMemory) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	current.Name = product.Name
	current.Description = product.Description
	current.Price = product.Price
	current.Quantity = product.Quantity
	current.UpdatedAt = product.UpdatedAt

	r.items[current.ID] = current
	return current, nil
}

// SoftDelete помечает товар удалённым, запись физически не исчезает.
func (r *productRepositoryInMemory) SoftDelete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.ErrProductNotFound
	}

	product.Deleted = true
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return nil
}

// DecrementStock атомарно списывает qty единиц, перепроверяя остаток под мьютексом.
func (r *productRepositoryInMemory) DecrementStock(_ context.Context, id int64, qty int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.Quantity < qty {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   qty,
			Available:   product.Quantity,
		}
	}

	product.Quantity -= qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

// IncrementStock атомарно возвращает qty единиц на остаток.
func (r *productRepositoryInMemory) IncrementStock(_ context.Context, id int64, qty int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}

	product.Quantity += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return product, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
