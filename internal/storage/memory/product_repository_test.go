package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func seedProducts(t *testing.T, repo domain.ProductRepository) []domain.Product {
	t.Helper()

	created, err := repo.Create(context.Background(), []domain.Product{
		{Name: "Apple", Price: decimal.RequireFromString("100.00"), Quantity: 10},
		{Name: "Pear", Price: decimal.RequireFromString("50.00"), Quantity: 0},
	})
	if err != nil {
		t.Fatalf("seed products: %v", err)
	}
	return created
}

func TestProductRepository_Create_AssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	created := seedProducts(t, NewProductRepository())
	if created[0].ID != 1 || created[1].ID != 2 {
		t.Fatalf("expected sequential ids 1,2, got %d,%d", created[0].ID, created[1].ID)
	}
}

func TestProductRepository_FindByID_ReturnsDeleted(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created := seedProducts(t, repo)

	if err := repo.SoftDelete(context.Background(), created[0].ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	product, err := repo.FindByID(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("deleted product must stay addressable by id: %v", err)
	}
	if !product.Deleted {
		t.Fatal("expected deleted flag to be set")
	}
}

func TestProductRepository_FindAllMatching_HidesDeleted(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created := seedProducts(t, repo)

	if err := repo.SoftDelete(context.Background(), created[1].ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	visible, err := repo.FindAllMatching(context.Background(), domain.ProductFilter{})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != created[0].ID {
		t.Fatalf("expected only product %d, got %v", created[0].ID, visible)
	}

	all, err := repo.FindAllMatching(context.Background(), domain.ProductFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both products for privileged filter, got %d", len(all))
	}
}

func TestProductRepository_Update_PreservesDeletedFlag(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created := seedProducts(t, repo)

	if err := repo.SoftDelete(context.Background(), created[0].ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	patch := created[0]
	patch.Name = "Red Apple"
	patch.Deleted = false

	updated, err := repo.Update(context.Background(), patch)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Red Apple" {
		t.Fatalf("expected updated name, got %s", updated.Name)
	}
	if !updated.Deleted {
		t.Fatal("update must not resurrect a soft-deleted product")
	}
}

func TestProductRepository_DecrementStock_Insufficient(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created := seedProducts(t, repo)

	_, err := repo.DecrementStock(context.Background(), created[0].ID, 11)
	if !domain.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %T", err)
	}
	if stockErr.Available != 10 || stockErr.Requested != 11 {
		t.Fatalf("unexpected error details: %+v", stockErr)
	}

	current, err := repo.FindByID(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if current.Quantity != 10 {
		t.Fatalf("stock must stay 10, got %d", current.Quantity)
	}
}

func TestProductRepository_DecrementStock_ConcurrentExactDrain(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created, err := repo.Create(context.Background(), []domain.Product{
		{Name: "Apple", Price: decimal.RequireFromString("100.00"), Quantity: 30},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	id := created[0].ID

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.DecrementStock(context.Background(), id, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 30 {
		t.Fatalf("expected exactly 30 successful decrements, got %d", succeeded)
	}

	final, err := repo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if final.Quantity != 0 {
		t.Fatalf("expected zero stock, got %d", final.Quantity)
	}
}

func TestProductRepository_IncrementStock(t *testing.T) {
	t.Parallel()

	repo := NewProductRepository()
	created := seedProducts(t, repo)

	restored, err := repo.IncrementStock(context.Background(), created[1].ID, 5)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if restored.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", restored.Quantity)
	}
}
