package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func seedProduct(t *testing.T, repo domain.ProductRepository, name string, quantity int) domain.Product {
	t.Helper()

	created, err := repo.Create(context.Background(), []domain.Product{
		{Name: name, Price: decimal.RequireFromString("100.00"), Quantity: quantity},
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return created[0]
}

func TestGuard_CheckAvailability(t *testing.T) {
	t.Parallel()

	guard := NewGuard(memory.NewProductRepository(), nil)
	product := domain.Product{ID: 1, Name: "Apple", Quantity: 10}

	if !guard.CheckAvailability(product, 10) {
		t.Fatal("expected availability for quantity equal to stock")
	}
	if guard.CheckAvailability(product, 11) {
		t.Fatal("expected rejection for quantity above stock")
	}
	if guard.CheckAvailability(product, 0) {
		t.Fatal("expected rejection for zero quantity")
	}
}

func TestGuard_ReduceAndRestore(t *testing.T) {
	t.Parallel()

	repo := memory.NewProductRepository()
	guard := NewGuard(repo, nil)
	product := seedProduct(t, repo, "Apple", 10)

	reduced, err := guard.Reduce(context.Background(), product.ID, 4)
	if err != nil {
		t.Fatalf("reduce failed: %v", err)
	}
	if reduced.Quantity != 6 {
		t.Fatalf("expected remaining 6, got %d", reduced.Quantity)
	}

	if err := guard.Restore(context.Background(), product.ID, 4); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	restored, err := repo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if restored.Quantity != 10 {
		t.Fatalf("expected stock back to 10, got %d", restored.Quantity)
	}
}

func TestGuard_Reduce_InsufficientStockLeavesStockUntouched(t *testing.T) {
	t.Parallel()

	repo := memory.NewProductRepository()
	guard := NewGuard(repo, nil)
	product := seedProduct(t, repo, "Apple", 10)

	if _, err := guard.Reduce(context.Background(), product.ID, 12); !domain.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	current, err := repo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if current.Quantity != 10 {
		t.Fatalf("stock must stay 10 after rejected reduce, got %d", current.Quantity)
	}
}

func TestGuard_Reduce_InvalidQuantity(t *testing.T) {
	t.Parallel()

	repo := memory.NewProductRepository()
	guard := NewGuard(repo, nil)
	product := seedProduct(t, repo, "Apple", 10)

	if _, err := guard.Reduce(context.Background(), product.ID, 0); err != domain.ErrItemQuantityInvalid {
		t.Fatalf("expected ErrItemQuantityInvalid, got %v", err)
	}
	if _, err := guard.Reduce(context.Background(), product.ID, -1); err != domain.ErrItemQuantityInvalid {
		t.Fatalf("expected ErrItemQuantityInvalid, got %v", err)
	}
}

func TestGuard_Reduce_ConcurrentNeverNegative(t *testing.T) {
	t.Parallel()

	repo := memory.NewProductRepository()
	guard := NewGuard(repo, nil)
	product := seedProduct(t, repo, "Apple", 50)

	const workers = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := guard.Reduce(context.Background(), product.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 50 {
		t.Fatalf("expected exactly 50 successful reduces, got %d", succeeded)
	}

	final, err := repo.FindByID(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if final.Quantity != 0 {
		t.Fatalf("expected zero stock, got %d", final.Quantity)
	}
}
