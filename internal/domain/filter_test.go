package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func sampleCatalog() []Product {
	return []Product{
		{ID: 1, Name: "Green Apple", Price: money("90.00"), Quantity: 10},
		{ID: 2, Name: "Apple Juice", Price: money("120.00"), Quantity: 0},
		{ID: 3, Name: "Banana", Price: money("60.00"), Quantity: 5},
		{ID: 4, Name: "Dried Apple", Price: money("150.00"), Quantity: 3, Deleted: true},
	}
}

func matchIDs(products []Product, filter ProductFilter) []int64 {
	var ids []int64
	for _, p := range products {
		if filter.Matches(p) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func TestProductFilter_NameSubstringCaseInsensitive(t *testing.T) {
	t.Parallel()

	ids := matchIDs(sampleCatalog(), ProductFilter{Name: "apple"})
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected products 1 and 2, got %v", ids)
	}
}

func TestProductFilter_PriceBoundsInclusive(t *testing.T) {
	t.Parallel()

	min := decimal.RequireFromString("90.00")
	max := decimal.RequireFromString("120.00")

	ids := matchIDs(sampleCatalog(), ProductFilter{MinPrice: &min, MaxPrice: &max})
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected products 1 and 2, got %v", ids)
	}
}

func TestProductFilter_OnlyAvailable(t *testing.T) {
	t.Parallel()

	ids := matchIDs(sampleCatalog(), ProductFilter{Name: "apple", OnlyAvailable: true})
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only product 1, got %v", ids)
	}
}

func TestProductFilter_HidesDeletedByDefault(t *testing.T) {
	t.Parallel()

	ids := matchIDs(sampleCatalog(), ProductFilter{})
	if len(ids) != 3 {
		t.Fatalf("expected 3 visible products, got %v", ids)
	}
	for _, id := range ids {
		if id == 4 {
			t.Fatal("deleted product must be hidden without IncludeDeleted")
		}
	}
}

func TestProductFilter_IncludeDeletedForPrivileged(t *testing.T) {
	t.Parallel()

	ids := matchIDs(sampleCatalog(), ProductFilter{IncludeDeleted: true})
	if len(ids) != 4 {
		t.Fatalf("expected all 4 products, got %v", ids)
	}
}

func TestProductFilter_CombinedCriteria(t *testing.T) {
	t.Parallel()

	max := decimal.RequireFromString("100.00")
	ids := matchIDs(sampleCatalog(), ProductFilter{Name: "apple", MaxPrice: &max, IncludeDeleted: true})
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected only product 1, got %v", ids)
	}
}
