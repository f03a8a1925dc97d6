package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/discount"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func money(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", value, err)
	}
	return d
}

type testEnv struct {
	router   http.Handler
	products domain.ProductRepository
	orders   domain.OrderRepository
}

// newTestEnv собирает полный HTTP-стек поверх in-memory хранилищ.
// Каталог: клавиатура (id=1, остаток 10), мышь (id=2, нет в наличии),
// монитор (id=3, мягко удалён).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testLogger()
	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	idem := memory.NewIdempotencyRepository()

	ctx := context.Background()
	_, err := products.Create(ctx, []domain.Product{
		{Name: "Keyboard", Price: money(t, "100.00"), Quantity: 10},
		{Name: "Mouse", Price: money(t, "25.50"), Quantity: 0},
		{Name: "Monitor", Price: money(t, "500.00"), Quantity: 5},
	})
	if err != nil {
		t.Fatalf("seed products: %v", err)
	}
	if err := products.SoftDelete(ctx, 3); err != nil {
		t.Fatalf("soft delete seed product: %v", err)
	}

	catalogSvc := catalog.NewService(products, nil, logger)
	guard := inventory.NewGuard(products, logger)
	registry := discount.NewDefaultRegistry(logger)
	placer := order.NewPlacer(products, orders, guard, registry, logger)

	router := NewRouter(RouterOptions{
		Products:    NewProductsHandler(catalogSvc, logger),
		Orders:      NewOrdersHandler(placer, orders, logger),
		Idempotency: IdempotencyMiddleware(idem, time.Hour, logger),
	})

	return &testEnv{router: router, products: products, orders: orders}
}

type envelope struct {
	Status string                     `json:"status"`
	Error  string                     `json:"error"`
	Data   map[string]json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, target string, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected response body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id, "X-User-Role": "user"}
}

func asAdmin() map[string]string {
	return map[string]string{"X-User-Id": "1000", "X-User-Role": "admin"}
}

func TestRouter_ListProducts_HidesDeletedFromUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/products", "", asUser("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var products []struct {
		ID      int64 `json:"id"`
		Deleted bool  `json:"deleted"`
	}
	if err := json.Unmarshal(body.Data["products"], &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 visible products, got %d", len(products))
	}
	for _, p := range products {
		if p.Deleted {
			t.Fatalf("product %d must not be deleted in restricted listing", p.ID)
		}
	}
}

func TestRouter_ListProducts_AdminSeesDeleted(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/products", "", asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var products []struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body.Data["products"], &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("admin must see all 3 products, got %d", len(products))
	}
}

func TestRouter_GetProduct_DeletedHiddenFromUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/products/3", "", asUser("7"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted product, got %d", rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/products/3", "", asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("admin must read deleted product, got %d", rec.Code)
	}
	var product struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.Unmarshal(body.Data["product"], &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if !product.Deleted {
		t.Fatal("admin view must expose deleted flag")
	}
}

func TestRouter_SearchProducts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/products/search?name=key&only_available=true", "", asUser("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var products []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body.Data["products"], &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Keyboard" {
		t.Fatalf("unexpected search result: %+v", products)
	}
}

func TestRouter_CreateProduct_ForbiddenForUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"products":[{"name":"Webcam","price":"49.90","quantity":4}]}`
	rec, body := env.do(t, http.MethodPost, "/products", payload, asUser("7"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if body.Status != StatusError {
		t.Fatalf("expected error envelope, got %+v", body)
	}
}

func TestRouter_CreateProduct_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/products", `{"products":[]}`, asAdmin())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty product list, got %d", rec.Code)
	}
	if body.Status != StatusError || body.Error == "" {
		t.Fatalf("expected validation error message, got %+v", body)
	}
}

func TestRouter_CreateProduct_AsAdmin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"products":[{"name":"Webcam","description":"1080p","price":"49.90","quantity":4}]}`
	rec, body := env.do(t, http.MethodPost, "/products", payload, asAdmin())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var products []struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body.Data["products"], &products); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Webcam" || products[0].Price != "49.90" {
		t.Fatalf("unexpected created products: %+v", products)
	}
	if products[0].ID == 0 {
		t.Fatal("created product must have an id")
	}
}

func TestRouter_UpdateAndDeleteProduct(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPatch, "/products/1", `{"price":"149.99"}`, asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var product struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body.Data["product"], &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if product.Price != "149.99" || product.Name != "Keyboard" {
		t.Fatalf("partial update must keep name and change price: %+v", product)
	}

	rec, body = env.do(t, http.MethodDelete, "/products/1", "", asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	var deletedID int64
	if err := json.Unmarshal(body.Data["deleted_id"], &deletedID); err != nil {
		t.Fatalf("decode deleted_id: %v", err)
	}
	if deletedID != 1 {
		t.Fatalf("expected deleted_id=1, got %d", deletedID)
	}

	rec, _ = env.do(t, http.MethodGet, "/products/1", "", asUser("7"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted product must vanish from user view, got %d", rec.Code)
	}
}

func TestRouter_PlaceOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"items":[{"product_id":1,"quantity":2}]}`
	rec, body := env.do(t, http.MethodPost, "/orders", payload, asUser("7"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var placed struct {
		ID         string `json:"id"`
		UserID     int64  `json:"user_id"`
		TotalPrice string `json:"total_price"`
		Items      []struct {
			ProductID int64  `json:"product_id"`
			Quantity  int    `json:"quantity"`
			Discount  string `json:"discount"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body.Data["order"], &placed); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if placed.ID == "" || placed.UserID != 7 {
		t.Fatalf("unexpected order identity: %+v", placed)
	}
	if placed.TotalPrice != "200.00" {
		t.Fatalf("expected total 200.00 without discount, got %s", placed.TotalPrice)
	}
	if len(placed.Items) != 1 || placed.Items[0].Discount != "0.00" {
		t.Fatalf("unexpected order items: %+v", placed.Items)
	}

	product, err := env.products.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if product.Quantity != 8 {
		t.Fatalf("stock must drop to 8, got %d", product.Quantity)
	}
}

func TestRouter_PlaceOrder_PremiumDiscount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	headers := map[string]string{"X-User-Id": "9", "X-User-Role": "premium"}
	payload := `{"items":[{"product_id":3,"quantity":2}]}`
	rec, body := env.do(t, http.MethodPost, "/orders", payload, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var placed struct {
		TotalPrice string `json:"total_price"`
	}
	if err := json.Unmarshal(body.Data["order"], &placed); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	// 1000.00 за вычетом 5% за сумму и 10% премиальных.
	if placed.TotalPrice != "850.00" {
		t.Fatalf("expected discounted total 850.00, got %s", placed.TotalPrice)
	}
}

func TestRouter_PlaceOrder_InsufficientStock(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"items":[{"product_id":1,"quantity":12}]}`
	rec, body := env.do(t, http.MethodPost, "/orders", payload, asUser("7"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if body.Status != StatusError || body.Error == "" {
		t.Fatalf("expected error envelope, got %+v", body)
	}

	product, err := env.products.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if product.Quantity != 10 {
		t.Fatalf("rejected order must not touch stock, got %d", product.Quantity)
	}
}

func TestRouter_PlaceOrder_RequiresIdentity(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"items":[{"product_id":1,"quantity":1}]}`
	rec, _ := env.do(t, http.MethodPost, "/orders", payload, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", rec.Code)
	}
}

func TestRouter_PlaceOrder_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/orders", `{"items":[]}`, asUser("7"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty items, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":1,"quantity":-2}]}`, asUser("7"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for negative quantity, got %d", rec.Code)
	}
}

func TestRouter_GetOrder_ForeignHidden(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"items":[{"product_id":1,"quantity":1}]}`
	rec, body := env.do(t, http.MethodPost, "/orders", payload, asUser("7"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: %d", rec.Code)
	}
	var placed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body.Data["order"], &placed); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	rec, _ = env.do(t, http.MethodGet, "/orders/"+placed.ID, "", asUser("8"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign order must look absent, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/orders/"+placed.ID, "", asUser("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner must read own order, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/orders/"+placed.ID, "", asAdmin())
	if rec.Code != http.StatusOK {
		t.Fatalf("admin must read any order, got %d", rec.Code)
	}
}

func TestRouter_ListMyOrders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec, _ := env.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":1,"quantity":1}]}`, asUser("7"))
		if rec.Code != http.StatusCreated {
			t.Fatalf("place order: %d", rec.Code)
		}
	}
	rec, _ := env.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":1,"quantity":1}]}`, asUser("8"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("place order: %d", rec.Code)
	}

	rec, body := env.do(t, http.MethodGet, "/orders", "", asUser("7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var orders []struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(body.Data["orders"], &orders); err != nil {
		t.Fatalf("decode orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders for user 7, got %d", len(orders))
	}
	for _, o := range orders {
		if o.UserID != 7 {
			t.Fatalf("foreign order leaked into listing: %+v", o)
		}
	}
}

func TestRouter_PlaceOrder_IdempotentReplay(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	payload := `{"items":[{"product_id":1,"quantity":2}]}`
	headers := asUser("7")
	headers["Idempotency-Key"] = "order-attempt-1"

	first, _ := env.do(t, http.MethodPost, "/orders", payload, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first attempt: %d: %s", first.Code, first.Body.String())
	}

	second, _ := env.do(t, http.MethodPost, "/orders", payload, headers)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay must return stored status, got %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("replay body differs:\nfirst:  %s\nsecond: %s", first.Body.String(), second.Body.String())
	}

	// Заказ оформлен ровно один раз: остаток списан однократно.
	product, err := env.products.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if product.Quantity != 8 {
		t.Fatalf("replay must not place a second order, stock is %d", product.Quantity)
	}

	orders, err := env.orders.ListByUser(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected exactly one stored order, got %d", len(orders))
	}
}

func TestRouter_PlaceOrder_IdempotencyKeyReuseConflict(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	headers := asUser("7")
	headers["Idempotency-Key"] = "order-attempt-2"

	rec, _ := env.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":1,"quantity":1}]}`, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first attempt: %d", rec.Code)
	}

	rec, body := env.do(t, http.MethodPost, "/orders", `{"items":[{"product_id":1,"quantity":5}]}`, headers)
	if rec.Code != http.StatusConflict {
		t.Fatalf("same key with different body must conflict, got %d", rec.Code)
	}
	if body.Status != StatusError {
		t.Fatalf("expected error envelope, got %+v", body)
	}
}

func TestRouter_InvalidIdentityHeaders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/products", "", map[string]string{"X-User-Id": "not-a-number"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed user id, got %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodGet, "/products", "", map[string]string{"X-User-Id": "7", "X-User-Role": "superuser"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", rec.Code)
	}
}
