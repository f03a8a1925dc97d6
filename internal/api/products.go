package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
)

// productView — JSON-представление товара в ответах API.
type productView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	Available   bool      `json:"available"`
	Deleted     bool      `json:"deleted,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductView(p domain.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Quantity:    p.Quantity,
		Available:   p.Available(),
		Deleted:     p.Deleted,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newProductViews(products []domain.Product) []productView {
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}
	return views
}

type createProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
}

type createProductsRequest struct {
	Products []createProductRequest `json:"products" validate:"required,min=1,dive"`
}

type updateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Quantity    *int    `json:"quantity"`
}

// ProductsHandler обслуживает операции каталога.
type ProductsHandler struct {
	catalog  *catalog.Service
	logger   *log.Entry
	validate *validator.Validate
}

// NewProductsHandler создаёт обработчик каталога.
func NewProductsHandler(service *catalog.Service, logger *log.Entry) *ProductsHandler {
	if logger == nil {
		logger = log.WithField("component", "products-handler")
	}
	return &ProductsHandler{
		catalog:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

// List возвращает каталог целиком с учётом видимости наблюдателя.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.list")
	viewer := ViewerFromContext(r.Context())

	products, err := h.catalog.List(r.Context(), viewer.IsPrivileged())
	if err != nil {
		logger.WithError(err).Error("failed to list products")
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"products": newProductViews(products),
	}))
}

// Search возвращает товары, удовлетворяющие критериям из query-параметров.
func (h *ProductsHandler) Search(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.search")
	viewer := ViewerFromContext(r.Context())

	criteria, err := parseSearchCriteria(r)
	if err != nil {
		logger.WithError(err).Warn("invalid search criteria")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error(err.Error()))
		return
	}

	products, err := h.catalog.Search(r.Context(), criteria, viewer.IsPrivileged())
	if err != nil {
		logger.WithError(err).Error("failed to search products")
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"products": newProductViews(products),
	}))
}

// Get возвращает товар по идентификатору. Мягко удалённый товар
// виден только администратору.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.get")
	viewer := ViewerFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid product id"))
		return
	}

	product, err := h.catalog.FindByID(r.Context(), id)
	if err != nil {
		logger.WithError(err).WithField("product_id", id).Warn("failed to get product")
		writeDomainError(w, r, err)
		return
	}

	if product.Deleted && !viewer.IsPrivileged() {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, Error(domain.ErrProductNotFound.Error()))
		return
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"product": newProductView(product),
	}))
}

// Create сохраняет набор новых товаров. Доступно только администратору.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.create")

	var req createProductsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithError(err).Warn("failed to decode request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, ValidationError(verrs))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return
	}

	items := make([]catalog.NewProduct, 0, len(req.Products))
	for _, p := range req.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, Error("invalid price for product "+p.Name))
			return
		}
		items = append(items, catalog.NewProduct{
			Name:        p.Name,
			Description: p.Description,
			Price:       price,
			Quantity:    p.Quantity,
		})
	}

	created, err := h.catalog.CreateProducts(r.Context(), items)
	if err != nil {
		logger.WithError(err).Error("failed to create products")
		writeDomainError(w, r, err)
		return
	}

	logger.WithField("count", len(created)).Info("products created")
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, OKWithData(map[string]any{
		"products": newProductViews(created),
	}))
}

// Update частично обновляет атрибуты товара. Доступно только администратору.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.update")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid product id"))
		return
	}

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WithError(err).Warn("failed to decode request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return
	}

	patch := catalog.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    req.Quantity,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, Error("invalid price"))
			return
		}
		patch.Price = &price
	}

	updated, err := h.catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		logger.WithError(err).WithField("product_id", id).Warn("failed to update product")
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"product": newProductView(updated),
	}))
}

// Delete мягко удаляет товар. Доступно только администратору.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "products.delete")

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error("invalid product id"))
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		logger.WithError(err).WithField("product_id", id).Warn("failed to delete product")
		writeDomainError(w, r, err)
		return
	}

	logger.WithField("product_id", id).Info("product soft-deleted")
	render.JSON(w, r, OKWithData(map[string]any{
		"deleted_id": id,
	}))
}

func (h *ProductsHandler) requestLogger(r *http.Request, op string) *log.Entry {
	return h.logger.WithFields(log.Fields{
		"op":         op,
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func parseSearchCriteria(r *http.Request) (catalog.SearchCriteria, error) {
	query := r.URL.Query()

	criteria := catalog.SearchCriteria{
		Name: query.Get("name"),
	}

	if raw := query.Get("min_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return catalog.SearchCriteria{}, errors.New("invalid min_price")
		}
		criteria.MinPrice = &price
	}
	if raw := query.Get("max_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return catalog.SearchCriteria{}, errors.New("invalid max_price")
		}
		criteria.MaxPrice = &price
	}
	if raw := query.Get("only_available"); raw != "" {
		onlyAvailable, err := strconv.ParseBool(raw)
		if err != nil {
			return catalog.SearchCriteria{}, errors.New("invalid only_available")
		}
		criteria.OnlyAvailable = onlyAvailable
	}

	return criteria, nil
}
