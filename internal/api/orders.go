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
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// orderItemView — JSON-представление позиции заказа.
type orderItemView struct {
	ID          string    `json:"id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Discount    string    `json:"discount"`
	TotalPrice  string    `json:"total_price"`
	CreatedAt   time.Time `json:"created_at"`
}

// orderView — JSON-представление заказа.
type orderView struct {
	ID         string          `json:"id"`
	UserID     int64           `json:"user_id"`
	Items      []orderItemView `json:"items"`
	TotalPrice string          `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newOrderView(o domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Discount:    item.Discount.StringFixed(2),
			TotalPrice:  item.TotalPrice.StringFixed(2),
			CreatedAt:   item.CreatedAt,
		})
	}
	return orderView{
		ID:         o.ID,
		UserID:     o.UserID,
		Items:      items,
		TotalPrice: o.TotalPrice.StringFixed(2),
		CreatedAt:  o.CreatedAt,
	}
}

type placeOrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type placeOrderRequest struct {
	Items []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// OrdersHandler обслуживает оформление и чтение заказов.
type OrdersHandler struct {
	placer   *order.Placer
	orders   domain.OrderRepository
	logger   *log.Entry
	validate *validator.Validate
}

// NewOrdersHandler создаёт обработчик заказов.
func NewOrdersHandler(placer *order.Placer, orders domain.OrderRepository, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.WithField("component", "orders-handler")
	}
	return &OrdersHandler{
		placer:   placer,
		orders:   orders,
		logger:   logger,
		validate: validator.New(),
	}
}

// Place оформляет заказ: проверяет позиции, применяет скидки,
// списывает остатки и сохраняет заказ как единое целое.
func (h *OrdersHandler) Place(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "orders.place")
	viewer := ViewerFromContext(r.Context())

	var req placeOrderRequest
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

	requested := make([]order.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		requested = append(requested, order.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	placed, err := h.placer.Place(r.Context(), viewer, requested)
	if err != nil {
		logger.WithError(err).WithField("user_id", viewer.ID).Warn("failed to place order")
		writeDomainError(w, r, err)
		return
	}

	logger.WithFields(log.Fields{
		"order_id": placed.ID,
		"user_id":  viewer.ID,
		"total":    placed.TotalPrice.StringFixed(2),
	}).Info("order placed")

	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, OKWithData(map[string]any{
		"order": newOrderView(placed),
	}))
}

// Get возвращает заказ по идентификатору. Чужой заказ доступен
// только администратору.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "orders.get")
	viewer := ViewerFromContext(r.Context())

	id := chi.URLParam(r, "id")
	placed, err := h.orders.Get(r.Context(), id)
	if err != nil {
		logger.WithError(err).WithField("order_id", id).Warn("failed to get order")
		writeDomainError(w, r, err)
		return
	}

	if placed.UserID != viewer.ID && !viewer.IsPrivileged() {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, Error(domain.ErrOrderNotFound.Error()))
		return
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"order": newOrderView(placed),
	}))
}

// ListMine возвращает заказы текущего пользователя, новые первыми.
func (h *OrdersHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r, "orders.list")
	viewer := ViewerFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, Error("invalid limit"))
			return
		}
		limit = parsed
	}

	placed, err := h.orders.ListByUser(r.Context(), viewer.ID, limit)
	if err != nil {
		logger.WithError(err).WithField("user_id", viewer.ID).Error("failed to list orders")
		writeDomainError(w, r, err)
		return
	}

	views := make([]orderView, 0, len(placed))
	for _, o := range placed {
		views = append(views, newOrderView(o))
	}

	render.JSON(w, r, OKWithData(map[string]any{
		"orders": views,
	}))
}

func (h *OrdersHandler) requestLogger(r *http.Request, op string) *log.Entry {
	return h.logger.WithFields(log.Fields{
		"op":         op,
		"request_id": middleware.GetReqID(r.Context()),
	})
}
