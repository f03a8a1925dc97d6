package api

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/vladislavdragonenkov/storefront/internal/health"
)

// RouterOptions собирает зависимости HTTP-роутера.
type RouterOptions struct {
	Products *ProductsHandler
	Orders   *OrdersHandler
	Health   *health.Handler
	// Idempotency оборачивает POST /orders; nil отключает поддержку Idempotency-Key.
	Idempotency func(http.Handler) http.Handler
}

// NewRouter собирает chi-роутер витрины.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(ViewerMiddleware)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", opts.Products.List)
		r.Get("/search", opts.Products.Search)
		r.Get("/{id}", opts.Products.Get)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/", opts.Products.Create)
			r.Patch("/{id}", opts.Products.Update)
			r.Delete("/{id}", opts.Products.Delete)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireIdentity)

		if opts.Idempotency != nil {
			r.With(opts.Idempotency).Post("/", opts.Orders.Place)
		} else {
			r.Post("/", opts.Orders.Place)
		}
		r.Get("/", opts.Orders.ListMine)
		r.Get("/{id}", opts.Orders.Get)
	})

	if opts.Health != nil {
		r.Method(http.MethodGet, "/healthz", opts.Health)
		r.Get("/livez", health.LivenessHandler)
		r.Get("/readyz", opts.Health.ReadinessHandler)
	}

	return r
}
