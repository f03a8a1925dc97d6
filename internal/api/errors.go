package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// writeDomainError переводит доменную ошибку в HTTP-статус и JSON-ответ.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, Error(err.Error()))

	case domain.IsInsufficientStock(err):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, Error(err.Error()))

	case errors.Is(err, domain.ErrOrderItemsRequired),
		errors.Is(err, domain.ErrItemQuantityInvalid),
		errors.Is(err, domain.ErrOrderUserRequired),
		errors.Is(err, domain.ErrProductNameRequired),
		errors.Is(err, domain.ErrProductPriceNegative),
		errors.Is(err, domain.ErrProductQuantityNegative):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, Error(err.Error()))

	case errors.Is(err, domain.ErrProductConflict):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, Error(err.Error()))

	default:
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, Error("internal error"))
	}
}
