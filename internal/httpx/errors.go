package httpx

import (
	"errors"
	"net/http"

	"github.com/shopfloor/order-catalog/internal/catalog"
	"github.com/shopfloor/order-catalog/internal/orders"
)

// Error kinds stay transport-agnostic in the core; the mapping to status
// codes lives only here.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrProductNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrInvalidOperation),
		errors.Is(err, catalog.ErrSKUTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var se *orders.StockError
	if errors.As(err, &se) {
		body["details"] = se.Shortages
	}
	writeJSON(w, statusFor(err), body)
}
