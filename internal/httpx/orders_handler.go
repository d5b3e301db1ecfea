package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/shopfloor/order-catalog/internal/orders"
	"github.com/shopfloor/order-catalog/internal/redisx"
)

// OrderService is what the handler needs from the orders core.
type OrderService interface {
	CreateOrder(ctx context.Context, externalID string, cust orders.CustomerInfo, items []orders.ItemInput) (*orders.Order, bool, error)
	CancelOrder(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, to orders.Status) error
	CalculateTotal(ctx context.Context, items []orders.ItemInput) (int, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	ListRecent(ctx context.Context, limit int) ([]orders.Order, error)
}

type OrdersHandler struct {
	Svc   OrderService
	Redis *redis.Client // nil disables the status cache fast path
}

type CreateOrderReq struct {
	ExternalID string              `json:"external_id,omitempty"`
	Customer   orders.CustomerInfo `json:"customer"`
	Items      []orders.ItemInput  `json:"items"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
}

type QuoteReq struct {
	Items []orders.ItemInput `json:"items"`
}

type QuoteResp struct {
	TotalCents int `json:"total_cents"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/quote", h.quote)
}

func (h *OrdersHandler) reqCtx(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := orders.WithTrace(r.Context(), middleware.GetReqID(r.Context()))
	return context.WithTimeout(ctx, d)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	ctx, cancel := h.reqCtx(r, 5*time.Second)
	defer cancel()

	o, existed, err := h.Svc.CreateOrder(ctx, req.ExternalID, req.Customer, req.Items)
	if err != nil {
		writeErr(w, err)
		return
	}

	if h.Redis != nil {
		if req.ExternalID != "" {
			key := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
			_ = h.Redis.Set(ctx, key, o.ID, redisx.TTLIdempotency).Err()
		}
		statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
		body, _ := json.Marshal(map[string]any{"status": o.Status})
		_ = h.Redis.Set(ctx, statusKey, body, redisx.TTLStatusCache).Err()
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r, 3*time.Second)
	defer cancel()

	o, err := h.Svc.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves from the Redis cache when it can and falls back to
// the database, refilling the cache on the way out.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := h.reqCtx(r, 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Svc.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	body, _ := json.Marshal(map[string]any{"status": o.Status})
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r, 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.Svc.ListRecent(ctx, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	orderID := chi.URLParam(r, "id")
	ctx, cancel := h.reqCtx(r, 5*time.Second)
	defer cancel()

	if err := h.Svc.UpdateStatus(ctx, orderID, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": req.Status})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := h.reqCtx(r, 5*time.Second)
	defer cancel()

	if err := h.Svc.CancelOrder(ctx, orderID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": orders.StatusCancelled})
}

func (h *OrdersHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	ctx, cancel := h.reqCtx(r, 3*time.Second)
	defer cancel()

	total, err := h.Svc.CalculateTotal(ctx, req.Items)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteResp{TotalCents: total})
}
