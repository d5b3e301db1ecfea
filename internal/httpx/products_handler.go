package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopfloor/order-catalog/internal/catalog"
	"github.com/shopfloor/order-catalog/internal/orders"
)

type CatalogStore interface {
	Create(ctx context.Context, p *catalog.Product) error
	Get(ctx context.Context, id string) (*catalog.Product, error)
	GetBySKU(ctx context.Context, sku string) (*catalog.Product, error)
	List(ctx context.Context) ([]catalog.Product, error)
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type ProductsHandler struct {
	Store CatalogStore
}

type CreateProductReq struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceCents int    `json:"price_cents"`
	Stock      int    `json:"stock"`
	Active     *bool  `json:"active,omitempty"`
}

type AdjustStockReq struct {
	Delta int `json:"delta"`
}

type SetActiveReq struct {
	Active bool `json:"active"`
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Post("/products", h.createProduct)
	r.Get("/products", h.listProducts)
	r.Get("/products/sku/{sku}", h.getProductBySKU)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products/{id}/stock", h.adjustStock)
	r.Post("/products/{id}/active", h.setActive)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}
	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		writeErr(w, fmt.Errorf("%w: sku and name required", orders.ErrInvalidInput))
		return
	}
	if req.PriceCents < 0 || req.Stock < 0 {
		writeErr(w, fmt.Errorf("%w: price and stock must be non-negative", orders.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := &catalog.Product{
		SKU:        req.SKU,
		Name:       req.Name,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
		Active:     true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if err := h.Store.Create(ctx, p); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.List(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) getProductBySKU(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.GetBySKU(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}
	if req.Delta == 0 {
		writeErr(w, fmt.Errorf("%w: delta must be non-zero", orders.ErrInvalidInput))
		return
	}

	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stock, err := h.Store.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "stock": stock})
}

func (h *ProductsHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fmt.Errorf("%w: invalid json", orders.ErrInvalidInput))
		return
	}

	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.SetActive(ctx, id, req.Active); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": req.Active})
}
