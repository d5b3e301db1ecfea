package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfloor/order-catalog/internal/catalog"
)

type mockCatalog struct {
	createFn func(ctx context.Context, p *catalog.Product) error
	getFn    func(ctx context.Context, id string) (*catalog.Product, error)
	bySKUFn  func(ctx context.Context, sku string) (*catalog.Product, error)
	listFn   func(ctx context.Context) ([]catalog.Product, error)
	adjustFn func(ctx context.Context, id string, delta int) (int, error)
	activeFn func(ctx context.Context, id string, active bool) error
}

func (m *mockCatalog) Create(ctx context.Context, p *catalog.Product) error { return m.createFn(ctx, p) }
func (m *mockCatalog) Get(ctx context.Context, id string) (*catalog.Product, error) {
	return m.getFn(ctx, id)
}
func (m *mockCatalog) GetBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return m.bySKUFn(ctx, sku)
}
func (m *mockCatalog) List(ctx context.Context) ([]catalog.Product, error) { return m.listFn(ctx) }
func (m *mockCatalog) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	return m.adjustFn(ctx, id, delta)
}
func (m *mockCatalog) SetActive(ctx context.Context, id string, active bool) error {
	return m.activeFn(ctx, id, active)
}

func newProductsServer(store CatalogStore) *httptest.Server {
	r := NewRouter()
	(&ProductsHandler{Store: store}).Register(r)
	return httptest.NewServer(r)
}

func TestAdjustStock_OK(t *testing.T) {
	store := &mockCatalog{
		adjustFn: func(_ context.Context, id string, delta int) (int, error) {
			assert.Equal(t, "p1", id)
			assert.Equal(t, -3, delta)
			return 2, nil
		},
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products/p1/stock", AdjustStockReq{Delta: -3})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdjustStock_BelowZeroIs409(t *testing.T) {
	store := &mockCatalog{
		adjustFn: func(context.Context, string, int) (int, error) {
			return 0, catalog.ErrInsufficientStock
		},
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products/p1/stock", AdjustStockReq{Delta: -10})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAdjustStock_ZeroDeltaIs400(t *testing.T) {
	ts := newProductsServer(&mockCatalog{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products/p1/stock", AdjustStockReq{Delta: 0})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjustStock_MissingProductIs404(t *testing.T) {
	store := &mockCatalog{
		adjustFn: func(context.Context, string, int) (int, error) {
			return 0, catalog.ErrNotFound
		},
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products/ghost/stock", AdjustStockReq{Delta: 1})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetProductBySKU(t *testing.T) {
	store := &mockCatalog{
		bySKUFn: func(_ context.Context, sku string) (*catalog.Product, error) {
			assert.Equal(t, "SKU-1", sku)
			return &catalog.Product{ID: "p1", SKU: sku, Name: "Widget"}, nil
		},
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/products/sku/SKU-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateProduct_OK(t *testing.T) {
	store := &mockCatalog{
		createFn: func(_ context.Context, p *catalog.Product) error {
			p.ID = "p1"
			return nil
		},
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products", CreateProductReq{SKU: "SKU-1", Name: "Widget", PriceCents: 1000, Stock: 5})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateProduct_MissingSKUIs400(t *testing.T) {
	ts := newProductsServer(&mockCatalog{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products", CreateProductReq{Name: "Widget", PriceCents: 1000})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateProduct_DuplicateSKUIs409(t *testing.T) {
	store := &mockCatalog{
		createFn: func(context.Context, *catalog.Product) error { return catalog.ErrSKUTaken },
	}
	ts := newProductsServer(store)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/products", CreateProductReq{SKU: "SKU-1", Name: "Widget", PriceCents: 1000})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
