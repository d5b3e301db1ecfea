package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSKUTaken          = errors.New("sku already exists")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, sku, name, price_cents, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku) DO NOTHING
		RETURNING created_at, updated_at`,
		p.ID, p.SKU, p.Name, p.PriceCents, p.Stock, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSKUTaken
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (*Product, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `
		SELECT id, sku, name, price_cents, stock, active, created_at, updated_at
		FROM products WHERE id=$1`, id))
}

func (r *Repo) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return r.scanOne(r.DB.QueryRow(ctx, `
		SELECT id, sku, name, price_cents, stock, active, created_at, updated_at
		FROM products WHERE sku=$1`, sku))
}

func (r *Repo) scanOne(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, price_cents, stock, active, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustStock applies an inventory delta as a single conditional update so
// it serializes against order-driven stock mutation on the same row. A
// negative delta that would take stock below zero leaves the row untouched.
func (r *Repo) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`, id, delta,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		// row missing, or the guard rejected the delta
		var exists bool
		if err2 := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists); err2 != nil {
			return 0, err2
		}
		if !exists {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: adjust by %d", ErrInsufficientStock, delta)
	}
	if err != nil {
		return 0, err
	}
	return stock, nil
}

func (r *Repo) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
