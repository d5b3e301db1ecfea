package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// errNotCancellable is internal; Cancel and Transition map it to the error
// kind their contract promises.
var errNotCancellable = errors.New("order not cancellable")

// CreateOrder persists the order, its items, and every stock decrement in a
// single transaction. Prices are read inside the transaction and snapshotted
// onto the items; any shortage or missing product rolls the whole thing back.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// lock product rows in a stable order so concurrent orders never deadlock
	idx := make([]int, len(o.Items))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return o.Items[idx[a]].ProductID < o.Items[idx[b]].ProductID })

	var shortages []StockShortage
	total := 0
	for _, i := range idx {
		it := &o.Items[i]
		var price, stock int
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT price_cents, stock, active FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&price, &stock, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return err
		}
		if !active {
			// inactive products are not orderable; same outcome as absent
			return fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if stock < it.Qty {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Qty, Available: stock})
			continue
		}
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Qty, Available: stock})
			continue
		}
		it.PriceCents = price
		total += price * it.Qty
	}
	if len(shortages) > 0 {
		return &StockError{Shortages: shortages} // rollback via defer
	}

	o.Status = StatusPending
	o.TotalCents = total
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, external_id, customer_name, customer_email, status, total_cents, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.ID, nullable(o.ExternalID), o.CustomerName, o.CustomerEmail, o.Status, o.TotalCents, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := r.scanOrder(ctx, r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(external_id, ''), customer_name, customer_email, status, total_cents, notes, created_at, updated_at
		FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	o, err := r.scanOrder(ctx, r.DB.QueryRow(ctx, `
		SELECT id, COALESCE(external_id, ''), customer_name, customer_email, status, total_cents, notes, created_at, updated_at
		FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) scanOrder(ctx context.Context, row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.CustomerName, &o.CustomerEmail, &o.Status, &o.TotalCents, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, qty, price_cents FROM order_items WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, COALESCE(external_id, ''), customer_name, customer_email, status, total_cents, notes, created_at, updated_at
		FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ExternalID, &o.CustomerName, &o.CustomerEmail, &o.Status, &o.TotalCents, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Transition moves an order along the status table. A CANCELLED target runs
// the full cancellation routine (stock restore included) so the generic verb
// and the explicit cancel verb share one guard.
func (r *Repo) Transition(ctx context.Context, id string, to Status) (Status, []ItemQty, error) {
	if to == StatusCancelled {
		prev, restocked, err := r.cancelTx(ctx, id)
		if errors.Is(err, errNotCancellable) {
			return prev, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, to)
		}
		return prev, restocked, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback(ctx)

	var prev Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrOrderNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if !CanTransition(prev, to) {
		return prev, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, to); err != nil {
		return prev, nil, err
	}
	return prev, nil, tx.Commit(ctx)
}

// Cancel is the explicit cancellation entry; same routine as
// Transition(CANCELLED), surfaced as ErrInvalidOperation on a bad origin.
func (r *Repo) Cancel(ctx context.Context, id string) (Status, []ItemQty, error) {
	prev, restocked, err := r.cancelTx(ctx, id)
	if errors.Is(err, errNotCancellable) {
		return prev, nil, fmt.Errorf("%w: cancel from %s", ErrInvalidOperation, prev)
	}
	return prev, restocked, err
}

// cancelTx restores stock for every item and sets CANCELLED, atomically.
func (r *Repo) cancelTx(ctx context.Context, id string) (Status, []ItemQty, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback(ctx)

	var prev Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrOrderNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if !CanCancel(prev) {
		return prev, nil, errNotCancellable
	}

	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, id)
	if err != nil {
		return prev, nil, err
	}
	var items []ItemQty
	for rows.Next() {
		var it ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			rows.Close()
			return prev, nil, err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return prev, nil, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Qty); err != nil {
			return prev, nil, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, StatusCancelled); err != nil {
		return prev, nil, err
	}
	return prev, items, tx.Commit(ctx)
}

// PriceItems quotes a total against current prices without persisting
// anything. The quote can drift from a later creation-time total.
func (r *Repo) PriceItems(ctx context.Context, items []ItemInput) (int, []OrderItem, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, price_cents, active FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	type priced struct {
		price  int
		active bool
	}
	prices := map[string]priced{}
	for rows.Next() {
		var id string
		var p priced
		if err := rows.Scan(&id, &p.price, &p.active); err != nil {
			return 0, nil, err
		}
		prices[id] = p
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	total := 0
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		p, ok := prices[it.ProductID]
		if !ok || !p.active {
			return 0, nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		total += p.price * it.Qty
		out = append(out, OrderItem{ProductID: it.ProductID, Qty: it.Qty, PriceCents: p.price})
	}
	return total, out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
