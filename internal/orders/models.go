package orders

import "time"

type Order struct {
	ID            string      `json:"id"`
	ExternalID    string      `json:"external_id,omitempty"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Status        Status      `json:"status"`
	TotalCents    int         `json:"total_cents"`
	Notes         string      `json:"notes,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// PriceCents is the unit price captured when the order was created; it never
// tracks later catalog price changes.
type OrderItem struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Notes string `json:"notes,omitempty"`
}
