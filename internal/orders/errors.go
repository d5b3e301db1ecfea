package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidOperation  = errors.New("operation not allowed for current status")
	ErrInvalidInput      = errors.New("invalid input")
)

type StockShortage struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockError carries per-product shortage details; errors.Is matches it
// against ErrInsufficientStock.
type StockError struct {
	Shortages []StockShortage
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Shortages))
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
