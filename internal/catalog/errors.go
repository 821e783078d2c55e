package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when no product has the given ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a decrement would leave stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateSKU is returned when creating a product whose SKU is already taken.
	ErrDuplicateSKU = errors.New("sku already exists")

	// ErrInvalidProduct wraps every product field violation.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrEmptyID is returned when trying to store a product with an empty ID.
	ErrEmptyID = errors.New("empty product ID")

	// ErrInvalidAmount is returned for non-positive stock decrements.
	ErrInvalidAmount = errors.New("stock amount must be greater than zero")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProduct, msg)
}

// InsufficientStockError identifies the product that could not cover a request.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NewInsufficientStockError reports that p cannot cover requested units.
func NewInsufficientStockError(p *Product, requested int) error {
	return &InsufficientStockError{
		ProductID: p.ID,
		Name:      p.Name,
		Requested: requested,
		Available: p.Stock,
	}
}
