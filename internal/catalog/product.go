package catalog

import (
	"context"
	"time"

	"api_pos/internal/money"

	"github.com/google/uuid"
)

// LowStockThreshold is the stock level at or below which a product is flagged as running low.
const LowStockThreshold = 5

// MaxPrice is the highest unit price a product may carry (99999999.99).
const MaxPrice money.Cents = 9999999999

// Product is a sellable catalog item together with its on-hand stock.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       money.Cents `json:"price"`
	Stock       int         `json:"stock"`
	SKU         string      `json:"sku,omitempty"`
	Active      bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewProduct builds an active product with a fresh identifier.
func NewProduct(name, description string, price money.Cents, stock int, sku string) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		Stock:       stock,
		SKU:         sku,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Purchasable reports whether the product can be put in a cart right now.
func (p Product) Purchasable() bool {
	return p.Active && p.Stock > 0
}

func (p Product) LowStock() bool {
	return p.Stock <= LowStockThreshold
}

// Validate checks the invariants every stored product must satisfy.
func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return ErrEmptyID
	case p.Name == "":
		return invalid("name is required")
	case p.Price < 0:
		return invalid("price cannot be negative")
	case p.Price > MaxPrice:
		return invalid("price cannot exceed " + MaxPrice.String())
	case p.Stock < 0:
		return invalid("stock cannot be negative")
	}
	return nil
}

// Catalog is the product contract consumed by sale completion.
//
// When obtained from a store transaction, GetByID returns the current committed
// stock and DecrementStock takes effect only if the transaction commits.
type Catalog interface {
	// FindActiveInStock returns active products with stock > 0, ordered by name.
	// The result is a snapshot, not a reservation.
	FindActiveInStock(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// DecrementStock subtracts amount from the product's stock and fails with
	// ErrInsufficientStock if the result would be negative.
	DecrementStock(ctx context.Context, id string, amount int) error
}

// Writer adds products to the catalog. Catalog management beyond creation is
// handled outside this service.
type Writer interface {
	Create(ctx context.Context, p *Product) error
}
