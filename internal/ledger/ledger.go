package ledger

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a sale with the given ID is not found.
	ErrNotFound = errors.New("sale not found")

	// ErrEmptySale is returned when creating a sale without line items.
	ErrEmptySale = errors.New("sale must have at least one item")

	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// Ledger stores completed sales. There is deliberately no update or delete.
type Ledger interface {
	// Create persists sale and its items as a single unit and returns the stored
	// aggregate with generated identifiers and creation time.
	Create(ctx context.Context, sale *Sale, items []SaleItem) (*Sale, error)
	GetByID(ctx context.Context, id string) (*Sale, error)
	// ListRecent returns at most n sales, newest first.
	ListRecent(ctx context.Context, n int) ([]Sale, error)
	// ListPaginated returns one page of sales, newest first.
	ListPaginated(ctx context.Context, page, pageSize int) (Page, error)
}
