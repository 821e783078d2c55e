package postgres

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/catalog"
	"api_pos/internal/money"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, description, price_cents, stock, COALESCE(sku, ''), is_active, created_at, updated_at`

type productRepo struct {
	q    querier
	s    *Storage
	inTx bool
}

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	var price int64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.SKU, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Price = money.Cents(price)
	return &p, nil
}

func (r *productRepo) FindActiveInStock(ctx context.Context) ([]catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active AND stock > 0 ORDER BY name, id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// GetByID locks the product row when called inside a transaction.
func (r *productRepo) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	p, err := scanProduct(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

func (r *productRepo) DecrementStock(ctx context.Context, id string, amount int) error {
	if amount <= 0 {
		return catalog.ErrInvalidAmount
	}

	query := `UPDATE products SET stock = stock - $2, updated_at = $3 WHERE id = $1 AND stock >= $2`
	tag, err := r.q.Exec(ctx, query, id, amount, r.s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to decrement stock for %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return catalog.NewInsufficientStockError(p, amount)
}
