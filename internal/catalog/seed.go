package catalog

import (
	"context"
	"errors"
	"fmt"

	"api_pos/internal/money"

	"go.uber.org/zap"
)

// DefaultProducts returns the starter assortment a fresh till is stocked with.
func DefaultProducts() []*Product {
	return []*Product{
		NewProduct("Coffee", "Freshly brewed coffee", money.MustParse("2.50"), 50, "COF001"),
		NewProduct("Sandwich", "Ham and cheese sandwich", money.MustParse("5.99"), 25, "SAN001"),
		NewProduct("Soda", "Cold soft drink", money.MustParse("1.99"), 100, "SOD001"),
		NewProduct("Chips", "Potato chips", money.MustParse("1.49"), 75, "CHI001"),
		NewProduct("Energy Bar", "Nutritious energy bar", money.MustParse("2.99"), 30, "ENE001"),
	}
}

// Seed creates the given products, skipping any whose SKU already exists.
// It returns the number of products created.
func Seed(ctx context.Context, w Writer, products []*Product, logger *zap.Logger) (int, error) {
	created := 0
	for _, p := range products {
		err := w.Create(ctx, p)
		if errors.Is(err, ErrDuplicateSKU) {
			logger.Info("product already seeded", zap.String("sku", p.SKU))
			continue
		}
		if err != nil {
			return created, fmt.Errorf("failed to seed product %s: %w", p.SKU, err)
		}
		created++
	}
	logger.Info("catalog seeded", zap.Int("created", created), zap.Int("total", len(products)))
	return created, nil
}
