package memory

import (
	"context"
	"slices"
	"strings"

	"api_pos/internal/catalog"
	"api_pos/internal/store"
)

// catalogView serves catalog.Catalog either from committed state (tx == nil)
// or through a unit of work.
type catalogView struct {
	s  *LocalStorage
	tx *memTx
}

func (v catalogView) stockOf(p *catalog.Product) int {
	if v.tx != nil {
		if stock, ok := v.tx.stock[p.ID]; ok {
			return stock
		}
	}
	return p.Stock
}

func (v catalogView) FindActiveInStock(_ context.Context) ([]catalog.Product, error) {
	if v.tx == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	products := make([]catalog.Product, 0, len(v.s.products))
	for _, p := range v.s.products {
		c := *p
		c.Stock = v.stockOf(p)
		if c.Purchasable() {
			products = append(products, c)
		}
	}
	slices.SortFunc(products, func(a, b catalog.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (v catalogView) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	if v.tx == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	p, ok := v.s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	c := *p
	c.Stock = v.stockOf(p)
	return &c, nil
}

func (v catalogView) DecrementStock(ctx context.Context, id string, amount int) error {
	if v.tx == nil {
		return v.s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.Catalog().DecrementStock(ctx, id, amount)
		})
	}

	if amount <= 0 {
		return catalog.ErrInvalidAmount
	}
	p, ok := v.s.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	stock := v.stockOf(p)
	if stock < amount {
		c := *p
		c.Stock = stock
		return catalog.NewInsufficientStockError(&c, amount)
	}
	v.tx.stock[id] = stock - amount
	return nil
}
