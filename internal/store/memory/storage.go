// Package memory is an in-process Store. Units of work are serialized behind a
// single writer lock and buffer their changes until they succeed.
package memory

import (
	"context"
	"sync"
	"time"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
	"api_pos/internal/store"
)

// LocalStorage provides an in-memory implementation of store.Store.
type LocalStorage struct {
	mu       sync.RWMutex
	products map[string]*catalog.Product
	skus     map[string]string
	sales    map[string]*ledger.Sale
	// saleOrder holds sale IDs in creation order.
	saleOrder []string
	now       func() time.Time
}

var _ store.Store = (*LocalStorage)(nil)

// NewLocalStorage instantiates an empty LocalStorage.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		products: map[string]*catalog.Product{},
		skus:     map[string]string{},
		sales:    map[string]*ledger.Sale{},
		now:      time.Now,
	}
}

func (l *LocalStorage) Catalog() catalog.Catalog {
	return catalogView{s: l}
}

func (l *LocalStorage) Ledger() ledger.Ledger {
	return ledgerView{s: l}
}

// Create stores a copy of p. Returns catalog.ErrDuplicateSKU if the SKU is taken.
func (l *LocalStorage) Create(_ context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p.SKU != "" {
		if _, taken := l.skus[p.SKU]; taken {
			return catalog.ErrDuplicateSKU
		}
		l.skus[p.SKU] = p.ID
	}
	stored := *p
	l.products[p.ID] = &stored
	return nil
}

// WithinTx holds the writer lock for the whole of fn, which makes every unit
// of work serializable with respect to the others.
func (l *LocalStorage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{s: l, stock: map[string]int{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (l *LocalStorage) Close() {}

// memTx is the write set of one unit of work. It is only touched while the
// owning WithinTx call holds the writer lock.
type memTx struct {
	s     *LocalStorage
	stock map[string]int
	sales []*ledger.Sale
}

func (tx *memTx) Catalog() catalog.Catalog {
	return catalogView{s: tx.s, tx: tx}
}

func (tx *memTx) Ledger() ledger.Ledger {
	return ledgerView{s: tx.s, tx: tx}
}

func (tx *memTx) apply() {
	now := tx.s.now().UTC()
	for id, stock := range tx.stock {
		p := tx.s.products[id]
		p.Stock = stock
		p.UpdatedAt = now
	}
	for _, sale := range tx.sales {
		tx.s.sales[sale.ID] = sale
		tx.s.saleOrder = append(tx.s.saleOrder, sale.ID)
	}
}

func copySale(s *ledger.Sale) ledger.Sale {
	c := *s
	c.Items = append([]ledger.SaleItem(nil), s.Items...)
	return c
}
