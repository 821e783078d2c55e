package memory

import (
	"context"

	"api_pos/internal/ledger"
	"api_pos/internal/store"
)

type ledgerView struct {
	s  *LocalStorage
	tx *memTx
}

func (v ledgerView) Create(ctx context.Context, sale *ledger.Sale, items []ledger.SaleItem) (*ledger.Sale, error) {
	if v.tx == nil {
		var created *ledger.Sale
		err := v.s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			created, err = tx.Ledger().Create(ctx, sale, items)
			return err
		})
		return created, err
	}

	prepared, err := ledger.Prepare(sale, items, v.s.now())
	if err != nil {
		return nil, err
	}
	v.tx.sales = append(v.tx.sales, prepared)
	out := copySale(prepared)
	return &out, nil
}

func (v ledgerView) GetByID(_ context.Context, id string) (*ledger.Sale, error) {
	if v.tx == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	for _, s := range v.newestFirst() {
		if s.ID == id {
			out := copySale(s)
			return &out, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (v ledgerView) ListRecent(_ context.Context, n int) ([]ledger.Sale, error) {
	if v.tx == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	all := v.newestFirst()
	if n < 0 {
		n = 0
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]ledger.Sale, 0, n)
	for _, s := range all[:n] {
		out = append(out, copySale(s))
	}
	return out, nil
}

func (v ledgerView) ListPaginated(_ context.Context, page, pageSize int) (ledger.Page, error) {
	if v.tx == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}

	page, pageSize = ledger.NormalizePage(page, pageSize)
	all := v.newestFirst()
	start := min(ledger.Offset(page, pageSize), len(all))
	end := min(start+pageSize, len(all))

	sales := make([]ledger.Sale, 0, end-start)
	for _, s := range all[start:end] {
		sales = append(sales, copySale(s))
	}
	return ledger.NewPage(sales, page, pageSize, len(all)), nil
}

// newestFirst lists pending sales of the unit of work, if any, followed by
// committed sales, each newest first. Callers hold the lock.
func (v ledgerView) newestFirst() []*ledger.Sale {
	var all []*ledger.Sale
	if v.tx != nil {
		for i := len(v.tx.sales) - 1; i >= 0; i-- {
			all = append(all, v.tx.sales[i])
		}
	}
	for i := len(v.s.saleOrder) - 1; i >= 0; i-- {
		all = append(all, v.s.sales[v.s.saleOrder[i]])
	}
	return all
}
