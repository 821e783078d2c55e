package postgres

import (
	"context"
	"fmt"
	"time"

	"api_pos/internal/ledger"
	"api_pos/internal/money"
	"api_pos/internal/store"
)

const saleColumns = `id, user_id, total_cents, tax_cents, payment_method, COALESCE(notes, ''), created_at`

type saleRepo struct {
	q    querier
	s    *Storage
	inTx bool
}

func (r *saleRepo) Create(ctx context.Context, sale *ledger.Sale, items []ledger.SaleItem) (*ledger.Sale, error) {
	if !r.inTx {
		var created *ledger.Sale
		err := r.s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			created, err = tx.Ledger().Create(ctx, sale, items)
			return err
		})
		return created, err
	}

	created, err := ledger.Prepare(sale, items, r.s.now().Truncate(time.Microsecond))
	if err != nil {
		return nil, err
	}

	_, err = r.q.Exec(ctx, `
		INSERT INTO sales (id, user_id, total_cents, tax_cents, payment_method, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		created.ID, created.UserID, int64(created.Total), int64(created.Tax),
		string(created.PaymentMethod), created.Notes, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	for i, item := range created.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price_cents, total_price_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity,
			int64(item.UnitPrice), int64(item.TotalPrice), i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale item: %w", err)
		}
	}
	return created, nil
}

func (r *saleRepo) GetByID(ctx context.Context, id string) (*ledger.Sale, error) {
	sales, err := r.querySales(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, ledger.ErrNotFound
	}
	return &sales[0], nil
}

func (r *saleRepo) ListRecent(ctx context.Context, n int) ([]ledger.Sale, error) {
	if n <= 0 {
		return []ledger.Sale{}, nil
	}
	return r.querySales(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC, id DESC LIMIT $1`, n)
}

func (r *saleRepo) ListPaginated(ctx context.Context, page, pageSize int) (ledger.Page, error) {
	page, pageSize = ledger.NormalizePage(page, pageSize)

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM sales`).Scan(&total); err != nil {
		return ledger.Page{}, fmt.Errorf("failed to count sales: %w", err)
	}

	sales, err := r.querySales(ctx,
		`SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pageSize, ledger.Offset(page, pageSize),
	)
	if err != nil {
		return ledger.Page{}, err
	}
	return ledger.NewPage(sales, page, pageSize, total), nil
}

// querySales runs a sales query and attaches the items of every returned sale.
func (r *saleRepo) querySales(ctx context.Context, query string, args ...any) ([]ledger.Sale, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}

	sales := []ledger.Sale{}
	for rows.Next() {
		var s ledger.Sale
		var total, tax int64
		var method string
		if err := rows.Scan(&s.ID, &s.UserID, &total, &tax, &method, &s.Notes, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		s.Total = money.Cents(total)
		s.Tax = money.Cents(tax)
		s.PaymentMethod = ledger.PaymentMethod(method)
		s.CreatedAt = s.CreatedAt.UTC()
		s.Items = []ledger.SaleItem{}
		sales = append(sales, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sales: %w", err)
	}
	if len(sales) == 0 {
		return sales, nil
	}

	if err := r.attachItems(ctx, sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *saleRepo) attachItems(ctx context.Context, sales []ledger.Sale) error {
	ids := make([]string, len(sales))
	index := make(map[string]int, len(sales))
	for i, s := range sales {
		ids[i] = s.ID
		index[s.ID] = i
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price_cents, total_price_cents
		FROM sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, position`, ids)
	if err != nil {
		return fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item ledger.SaleItem
		var unit, total int64
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &unit, &total); err != nil {
			return fmt.Errorf("failed to scan sale item: %w", err)
		}
		item.UnitPrice = money.Cents(unit)
		item.TotalPrice = money.Cents(total)
		i := index[item.SaleID]
		sales[i].Items = append(sales[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read sale items: %w", err)
	}
	return nil
}
