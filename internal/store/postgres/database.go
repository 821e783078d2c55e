// Package postgres is a store.Store backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
	"api_pos/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	maxConns        = 25
	minConns        = 5
	maxConnLifetime = time.Hour
	maxConnIdleTime = 30 * time.Minute
	pingTimeout     = 5 * time.Second

	uniqueViolation = "23505"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage implements store.Store on a pgx connection pool.
type Storage struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

var _ store.Store = (*Storage)(nil)

// New connects to the database at connString and verifies it is reachable.
func New(ctx context.Context, connString string, logger *zap.Logger) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = maxConnLifetime
	config.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, logger: logger, now: time.Now}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
			stock INTEGER NOT NULL CHECK (stock >= 0),
			sku TEXT UNIQUE,
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_active_stock ON products(is_active, stock)`,

		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			total_cents BIGINT NOT NULL,
			tax_cents BIGINT NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL DEFAULT 'cash'
				CHECK (payment_method IN ('cash', 'credit_card', 'debit_card')),
			notes TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_user_id ON sales(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_user_id_created_at ON sales(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS sale_items (
			id TEXT PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id),
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price_cents BIGINT NOT NULL,
			total_price_cents BIGINT NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items(sale_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (s *Storage) Catalog() catalog.Catalog {
	return &productRepo{q: s.pool, s: s}
}

func (s *Storage) Ledger() ledger.Ledger {
	return &saleRepo{q: s.pool, s: s}
}

// Create inserts a new product.
func (s *Storage) Create(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, description, price_cents, stock, sku, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query, p.ID, p.Name, p.Description, int64(p.Price), p.Stock, p.SKU, p.Active, p.CreatedAt, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "products_sku_key" {
		return catalog.ErrDuplicateSKU
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// WithinTx runs fn in a READ COMMITTED transaction. Product reads inside fn
// take row locks (SELECT ... FOR UPDATE) that are held until commit or rollback.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			s.rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx, s: s}); err != nil {
		s.rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.logger.Error("failed to roll back transaction", zap.Error(err))
	}
}

type pgTx struct {
	tx pgx.Tx
	s  *Storage
}

func (t *pgTx) Catalog() catalog.Catalog {
	return &productRepo{q: t.tx, s: t.s, inTx: true}
}

func (t *pgTx) Ledger() ledger.Ledger {
	return &saleRepo{q: t.tx, s: t.s, inTx: true}
}
