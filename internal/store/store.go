// Package store defines the unit of work shared by the product catalog and the
// sale ledger.
package store

import (
	"context"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
)

// Tx exposes the catalog and ledger bound to one unit of work.
type Tx interface {
	Catalog() catalog.Catalog
	Ledger() ledger.Ledger
}

// Store is a persistence backend. Catalog and Ledger called directly on the
// store run outside any caller transaction; each mutating call is atomic on its own.
type Store interface {
	Tx
	catalog.Writer

	// WithinTx runs fn in a single atomic unit of work. If fn returns an error or
	// panics, nothing fn did through tx becomes visible. Product reads made through
	// tx observe committed stock and hold it until the unit of work ends, so two
	// concurrent units of work cannot both spend the same stock.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close()
}
