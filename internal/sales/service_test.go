package sales

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
	"api_pos/internal/money"
	"api_pos/internal/store"
	"api_pos/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setup(t *testing.T) (*Service, *memory.LocalStorage) {
	t.Helper()
	storage := memory.NewLocalStorage()
	return NewService(storage, zaptest.NewLogger(t), nil), storage
}

func addProduct(t *testing.T, s *memory.LocalStorage, name, price string, stock int) *catalog.Product {
	t.Helper()
	p := catalog.NewProduct(name, "", money.MustParse(price), stock, "")
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, s *memory.LocalStorage, id string) int {
	t.Helper()
	p, err := s.Catalog().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func cashSale(lines ...CartLine) SaleRequest {
	return SaleRequest{Lines: lines, PaymentMethod: ledger.Cash, UserID: "cashier-1"}
}

// TestNewService verifies service initialization.
func TestNewService(t *testing.T) {
	svc := NewService(memory.NewLocalStorage(), nil, nil)

	require.NotNil(t, svc)
	assert.NotNil(t, svc.store)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.tracer)
}

func TestCompleteSale_SingleLine(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)

	sale, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 3}))

	require.NoError(t, err)
	assert.NotEmpty(t, sale.ID)
	assert.False(t, sale.CreatedAt.IsZero())
	assert.Equal(t, money.MustParse("7.50"), sale.Total)
	assert.Equal(t, money.Cents(0), sale.Tax)
	assert.Equal(t, "cashier-1", sale.UserID)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, money.MustParse("7.50"), sale.Items[0].TotalPrice)
	assert.Equal(t, money.MustParse("2.50"), sale.Items[0].UnitPrice)
	assert.Equal(t, "Coffee", sale.Items[0].ProductName)
	assert.Equal(t, 7, stockOf(t, storage, coffee.ID))

	stored, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Total, stored.Total)
}

func TestCompleteSale_TotalsAndStock(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 50)
	sandwich := addProduct(t, storage, "Sandwich", "5.99", 25)
	soda := addProduct(t, storage, "Soda", "1.99", 100)
	chips := addProduct(t, storage, "Chips", "1.49", 75)

	req := cashSale(
		CartLine{ProductID: sandwich.ID, Quantity: 2},
		CartLine{ProductID: coffee.ID, Quantity: 1},
		CartLine{ProductID: soda.ID, Quantity: 3},
	)
	req.Tax = money.MustParse("1.23")
	req.PaymentMethod = ledger.CreditCard
	req.Notes = "no ice"

	sale, err := svc.CompleteSale(context.Background(), req)
	require.NoError(t, err)

	var sum money.Cents
	for _, item := range sale.Items {
		assert.Equal(t, item.UnitPrice.Times(item.Quantity), item.TotalPrice)
		sum += item.TotalPrice
	}
	assert.Equal(t, sum+req.Tax, sale.Total)
	assert.Equal(t, money.MustParse("21.68"), sale.Total)
	assert.Equal(t, "no ice", sale.Notes)
	assert.Equal(t, ledger.CreditCard, sale.PaymentMethod)

	// items keep cart order
	assert.Equal(t, sandwich.ID, sale.Items[0].ProductID)
	assert.Equal(t, coffee.ID, sale.Items[1].ProductID)
	assert.Equal(t, soda.ID, sale.Items[2].ProductID)

	assert.Equal(t, 49, stockOf(t, storage, coffee.ID))
	assert.Equal(t, 23, stockOf(t, storage, sandwich.ID))
	assert.Equal(t, 97, stockOf(t, storage, soda.ID))
	assert.Equal(t, 75, stockOf(t, storage, chips.ID), "products outside the cart are untouched")
}

func TestCompleteSale_RepeatedProductSeesEarlierLines(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 3)

	_, err := svc.CompleteSale(context.Background(), cashSale(
		CartLine{ProductID: coffee.ID, Quantity: 2},
		CartLine{ProductID: coffee.ID, Quantity: 2},
	))
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, 3, stockOf(t, storage, coffee.ID))

	sale, err := svc.CompleteSale(context.Background(), cashSale(
		CartLine{ProductID: coffee.ID, Quantity: 2},
		CartLine{ProductID: coffee.ID, Quantity: 1},
	))
	require.NoError(t, err)
	assert.Len(t, sale.Items, 2)
	assert.Equal(t, 0, stockOf(t, storage, coffee.ID))
}

func TestCompleteSale_InsufficientStock(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 1)

	sale, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 2}))

	assert.Nil(t, sale)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Coffee")

	var stockErr *catalog.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, coffee.ID, stockErr.ProductID)

	assert.Equal(t, 1, stockOf(t, storage, coffee.ID))
	recent, _ := svc.ListRecentSales(context.Background(), 10)
	assert.Empty(t, recent)
}

func TestCompleteSale_TotalOverflowIsRejected(t *testing.T) {
	tests := []struct {
		name       string
		quantities []int
		field      string
	}{
		{"line total", []int{1, 1_000_000_000}, "items.1.quantity"},
		{"running subtotal", []int{900_000_000, 900_000_000}, "items.1.quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, storage := setup(t)
			gold := addProduct(t, storage, "Gold", catalog.MaxPrice.String(), 2_000_000_000)

			var lines []CartLine
			for _, qty := range tt.quantities {
				lines = append(lines, CartLine{ProductID: gold.ID, Quantity: qty})
			}
			sale, err := svc.CompleteSale(context.Background(), cashSale(lines...))

			assert.Nil(t, sale)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorIs(t, err, money.ErrOutOfRange)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Contains(t, validationErr.Fields, tt.field)

			assert.Equal(t, 2_000_000_000, stockOf(t, storage, gold.ID))
			recent, _ := svc.ListRecentSales(context.Background(), 10)
			assert.Empty(t, recent)
		})
	}
}

func TestCompleteSale_FailureLeavesEarlierLinesUntouched(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)
	soda := addProduct(t, storage, "Soda", "1.99", 1)

	_, err := svc.CompleteSale(context.Background(), cashSale(
		CartLine{ProductID: coffee.ID, Quantity: 4},
		CartLine{ProductID: soda.ID, Quantity: 5},
	))
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	assert.Equal(t, 10, stockOf(t, storage, coffee.ID))
	assert.Equal(t, 1, stockOf(t, storage, soda.ID))
}

func TestCompleteSale_ProductNotFound(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)

	_, err := svc.CompleteSale(context.Background(), cashSale(
		CartLine{ProductID: coffee.ID, Quantity: 1},
		CartLine{ProductID: "does-not-exist", Quantity: 1},
	))

	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Contains(t, err.Error(), "does-not-exist")
	assert.Equal(t, 10, stockOf(t, storage, coffee.ID))

	page, err := svc.ListSales(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestCompleteSale_LedgerFailureRollsBackStock(t *testing.T) {
	storage := memory.NewLocalStorage()
	failing := &failingLedgerStore{LocalStorage: storage, err: errors.New("disk full")}
	svc := NewService(failing, zaptest.NewLogger(t), nil)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)

	_, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 3}))

	assert.ErrorIs(t, err, failing.err)
	assert.Equal(t, 10, stockOf(t, storage, coffee.ID))
}

func TestCompleteSale_ValidationTouchesNoStorage(t *testing.T) {
	spy := &spyStore{LocalStorage: memory.NewLocalStorage()}
	svc := NewService(spy, zaptest.NewLogger(t), nil)

	_, err := svc.CompleteSale(context.Background(), cashSale())

	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "items")
	assert.Equal(t, 0, spy.txCount)
}

func TestSaleRequestValidate(t *testing.T) {
	valid := func() SaleRequest {
		return SaleRequest{
			Lines:         []CartLine{{ProductID: "p1", Quantity: 1}},
			PaymentMethod: ledger.DebitCard,
			UserID:        "u1",
		}
	}

	tests := []struct {
		name   string
		mutate func(r *SaleRequest)
		field  string
	}{
		{"empty cart", func(r *SaleRequest) { r.Lines = nil }, "items"},
		{"zero quantity", func(r *SaleRequest) { r.Lines[0].Quantity = 0 }, "items.0.quantity"},
		{"negative quantity", func(r *SaleRequest) { r.Lines[0].Quantity = -2 }, "items.0.quantity"},
		{"missing product", func(r *SaleRequest) { r.Lines[0].ProductID = "" }, "items.0.product_id"},
		{"bad payment method", func(r *SaleRequest) { r.PaymentMethod = "voucher" }, "payment_method"},
		{"negative tax", func(r *SaleRequest) { r.Tax = -1 }, "tax"},
		{"tax too large", func(r *SaleRequest) { r.Tax = MaxTax + 1 }, "tax"},
		{"notes too long", func(r *SaleRequest) { r.Notes = strings.Repeat("a", MaxNotesLength+1) }, "notes"},
		{"missing user", func(r *SaleRequest) { r.UserID = "" }, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			err := req.Validate()
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	t.Run("boundaries are accepted", func(t *testing.T) {
		req := valid()
		req.Tax = MaxTax
		req.Notes = strings.Repeat("é", MaxNotesLength)
		assert.NoError(t, req.Validate())
	})
}

func TestCompleteSale_LastUnitRace(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc, storage := setup(t)
		bar := addProduct(t, storage, "Energy Bar", "2.99", 1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: bar.ID, Quantity: 1}))
			}(i)
		}
		close(start)
		wg.Wait()

		var ok, rejected int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, catalog.ErrInsufficientStock):
				rejected++
			}
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 1, rejected)
		require.Equal(t, 0, stockOf(t, storage, bar.ID))
	}
}

func TestCompleteSale_ConcurrentCartsConserveStock(t *testing.T) {
	svc, storage := setup(t)
	a := addProduct(t, storage, "Coffee", "2.50", 30)
	b := addProduct(t, storage, "Soda", "1.99", 30)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lines := []CartLine{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 2}}
			if i%2 == 0 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			_, _ = svc.CompleteSale(context.Background(), cashSale(lines...))
		}(i)
	}
	wg.Wait()

	page, err := svc.ListSales(context.Background(), 1, ledger.MaxPageSize)
	require.NoError(t, err)

	soldA, soldB := 0, 0
	for _, sale := range page.Sales {
		for _, item := range sale.Items {
			switch item.ProductID {
			case a.ID:
				soldA += item.Quantity
			case b.ID:
				soldB += item.Quantity
			}
		}
	}
	assert.Equal(t, 15, page.Total, "soda runs out after 15 carts")
	assert.Equal(t, 30-soldA, stockOf(t, storage, a.ID))
	assert.Equal(t, 30-soldB, stockOf(t, storage, b.ID))
	assert.Equal(t, 0, stockOf(t, storage, b.ID))
}

func TestCompleteSale_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	storage := memory.NewLocalStorage()
	svc := NewService(storage, zaptest.NewLogger(t), provider.Tracer("test"))
	coffee := addProduct(t, storage, "Coffee", "2.50", 1)

	_, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 1}))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "sales.complete", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestListPurchasableProducts(t *testing.T) {
	svc, storage := setup(t)
	addProduct(t, storage, "Coffee", "2.50", 1)
	addProduct(t, storage, "Sold out", "1.00", 0)

	products, err := svc.ListPurchasableProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Coffee", products[0].Name)
}

func TestGetSale_NotFound(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.GetSale(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListRecentSales(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)

	var last string
	for i := 0; i < 7; i++ {
		sale, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 1}))
		require.NoError(t, err)
		last = sale.ID
	}

	recent, err := svc.ListRecentSales(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, last, recent[0].ID)
}

func TestCompletedSalesAreImmutable(t *testing.T) {
	svc, storage := setup(t)
	coffee := addProduct(t, storage, "Coffee", "2.50", 10)
	sale, err := svc.CompleteSale(context.Background(), cashSale(CartLine{ProductID: coffee.ID, Quantity: 1}))
	require.NoError(t, err)

	for _, id := range []string{sale.ID, "unknown"} {
		assert.ErrorIs(t, svc.UpdateSale(context.Background(), id, "cashier-1"), ErrForbidden)
		assert.ErrorIs(t, svc.DeleteSale(context.Background(), id, "admin"), ErrForbidden)
	}

	stored, err := svc.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Total, stored.Total)
}

// failingLedgerStore fails every ledger write made inside a unit of work.
type failingLedgerStore struct {
	*memory.LocalStorage
	err error
}

func (f *failingLedgerStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return f.LocalStorage.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingTx{Tx: tx, err: f.err})
	})
}

type failingTx struct {
	store.Tx
	err error
}

func (t failingTx) Ledger() ledger.Ledger {
	return failingLedger{Ledger: t.Tx.Ledger(), err: t.err}
}

type failingLedger struct {
	ledger.Ledger
	err error
}

func (l failingLedger) Create(context.Context, *ledger.Sale, []ledger.SaleItem) (*ledger.Sale, error) {
	return nil, l.err
}

// spyStore counts units of work.
type spyStore struct {
	*memory.LocalStorage
	txCount int
}

func (s *spyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.txCount++
	return s.LocalStorage.WithinTx(ctx, fn)
}
