package sales

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
	"api_pos/internal/money"
	"api_pos/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "api_pos/internal/sales"

// ErrForbidden is returned for any attempt to change a completed sale.
var ErrForbidden = errors.New("forbidden")

// Service completes sales and serves the catalog and sales history to callers.
type Service struct {
	store  store.Store
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService creates a new Service. A nil tracer falls back to the global provider.
func NewService(store store.Store, logger *zap.Logger, tracer trace.Tracer) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		store:  store,
		logger: logger,
		tracer: tracer,
	}
}

// CompleteSale validates the cart, then in one unit of work checks and
// decrements stock for every line, snapshots prices and records the sale.
// Any failure leaves stock and the ledger untouched.
func (s *Service) CompleteSale(ctx context.Context, req SaleRequest) (*ledger.Sale, error) {
	ctx, span := s.tracer.Start(ctx, "sales.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("sale.user_id", req.UserID),
		attribute.Int("sale.lines", len(req.Lines)),
		attribute.String("sale.payment_method", string(req.PaymentMethod)),
	)

	if err := req.Validate(); err != nil {
		s.logger.Warn("sale rejected", zap.String("user_id", req.UserID), zap.Error(err))
		recordError(span, err)
		return nil, err
	}

	var sale *ledger.Sale
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sale, err = complete(ctx, tx, req)
		return err
	})
	if err != nil {
		if isCartError(err) {
			s.logger.Warn("sale rejected", zap.String("user_id", req.UserID), zap.Error(err))
		} else {
			s.logger.Error("failed to complete sale", zap.String("user_id", req.UserID), zap.Error(err))
		}
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("sale.id", sale.ID),
		attribute.String("sale.total", sale.Total.String()),
	)
	span.SetStatus(codes.Ok, "sale completed")

	s.logger.Info("sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("user_id", sale.UserID),
		zap.Stringer("total", sale.Total),
		zap.Int("items", len(sale.Items)),
	)
	return sale, nil
}

func complete(ctx context.Context, tx store.Tx, req SaleRequest) (*ledger.Sale, error) {
	products := tx.Catalog()

	if err := lockProducts(ctx, products, req.Lines); err != nil {
		return nil, err
	}

	var subtotal money.Cents
	items := make([]ledger.SaleItem, 0, len(req.Lines))
	for i, line := range req.Lines {
		p, err := getProduct(ctx, products, line.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < line.Quantity {
			return nil, catalog.NewInsufficientStockError(p, line.Quantity)
		}

		lineTotal, err := p.Price.Mul(line.Quantity)
		if err == nil {
			subtotal, err = subtotal.Add(lineTotal)
		}
		if err != nil {
			return nil, amountTooLarge(fmt.Sprintf("items.%d.quantity", i), err)
		}
		items = append(items, ledger.NewItem(p.ID, p.Name, line.Quantity, p.Price))

		if err := products.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
			return nil, err
		}
	}

	total, err := subtotal.Add(req.Tax)
	if err != nil {
		return nil, amountTooLarge("tax", err)
	}

	return tx.Ledger().Create(ctx, &ledger.Sale{
		UserID:        req.UserID,
		Total:         total,
		Tax:           req.Tax,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}, items)
}

func amountTooLarge(field string, err error) error {
	return &ValidationError{
		Fields: map[string]string{field: "The sale total is too large."},
		cause:  err,
	}
}

// lockProducts reads every distinct product of the cart in ascending ID order.
// Inside a transaction the reads take row locks, so carts sharing products
// always lock them in the same order.
func lockProducts(ctx context.Context, products catalog.Catalog, lines []CartLine) error {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)

	for _, id := range slices.Compact(ids) {
		if _, err := getProduct(ctx, products, id); err != nil {
			return err
		}
	}
	return nil
}

func getProduct(ctx context.Context, products catalog.Catalog, id string) (*catalog.Product, error) {
	p, err := products.GetByID(ctx, id)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	return p, err
}

func isCartError(err error) bool {
	return errors.Is(err, catalog.ErrProductNotFound) ||
		errors.Is(err, catalog.ErrInsufficientStock) ||
		errors.Is(err, ErrValidation)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ListPurchasableProducts returns the products a cashier can currently sell.
func (s *Service) ListPurchasableProducts(ctx context.Context) ([]catalog.Product, error) {
	products, err := s.store.Catalog().FindActiveInStock(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (*ledger.Sale, error) {
	sale, err := s.store.Ledger().GetByID(ctx, id)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		s.logger.Error("failed to get sale", zap.String("sale_id", id), zap.Error(err))
	}
	return sale, err
}

// ListSales returns one page of the sales history, newest first.
func (s *Service) ListSales(ctx context.Context, page, pageSize int) (ledger.Page, error) {
	result, err := s.store.Ledger().ListPaginated(ctx, page, pageSize)
	if err != nil {
		s.logger.Error("failed to list sales", zap.Int("page", page), zap.Int("page_size", pageSize), zap.Error(err))
		return ledger.Page{}, fmt.Errorf("failed to list sales: %w", err)
	}
	return result, nil
}

func (s *Service) ListRecentSales(ctx context.Context, n int) ([]ledger.Sale, error) {
	sales, err := s.store.Ledger().ListRecent(ctx, n)
	if err != nil {
		s.logger.Error("failed to list recent sales", zap.Int("limit", n), zap.Error(err))
		return nil, fmt.Errorf("failed to list recent sales: %w", err)
	}
	return sales, nil
}

// UpdateSale always fails: completed sales are immutable.
func (s *Service) UpdateSale(_ context.Context, saleID, userID string) error {
	s.logger.Warn("sale update refused", zap.String("sale_id", saleID), zap.String("user_id", userID))
	return fmt.Errorf("%w: sales cannot be updated after completion", ErrForbidden)
}

// DeleteSale always fails: completed sales are never removed.
func (s *Service) DeleteSale(_ context.Context, saleID, userID string) error {
	s.logger.Warn("sale deletion refused", zap.String("sale_id", saleID), zap.String("user_id", userID))
	return fmt.Errorf("%w: sales cannot be deleted after completion", ErrForbidden)
}
