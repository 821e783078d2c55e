package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"api_pos/internal/catalog"
	"api_pos/internal/ledger"
	"api_pos/internal/money"
	"api_pos/internal/sales"
	"api_pos/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userHeader = "X-User-ID"

// salesHandler holds the sales service and implements HTTP handlers for POS operations.
type salesHandler struct {
	salesService *sales.Service
	users        UserVerifier
	logger       *zap.Logger
	opts         Options
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, users UserVerifier, logger *zap.Logger, opts Options) *salesHandler {
	if opts.DefaultPageSize < 1 {
		opts.DefaultPageSize = ledger.DefaultPageSize
	}
	if opts.RecentSales < 1 {
		opts.RecentSales = 5
	}
	return &salesHandler{
		salesService: salesService,
		users:        users,
		logger:       logger,
		opts:         opts,
	}
}

type productResponse struct {
	catalog.Product
	LowStock bool `json:"low_stock"`
}

func toProductResponses(products []catalog.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = productResponse{Product: p, LowStock: p.LowStock()}
	}
	return out
}

type createSaleRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod string       `json:"payment_method"`
	Tax           *money.Cents `json:"tax"`
	Notes         *string      `json:"notes"`
}

func (r createSaleRequest) toSaleRequest(userID string) sales.SaleRequest {
	req := sales.SaleRequest{
		PaymentMethod: ledger.PaymentMethod(r.PaymentMethod),
		UserID:        userID,
	}
	for _, item := range r.Items {
		req.Lines = append(req.Lines, sales.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if r.Tax != nil {
		req.Tax = *r.Tax
	}
	if r.Notes != nil {
		req.Notes = *r.Notes
	}
	return req
}

// actingUser resolves the user on whose behalf the request is made. It writes
// the error response itself and returns false when the request must stop.
func (h *salesHandler) actingUser(ctx *gin.Context) (string, bool) {
	userID := ctx.GetHeader(userHeader)
	if userID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "missing acting user"})
		return "", false
	}
	if h.users == nil {
		return userID, true
	}

	err := h.users.Verify(ctx.Request.Context(), userID)
	switch {
	case err == nil:
		return userID, true
	case errors.Is(err, users.ErrUserNotFound):
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
	default:
		h.logger.Error("failed to verify user", zap.String("user_id", userID), zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "error validating user"})
	}
	return "", false
}

// handleCreateSale handles the POST /sales endpoint.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	userID, ok := h.actingUser(ctx)
	if !ok {
		return
	}

	var req createSaleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		if field, msg, ok := amountBindError(err); ok {
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  sales.ErrValidation.Error(),
				"fields": gin.H{field: msg},
			})
			return
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	sale, err := h.salesService.CompleteSale(ctx.Request.Context(), req.toSaleRequest(userID))
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, sale)
}

// amountBindError recognizes tax values that are valid JSON but not a usable amount.
func amountBindError(err error) (field, msg string, ok bool) {
	switch {
	case errors.Is(err, money.ErrTooPrecise):
		return "tax", "Tax may have at most two decimal places.", true
	case errors.Is(err, money.ErrOutOfRange):
		return "tax", fmt.Sprintf("Tax must be between 0 and %s.", sales.MaxTax), true
	}
	return "", "", false
}

func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.salesService.GetSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleListSales(ctx *gin.Context) {
	page, err := queryInt(ctx, "page", 1)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	pageSize, err := queryInt(ctx, "page_size", h.opts.DefaultPageSize)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
		return
	}

	result, err := h.salesService.ListSales(ctx.Request.Context(), page, pageSize)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (h *salesHandler) handleRecentSales(ctx *gin.Context) {
	limit, err := queryInt(ctx, "limit", h.opts.RecentSales)
	if err != nil || limit < 0 || limit > ledger.MaxPageSize {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	recent, err := h.salesService.ListRecentSales(ctx.Request.Context(), limit)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": recent})
}

func (h *salesHandler) handleListProducts(ctx *gin.Context) {
	products, err := h.salesService.ListPurchasableProducts(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": toProductResponses(products)})
}

// handlePos serves everything the till screen needs in one call.
func (h *salesHandler) handlePos(ctx *gin.Context) {
	products, err := h.salesService.ListPurchasableProducts(ctx.Request.Context())
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	recent, err := h.salesService.ListRecentSales(ctx.Request.Context(), h.opts.RecentSales)
	if err != nil {
		h.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"products":     toProductResponses(products),
		"recent_sales": recent,
	})
}

func (h *salesHandler) handleUpdateSale(ctx *gin.Context) {
	err := h.salesService.UpdateSale(ctx.Request.Context(), ctx.Param("id"), ctx.GetHeader(userHeader))
	h.writeError(ctx, err)
}

func (h *salesHandler) handleDeleteSale(ctx *gin.Context) {
	err := h.salesService.DeleteSale(ctx.Request.Context(), ctx.Param("id"), ctx.GetHeader(userHeader))
	h.writeError(ctx, err)
}

func (h *salesHandler) writeError(ctx *gin.Context, err error) {
	var validationErr *sales.ValidationError
	var stockErr *catalog.InsufficientStockError

	switch {
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": sales.ErrValidation.Error(), "fields": validationErr.Fields})
	case errors.As(err, &stockErr):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, catalog.ErrProductNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
	case errors.Is(err, sales.ErrForbidden):
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(ctx *gin.Context, key string, def int) (int, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
