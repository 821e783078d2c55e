package api

import (
	"context"
	"net/http"
	"time"

	"api_pos/internal/sales"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserVerifier confirms that an acting user exists. Authentication itself
// happens upstream; a nil verifier trusts the X-User-ID header as given.
type UserVerifier interface {
	Verify(ctx context.Context, userID string) error
}

// Options tunes listing defaults.
type Options struct {
	DefaultPageSize int
	RecentSales     int
}

// InitRoutes registers the POS endpoints on the given Gin engine.
func InitRoutes(e *gin.Engine, salesService *sales.Service, users UserVerifier, logger *zap.Logger, opts Options) {
	h := NewSalesHandler(salesService, users, logger, opts)

	e.GET("/health-check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	e.GET("/pos", h.handlePos)
	e.GET("/products", h.handleListProducts)

	e.POST("/sales", h.handleCreateSale)
	e.GET("/sales", h.handleListSales)
	e.GET("/sales/recent", h.handleRecentSales)
	e.GET("/sales/:id", h.handleGetSale)
	e.PUT("/sales/:id", h.handleUpdateSale)
	e.PATCH("/sales/:id", h.handleUpdateSale)
	e.DELETE("/sales/:id", h.handleDeleteSale)
}
