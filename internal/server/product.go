package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
)

const replenishTriggerAPI = "api"

type createProductRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock"`
}

type updateProductRequest struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

type replenishLowStockRequest struct {
	Threshold     int `json:"threshold"`
	RestockAmount int `json:"restock_amount"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		Name:  strings.TrimSpace(req.Name),
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp, "message": productdomain.MsgCreated})
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name     string `form:"name"`
		PriceMin string `form:"price_min"`
		PriceMax string `form:"price_max"`
		StockMin string `form:"stock_min"`
		StockMax string `form:"stock_max"`
		LowStock string `form:"low_stock"`
		SortBy   string `form:"sort_by"`
		OrderBy  string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	priceMin, err := parseOptionalDecimal(query.PriceMin)
	if err != nil {
		AbortWithError(c, newValidationError("price_min", "invalid_price_min", "invalid price_min"))
		return
	}
	priceMax, err := parseOptionalDecimal(query.PriceMax)
	if err != nil {
		AbortWithError(c, newValidationError("price_max", "invalid_price_max", "invalid price_max"))
		return
	}
	stockMin, err := parseOptionalInt(query.StockMin)
	if err != nil {
		AbortWithError(c, newValidationError("stock_min", "invalid_stock_min", "invalid stock_min"))
		return
	}
	stockMax, err := parseOptionalInt(query.StockMax)
	if err != nil {
		AbortWithError(c, newValidationError("stock_max", "invalid_stock_max", "invalid stock_max"))
		return
	}
	lowStock, err := parseOptionalBool(query.LowStock)
	if err != nil {
		AbortWithError(c, newValidationError("low_stock", "invalid_low_stock", "invalid low_stock"))
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Name:      strings.TrimSpace(query.Name),
		PriceMin:  priceMin,
		PriceMax:  priceMax,
		StockMin:  stockMin,
		StockMax:  stockMax,
		LowStock:  lowStock,
		SortBy:    strings.TrimSpace(query.SortBy),
		OrderBy:   strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	resp, err := s.productSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Update(c.Request.Context(), productdomain.UpdateRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "message": productdomain.MsgUpdated})
}

// ReplenishLowStock runs the restock pass on demand. A run that stops part
// way still returns the products it already updated.
func (s *Server) ReplenishLowStock(c *gin.Context) {
	var req replenishLowStockRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	result, err := s.productSvc.ReplenishLowStock(c.Request.Context(), productdomain.ReplenishRequest{
		Threshold:     req.Threshold,
		RestockAmount: req.RestockAmount,
		Trigger:       replenishTriggerAPI,
	})
	if err != nil {
		if result == nil || errors.Is(err, productdomain.ErrInvalidThreshold) || errors.Is(err, productdomain.ErrInvalidRestock) {
			AbortWithError(c, err)
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"data": result,
			"error": errorPayload{
				Type:    "internal_error",
				Message: fmt.Sprintf(productdomain.MsgReplenishFailFmt, err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result, "message": result.Message})
}
