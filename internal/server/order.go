package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	"github.com/smallbiznis/crm/internal/providers/pdf"
	"github.com/smallbiznis/crm/pkg/db/pagination"
)

const receiptDateLayout = "2006-01-02 15:04"

type createOrderRequest struct {
	CustomerID string   `json:"customer_id"`
	ProductIDs []string `json:"product_ids"`
	OrderDate  string   `json:"order_date"`
}

type orderProductsRequest struct {
	ProductIDs []string `json:"product_ids"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orderDate, err := parseOptionalTime(req.OrderDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("order_date", "invalid_order_date", "invalid order_date"))
		return
	}

	resp, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		ProductIDs: req.ProductIDs,
		OrderDate:  orderDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp, "message": orderdomain.MsgCreated})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID    string `form:"customer_id"`
		CustomerName  string `form:"customer_name"`
		ProductName   string `form:"product_name"`
		ProductID     string `form:"product_id"`
		TotalMin      string `form:"total_min"`
		TotalMax      string `form:"total_max"`
		OrderDateFrom string `form:"order_date_from"`
		OrderDateTo   string `form:"order_date_to"`
		SortBy        string `form:"sort_by"`
		OrderBy       string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	totalMin, err := parseOptionalDecimal(query.TotalMin)
	if err != nil {
		AbortWithError(c, newValidationError("total_min", "invalid_total_min", "invalid total_min"))
		return
	}
	totalMax, err := parseOptionalDecimal(query.TotalMax)
	if err != nil {
		AbortWithError(c, newValidationError("total_max", "invalid_total_max", "invalid total_max"))
		return
	}
	dateFrom, err := parseOptionalTime(query.OrderDateFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("order_date_from", "invalid_order_date_from", "invalid order_date_from"))
		return
	}
	dateTo, err := parseOptionalTime(query.OrderDateTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("order_date_to", "invalid_order_date_to", "invalid order_date_to"))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		PageToken:     query.PageToken,
		PageSize:      query.PageSize,
		CustomerID:    strings.TrimSpace(query.CustomerID),
		CustomerName:  strings.TrimSpace(query.CustomerName),
		ProductName:   strings.TrimSpace(query.ProductName),
		ProductID:     strings.TrimSpace(query.ProductID),
		TotalMin:      totalMin,
		TotalMax:      totalMax,
		OrderDateFrom: dateFrom,
		OrderDateTo:   dateTo,
		SortBy:        strings.TrimSpace(query.SortBy),
		OrderBy:       strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrderByID(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddOrderProducts(c *gin.Context) {
	s.mutateOrderProducts(c, s.orderSvc.AddProducts)
}

func (s *Server) RemoveOrderProducts(c *gin.Context) {
	s.mutateOrderProducts(c, s.orderSvc.RemoveProducts)
}

func (s *Server) ReplaceOrderProducts(c *gin.Context) {
	s.mutateOrderProducts(c, s.orderSvc.ReplaceProducts)
}

func (s *Server) mutateOrderProducts(c *gin.Context, fn func(ctx context.Context, req orderdomain.ProductsRequest) (*orderdomain.Response, error)) {
	var req orderProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := fn(c.Request.Context(), orderdomain.ProductsRequest{
		OrderID:    strings.TrimSpace(c.Param("id")),
		ProductIDs: req.ProductIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "message": orderdomain.MsgUpdated})
}

func (s *Server) RecomputeOrderTotal(c *gin.Context) {
	resp, err := s.orderSvc.RecomputeTotal(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "message": orderdomain.MsgRecomputed})
}

func (s *Server) GetOrderReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := s.orderSvc.Get(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	reader, err := s.receipts.GenerateReceipt(ctx, receiptData(s.cfg.AppName, resp))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, resp.ID))
	c.Data(http.StatusOK, "application/pdf", body)
}

func receiptData(storeName string, order *orderdomain.Response) pdf.ReceiptData {
	items := make([]pdf.ReceiptItem, 0, len(order.Products))
	for _, item := range order.Products {
		items = append(items, pdf.ReceiptItem{
			Name:  item.Name,
			Price: item.Price.StringFixed(2),
		})
	}
	return pdf.ReceiptData{
		StoreName:     strings.ToUpper(storeName),
		OrderID:       order.ID,
		OrderDate:     order.OrderDate.UTC().Format(receiptDateLayout),
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		Items:         items,
		Total:         order.TotalAmount.StringFixed(2),
	}
}
