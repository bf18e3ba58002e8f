package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	"github.com/smallbiznis/crm/pkg/db/pagination"
)

type createCustomerRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

type bulkCreateCustomersRequest struct {
	Customers []createCustomerRequest `json:"customers"`
}

type updateCustomerRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp, "message": customerdomain.MsgCreated})
}

// BulkCreateCustomers stores every valid entry and reports the rejected ones
// by position. It responds 200 even when some entries fail.
func (s *Server) BulkCreateCustomers(c *gin.Context) {
	var req bulkCreateCustomersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries := make([]customerdomain.CreateCustomerRequest, 0, len(req.Customers))
	for _, entry := range req.Customers {
		entries = append(entries, entry.toDomain())
	}

	resp, err := s.customerSvc.BulkCreate(c.Request.Context(), entries)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name        string `form:"name"`
		Email       string `form:"email"`
		Phone       string `form:"phone"`
		CreatedFrom string `form:"created_from"`
		CreatedTo   string `form:"created_to"`
		SortBy      string `form:"sort_by"`
		OrderBy     string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_created_from", "invalid created_from"))
		return
	}

	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_created_to", "invalid created_to"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
		Name:        strings.TrimSpace(query.Name),
		Email:       strings.TrimSpace(query.Email),
		PhonePrefix: strings.TrimSpace(query.Phone),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
		SortBy:      strings.TrimSpace(query.SortBy),
		OrderBy:     strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Update(c.Request.Context(), customerdomain.UpdateCustomerRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "message": customerdomain.MsgUpdated})
}

func (s *Server) DeleteCustomer(c *gin.Context) {
	err := s.customerSvc.Delete(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": customerdomain.MsgDeleted})
}

func (r createCustomerRequest) toDomain() customerdomain.CreateCustomerRequest {
	return customerdomain.CreateCustomerRequest{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
	}
}
