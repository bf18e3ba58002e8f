package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	AddProducts(ctx context.Context, req ProductsRequest) (*Response, error)
	RemoveProducts(ctx context.Context, req ProductsRequest) (*Response, error)
	ReplaceProducts(ctx context.Context, req ProductsRequest) (*Response, error)
	RecomputeTotal(ctx context.Context, id string) (*Response, error)
	ListReminders(ctx context.Context, since time.Time) ([]Reminder, error)
}

type CreateRequest struct {
	CustomerID string     `json:"customer_id"`
	ProductIDs []string   `json:"product_ids"`
	OrderDate  *time.Time `json:"order_date"`
}

type ProductsRequest struct {
	OrderID    string   `json:"-"`
	ProductIDs []string `json:"product_ids"`
}

type ListRequest struct {
	PageToken     string
	PageSize      int
	CustomerID    string
	CustomerName  string
	ProductName   string
	ProductID     string
	TotalMin      *decimal.Decimal
	TotalMax      *decimal.Decimal
	OrderDateFrom *time.Time
	OrderDateTo   *time.Time
	SortBy        string
	OrderBy       string
}

type ListFilter struct {
	CustomerID    snowflake.ID
	CustomerName  string
	ProductName   string
	ProductID     snowflake.ID
	TotalMin      *decimal.Decimal
	TotalMax      *decimal.Decimal
	OrderDateFrom *time.Time
	OrderDateTo   *time.Time
	SortBy        string
	OrderBy       string
}

type ListResponse struct {
	pagination.PageInfo
	Orders []Response `json:"orders"`
}

type CustomerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ProductSummary struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Response struct {
	ID          string           `json:"id"`
	Customer    CustomerSummary  `json:"customer"`
	Products    []ProductSummary `json:"products"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	OrderDate   time.Time        `json:"order_date"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

const (
	MsgCreated    = "Order created successfully"
	MsgUpdated    = "Order updated successfully"
	MsgRecomputed = "Order total recomputed"
)

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidFilterID = errors.New("invalid_filter_id")
)
