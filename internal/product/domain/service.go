package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	ReplenishLowStock(ctx context.Context, req ReplenishRequest) (*ReplenishResult, error)
}

type ListRequest struct {
	PageToken string
	PageSize  int
	Name      string
	PriceMin  *decimal.Decimal
	PriceMax  *decimal.Decimal
	StockMin  *int
	StockMax  *int
	LowStock  *bool
	SortBy    string
	OrderBy   string
}

type ListFilter struct {
	Name     string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	StockMin *int
	StockMax *int
	LowStock *bool
	SortBy   string
	OrderBy  string
}

type ListResponse struct {
	pagination.PageInfo
	Products []Response `json:"products"`
}

type CreateRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock"`
}

type UpdateRequest struct {
	ID    string           `json:"-"`
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

// ReplenishRequest zero values fall back to LowStockThreshold and
// DefaultRestockAmount.
type ReplenishRequest struct {
	Threshold     int    `json:"threshold"`
	RestockAmount int    `json:"restock_amount"`
	Trigger       string `json:"-"`
}

// ReplenishResult lists the products updated so far. It is returned together
// with the error when a run stops part way.
type ReplenishResult struct {
	Products []Response `json:"products"`
	Message  string     `json:"message"`
}

type Response struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	LowStock  bool            `json:"low_stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	DefaultRestockAmount = 10

	MsgCreated          = "Product created successfully"
	MsgUpdated          = "Product updated successfully"
	MsgNoLowStock       = "No products with low stock found"
	MsgReplenishedFmt   = "Successfully updated %d products with low stock"
	MsgReplenishFailFmt = "Error updating low stock products: %v"
)

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidThreshold = errors.New("invalid_threshold")
	ErrInvalidRestock   = errors.New("invalid_restock_amount")
)
