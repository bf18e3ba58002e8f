package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/crm/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int
	Name        string
	Email       string
	PhonePrefix string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	OrderBy     string
}

type ListCustomerFilter struct {
	Name        string
	Email       string
	PhonePrefix string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	OrderBy     string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

type UpdateCustomerRequest struct {
	ID    string  `json:"-"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type GetCustomerRequest struct {
	ID string
}

// BulkCreateResult holds the customers that were stored and one message per
// rejected entry, prefixed with the entry's 1-based position. Rejected carries
// the same messages grouped by 0-based request index.
type BulkCreateResult struct {
	Customers []Customer        `json:"customers"`
	Errors    []string          `json:"errors"`
	Rejected  []BulkEntryErrors `json:"rejected"`
}

type BulkEntryErrors struct {
	Index    int      `json:"index"`
	Messages []string `json:"messages"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	BulkCreate(context.Context, []CreateCustomerRequest) (BulkCreateResult, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	Delete(context.Context, GetCustomerRequest) error
}

const (
	MsgCreated = "Customer created successfully"
	MsgUpdated = "Customer updated successfully"
	MsgDeleted = "Customer deleted successfully"
)

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)
