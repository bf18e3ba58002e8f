package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	// FindByIDs returns the products that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]Product, error)
	ListLowStock(ctx context.Context, db *gorm.DB, threshold int) ([]Product, error)
	// IncrementStock adds amount to the stored stock in a single statement.
	IncrementStock(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int, now time.Time) error
	// RecomputeOrderTotals re-sums total_amount for every order holding the
	// product and returns how many orders were rewritten.
	RecomputeOrderTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int, error)
}
