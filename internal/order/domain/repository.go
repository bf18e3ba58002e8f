package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	// FindByIDForUpdate row-locks the order where the database supports it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]Order, error)

	AddProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error
	RemoveProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID, productIDs []snowflake.ID) error
	ClearProducts(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
	// ListProducts returns the member products of every order in orderIDs
	// ordered by product name.
	ListProducts(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]LineProduct, error)
	UpdateTotal(ctx context.Context, db *gorm.DB, orderID snowflake.ID, total decimal.Decimal, now time.Time) error

	ListReminders(ctx context.Context, db *gorm.DB, since time.Time) ([]Reminder, error)
}
