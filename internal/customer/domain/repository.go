package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Customer, error)
	// EmailExists ignores excludeID so updates can keep their own address.
	EmailExists(ctx context.Context, db *gorm.DB, email string, excludeID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	// Delete removes the customer together with its orders and their product links.
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
